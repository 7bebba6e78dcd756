// Package timestamp implements the three timestamp wire formats S3
// operations use: DateTime (RFC 3339 with mandatory millisecond
// precision), HttpDate (RFC 1123), and EpochSeconds.
package timestamp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format selects one of the three wire encodings.
type Format int

const (
	DateTime Format = iota
	HttpDate
	EpochSeconds
)

const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Parse parses s according to f. DateTime accepts any valid RFC 3339
// timestamp on input (not just millisecond-precision); HttpDate requires
// RFC 1123 with GMT; EpochSeconds accepts an integer or decimal number of
// seconds since the Unix epoch.
func Parse(s string, f Format) (time.Time, error) {
	switch f {
	case DateTime:
		return time.Parse(time.RFC3339Nano, s)
	case HttpDate:
		return time.Parse(httpDateLayout, s)
	case EpochSeconds:
		return parseEpochSeconds(s)
	default:
		return time.Time{}, fmt.Errorf("timestamp: unknown format %d", f)
	}
}

// FormatTime renders t according to f. DateTime always emits exactly three
// fractional-second digits and a literal "Z" suffix, regardless of the
// input's original precision or zone.
func FormatTime(t time.Time, f Format) string {
	switch f {
	case DateTime:
		return t.UTC().Format("2006-01-02T15:04:05.000Z")
	case HttpDate:
		return t.UTC().Format(httpDateLayout)
	case EpochSeconds:
		return formatEpochSeconds(t)
	default:
		return ""
	}
}

// parseEpochSeconds parses "<seconds>[.<fraction>]" where fraction has
// 1-9 digits, scaled to nanoseconds by 10^(9-digits). Negative integer
// seconds combine with a positive fractional part per the Smithy
// convention: canonical-seconds = floor(value), canonical-nanos >= 0.
func parseEpochSeconds(s string) (time.Time, error) {
	neg := strings.HasPrefix(s, "-")
	body := s
	if neg {
		body = s[1:]
	}

	intPart, fracPart, hasFrac := strings.Cut(body, ".")
	secs, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp: invalid epoch seconds %q: %w", s, err)
	}

	var nanos int64
	if hasFrac {
		if len(fracPart) == 0 || len(fracPart) > 9 {
			return time.Time{}, fmt.Errorf("timestamp: invalid fractional seconds %q", s)
		}
		fracVal, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp: invalid fractional seconds %q: %w", s, err)
		}
		scale := 1
		for i := 0; i < 9-len(fracPart); i++ {
			scale *= 10
		}
		nanos = fracVal * int64(scale)
	}

	if neg {
		// -secs.fraction: canonical-seconds = floor(-(secs+frac)) = -secs-1
		// (unless frac is zero, in which case it's exactly -secs).
		if nanos == 0 {
			return time.Unix(-secs, 0).UTC(), nil
		}
		return time.Unix(-secs-1, nanos).UTC(), nil
	}
	return time.Unix(secs, nanos).UTC(), nil
}

func formatEpochSeconds(t time.Time) string {
	t = t.UTC()
	secs := t.Unix()
	nsec := t.Nanosecond()
	if nsec == 0 {
		return strconv.FormatInt(secs, 10)
	}
	frac := strconv.FormatInt(int64(nsec), 10)
	for len(frac) < 9 {
		frac = "0" + frac
	}
	frac = strings.TrimRight(frac, "0")
	return fmt.Sprintf("%d.%s", secs, frac)
}
