package sigv4

import (
	"sort"
	"strings"
)

// ChunkStringToSign builds the per-chunk string-to-sign of spec §4.7/§4.9:
//
//	AWS4-HMAC-SHA256-PAYLOAD
//	<amz-date>
//	<scope>
//	<prev-signature>
//	<hex-sha256 of empty string>
//	<hex-sha256 of chunk data>
func ChunkStringToSign(amzDate string, scope Scope, prevSignature string, chunkHashHex string) string {
	return strings.Join([]string{
		"AWS4-HMAC-SHA256-PAYLOAD",
		amzDate,
		scope.String(),
		prevSignature,
		EmptyStringSHA256,
		chunkHashHex,
	}, "\n")
}

// TrailerStringToSign builds the trailer string-to-sign of spec §4.7/§4.9:
//
//	AWS4-HMAC-SHA256-TRAILER
//	<amz-date>
//	<scope>
//	<prev-signature>
//	<hex-sha256 of canonical trailers>
func TrailerStringToSign(amzDate string, scope Scope, prevSignature string, canonicalTrailersHashHex string) string {
	return strings.Join([]string{
		"AWS4-HMAC-SHA256-TRAILER",
		amzDate,
		scope.String(),
		prevSignature,
		canonicalTrailersHashHex,
	}, "\n")
}

// CanonicalTrailers renders the trailer canonicalization of spec §6:
// each non-signature trailer name lowercased, sorted, rendered as
// "name:value\n" with whitespace-trimmed values.
func CanonicalTrailers(trailers map[string]string) string {
	names := make([]string, 0, len(trailers))
	for k := range trailers {
		lk := strings.ToLower(k)
		if lk == "x-amz-trailer-signature" {
			continue
		}
		names = append(names, lk)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(trailers[canonicalLookup(trailers, n)]))
		b.WriteByte('\n')
	}
	return b.String()
}

func canonicalLookup(m map[string]string, lowerName string) string {
	for k := range m {
		if strings.EqualFold(k, lowerName) {
			return k
		}
	}
	return lowerName
}
