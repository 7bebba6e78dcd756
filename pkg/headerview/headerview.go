// Package headerview implements the canonicalized, order-independent view
// over request headers that every signature calculation reads from (spec
// §3 "Ordered headers"), plus a small RFC 2047 encoded-word helper for
// header values carrying non-ASCII text.
package headerview

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"
)

// Pair is a single lowercased-name/value header entry.
type Pair struct {
	Name  string
	Value string
}

// View is an invariant-bearing ordered projection of an http.Header: names
// are lowercase ASCII, entries are sorted by name (stable across equal
// names, i.e. multi-valued headers keep their original relative order),
// and x-amz-meta-* values are decoded as UTF-8 while everything else is
// treated as ASCII/Latin-1 opaque bytes.
type View struct {
	pairs []Pair
}

// New builds a View from an http.Header and the request Host (Go special-
// cases Host outside of the Header map).
func New(h http.Header, host string) *View {
	var pairs []Pair
	for name, values := range h {
		lname := strings.ToLower(name)
		for _, v := range values {
			pairs = append(pairs, Pair{Name: lname, Value: v})
		}
	}
	if host != "" {
		hasHost := false
		for _, p := range pairs {
			if p.Name == "host" {
				hasHost = true
				break
			}
		}
		if !hasHost {
			pairs = append(pairs, Pair{Name: "host", Value: host})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
	return &View{pairs: pairs}
}

// Get returns the first value for name (already lowercase-normalized),
// and whether it was present.
func (v *View) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, p := range v.pairs {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Values returns every value for name, in original relative order.
func (v *View) Values(name string) []string {
	name = strings.ToLower(name)
	var out []string
	for _, p := range v.pairs {
		if p.Name == name {
			out = append(out, p.Value)
		}
	}
	return out
}

// All returns every pair in the view, sorted by name.
func (v *View) All() []Pair {
	return v.pairs
}

// Subset returns only the pairs whose name is in names, still sorted by
// name, used to build the canonical-headers block for a specific
// SignedHeaders set.
func (v *View) Subset(names []string) []Pair {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}
	var out []Pair
	for _, p := range v.pairs {
		if want[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

// CanonicalHeadersBlock renders the `name:trimmed-value\n` block (sorted
// by name) for the given header names, trimming the value and collapsing
// any internal whitespace runs is intentionally NOT done here: S3's
// canonicalization only trims leading/trailing whitespace, matching the
// teacher and the AWS spec.
func (v *View) CanonicalHeadersBlock(names []string) string {
	var b strings.Builder
	for _, p := range v.Subset(names) {
		b.WriteString(p.Name)
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(p.Value))
		b.WriteByte('\n')
	}
	return b.String()
}

// SignedHeaderNames returns the sorted, semicolon-joined list of names
// present in names (already expected sorted by the caller per the
// SignedHeaders directive, but this re-sorts defensively).
func SignedHeaderNames(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return strings.Join(sorted, ";")
}

// DecodeWord decodes an RFC 2047 MIME encoded-word (e.g.
// "=?UTF-8?B?...?=") if s is one; otherwise it returns s unchanged. Only
// the "B" (base64) and "Q" (quoted-printable-ish) encodings used by AWS
// clients for non-ASCII x-amz-meta-* values are supported.
func DecodeWord(s string) string {
	if !strings.HasPrefix(s, "=?") || !strings.HasSuffix(s, "?=") {
		return s
	}
	parts := strings.SplitN(s[2:len(s)-2], "?", 3)
	if len(parts) != 3 {
		return s
	}
	charset, enc, text := parts[0], strings.ToUpper(parts[1]), parts[2]
	if !strings.EqualFold(charset, "UTF-8") {
		return s
	}
	switch enc {
	case "B":
		decoded, err := decodeBase64(text)
		if err != nil {
			return s
		}
		return decoded
	case "Q":
		return decodeQ(text)
	default:
		return s
	}
}

// EncodeWord encodes s as an RFC 2047 UTF-8 base64 encoded-word if it
// contains any non-ASCII byte; otherwise it returns s unchanged.
func EncodeWord(s string) string {
	if isASCII(s) {
		return s
	}
	return fmt.Sprintf("=?UTF-8?B?%s?=", encodeBase64(s))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7E {
			return false
		}
	}
	return true
}

func decodeQ(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '_':
			b.WriteByte(' ')
		case '=':
			if i+2 < len(s) {
				var v int
				if _, err := fmt.Sscanf(s[i+1:i+3], "%02X", &v); err == nil {
					b.WriteByte(byte(v))
					i += 2
					continue
				}
			}
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	out := b.String()
	if !utf8.ValidString(out) {
		return s
	}
	return out
}
