// Package sigv4 implements the AWS Signature Version 4 engine of spec
// §4.7: canonical-request construction, string-to-sign, signing-key
// derivation and signature calculation, plus the header-auth and
// presigned-URL verifiers and the chunk/trailer string-to-sign variants.
// It has no POST-form verifier.
package sigv4

import (
	"net/url"
	"sort"
	"strings"

	"github.com/s3gw-project/s3gw/pkg/checksum"
	"github.com/s3gw-project/s3gw/pkg/headerview"
)

const Algorithm = "AWS4-HMAC-SHA256"

// CanonicalRequestInput carries everything CanonicalRequest needs.
type CanonicalRequestInput struct {
	Method        string
	URIPath       string // already percent-decoded
	RawQuery      url.Values
	Headers       *headerview.View
	SignedHeaders []string // lowercase, in the order SignedHeaders named them
	PayloadHash   string
	// ExcludeSignatureParam removes X-Amz-Signature from the canonical
	// query string, used by the presigned-URL variant.
	ExcludeSignatureParam bool
}

// CanonicalURI re-encodes a decoded path per RFC 3986 unreserved-only
// percent-encoding, leaving path separators untouched.
func CanonicalURI(decodedPath string) string {
	if decodedPath == "" {
		return "/"
	}
	segments := strings.Split(decodedPath, "/")
	for i, seg := range segments {
		segments[i] = encodeRFC3986(seg)
	}
	return strings.Join(segments, "/")
}

func encodeRFC3986(s string) string {
	var b strings.Builder
	for _, c := range []byte(s) {
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			const hex = "0123456789ABCDEF"
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xF])
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// CanonicalQuery renders percent-encoded key=value pairs joined by '&',
// sorted by key then value.
func CanonicalQuery(values url.Values, excludeSignature bool) string {
	type kv struct{ k, v string }
	var pairs []kv
	for k, vs := range values {
		if excludeSignature && k == "X-Amz-Signature" {
			continue
		}
		for _, v := range vs {
			pairs = append(pairs, kv{encodeRFC3986(k), encodeRFC3986(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return strings.Join(parts, "&")
}

// CanonicalRequest builds the canonical-request bytestring of spec §3.
func CanonicalRequest(in CanonicalRequestInput) string {
	uri := CanonicalURI(in.URIPath)
	query := CanonicalQuery(in.RawQuery, in.ExcludeSignatureParam)
	headersBlock := in.Headers.CanonicalHeadersBlock(in.SignedHeaders)
	signedNames := headerview.SignedHeaderNames(in.SignedHeaders)

	return strings.Join([]string{
		in.Method,
		uri,
		query,
		headersBlock,
		signedNames,
		in.PayloadHash,
	}, "\n")
}

// HashHex returns the lowercase-hex SHA-256 of data.
func HashHex(data []byte) string {
	h := checksum.NewSHA256()
	h.Write(data)
	sum := h.Sum(nil)
	const hex = "0123456789abcdef"
	out := make([]byte, len(sum)*2)
	for i, b := range sum {
		out[i*2] = hex[b>>4]
		out[i*2+1] = hex[b&0xF]
	}
	return string(out)
}

// EmptyStringSHA256 is the well-known hash of the empty string, used as
// the "no canonical headers" placeholder in chunk/trailer string-to-sign.
const EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
