// Package hostparser implements the host-header decomposition of spec
// §4.6: single-domain and multi-domain virtual-host strategies, plus
// detection of AWS-style endpoint hosts for region extraction.
package hostparser

import (
	"net"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Result is the outcome of parsing a Host header.
type Result struct {
	Domain string
	Bucket string // empty if path-style
	Region string // empty unless the host matched an AWS endpoint pattern
}

// Parser decomposes a Host header. IsIPLiteral requests always bypass
// virtual-host parsing (the caller should treat those as path-style
// directly without calling Parse).
type Parser interface {
	Parse(host string) Result
}

// IsIPLiteral reports whether host (without port) is an IP literal or a
// bare socket address, which must always be treated as path-style.
func IsIPLiteral(host string) bool {
	h := host
	if hh, _, err := net.SplitHostPort(host); err == nil {
		h = hh
	}
	h = strings.TrimPrefix(strings.TrimSuffix(h, "]"), "[")
	return net.ParseIP(h) != nil
}

// awsEndpoint matches "[bucket.]s3[.-]{region}.amazonaws.com" hosts.
var awsEndpoint = regexp.MustCompile(`^(?:(.+)\.)?s3[.-]([a-z0-9-]+)\.amazonaws\.com$`)

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// SingleDomain implements the single-configured-suffix strategy: the
// bucket is the subdomain before the suffix, if present.
type SingleDomain struct {
	Suffix string // e.g. "s3.example.com"
}

func NewSingleDomain(suffix string) SingleDomain { return SingleDomain{Suffix: suffix} }

func (s SingleDomain) Parse(rawHost string) Result {
	host := stripPort(rawHost)
	if m := awsEndpoint.FindStringSubmatch(host); m != nil {
		return Result{Domain: host, Bucket: m[1], Region: m[2]}
	}
	suffix := "." + s.Suffix
	if strings.HasSuffix(host, suffix) && host != s.Suffix {
		bucket := strings.TrimSuffix(host, suffix)
		return Result{Domain: s.Suffix, Bucket: bucket}
	}
	return Result{Domain: host}
}

// MultiDomain matches the host against a configured list of glob
// patterns (e.g. "*.s3.example.com", "*.s3.*.example.net"), supporting
// deployments that serve more than one base domain. Patterns are
// compiled once at construction.
type MultiDomain struct {
	globs []glob.Glob
	raw   []string
}

// NewMultiDomain compiles patterns, returning the first compile error if
// any pattern fails to compile.
func NewMultiDomain(patterns []string) (*MultiDomain, error) {
	m := &MultiDomain{}
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, err
		}
		m.globs = append(m.globs, g)
		m.raw = append(m.raw, p)
	}
	return m, nil
}

func (m *MultiDomain) Parse(rawHost string) Result {
	host := stripPort(rawHost)
	if mm := awsEndpoint.FindStringSubmatch(host); mm != nil {
		return Result{Domain: host, Bucket: mm[1], Region: mm[2]}
	}
	for i, g := range m.globs {
		if g.Match(host) {
			bucket, domain := splitBucketSubdomain(host, m.raw[i])
			return Result{Domain: domain, Bucket: bucket}
		}
	}
	return Result{Domain: host}
}

// splitBucketSubdomain recovers the bucket label when the pattern begins
// with a "*." wildcard segment; patterns without a leading wildcard are
// assumed to name an exact base domain with no subdomain bucket.
func splitBucketSubdomain(host, pattern string) (bucket, domain string) {
	if !strings.HasPrefix(pattern, "*.") {
		return "", host
	}
	suffix := strings.TrimPrefix(pattern, "*")
	if strings.HasSuffix(host, suffix) {
		return strings.TrimSuffix(host, suffix), strings.TrimPrefix(suffix, ".")
	}
	return "", host
}
