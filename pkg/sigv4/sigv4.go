package sigv4

import (
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/s3gw-project/s3gw/pkg/checksum"
	"github.com/s3gw-project/s3gw/pkg/headerview"
	"github.com/s3gw-project/s3gw/pkg/s3err"
)

// Credentials is the verified identity attached to a request once
// signature verification succeeds.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Service         string
}

// CredentialStore looks up the secret for an access key; the core treats
// it as an opaque external collaborator (spec §1).
type CredentialStore interface {
	GetSecretKey(accessKeyID string) (secret string, ok bool)
}

// PayloadMode is the AmzContentSha256 discriminant of spec §3.
type PayloadMode int

const (
	PayloadSingleChunk PayloadMode = iota
	PayloadUnsigned
	PayloadStreamingSigned
	PayloadStreamingSignedTrailer
	PayloadStreamingUnsignedTrailer
	PayloadECDSAP256          // rejected, NotImplemented
	PayloadECDSAP256Trailer   // rejected, NotImplemented
)

// ParsePayloadMode classifies the x-amz-content-sha256 header value.
func ParsePayloadMode(value string) (PayloadMode, string) {
	switch value {
	case "UNSIGNED-PAYLOAD":
		return PayloadUnsigned, ""
	case "STREAMING-AWS4-HMAC-SHA256-PAYLOAD":
		return PayloadStreamingSigned, ""
	case "STREAMING-AWS4-HMAC-SHA256-PAYLOAD-TRAILER":
		return PayloadStreamingSignedTrailer, ""
	case "STREAMING-UNSIGNED-PAYLOAD-TRAILER":
		return PayloadStreamingUnsignedTrailer, ""
	case "STREAMING-AWS4-ECDSA-P256-SHA256-PAYLOAD":
		return PayloadECDSAP256, ""
	case "STREAMING-AWS4-ECDSA-P256-SHA256-PAYLOAD-TRAILER":
		return PayloadECDSAP256Trailer, ""
	default:
		return PayloadSingleChunk, value
	}
}

// Scope is the parsed credential scope "date/region/service/aws4_request".
type Scope struct {
	AccessKeyID string
	Date        string // YYYYMMDD
	Region      string
	Service     string
}

// ParseCredentialParam parses the Credential=<...> value (whether from the
// Authorization header or the X-Amz-Credential query parameter).
func ParseCredentialParam(s string) (Scope, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 5 || parts[4] != "aws4_request" {
		return Scope{}, false
	}
	return Scope{AccessKeyID: parts[0], Date: parts[1], Region: parts[2], Service: parts[3]}, true
}

func (s Scope) String() string {
	return strings.Join([]string{s.Date, s.Region, s.Service, "aws4_request"}, "/")
}

// HeaderAuth is the parsed content of an `Authorization: AWS4-HMAC-SHA256
// ...` header.
type HeaderAuth struct {
	Scope         Scope
	SignedHeaders []string
	Signature     string
}

// ParseAuthorizationHeader parses the Authorization header value (without
// the "Authorization:" prefix).
func ParseAuthorizationHeader(value string) (HeaderAuth, *s3err.Error) {
	if !strings.HasPrefix(value, Algorithm+" ") {
		return HeaderAuth{}, s3err.New(s3err.CodeInvalidArgument, "unsupported authorization type")
	}
	rest := strings.TrimPrefix(value, Algorithm+" ")

	params := map[string]string{}
	for _, part := range strings.Split(rest, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok {
			params[k] = v
		}
	}

	credential := params["Credential"]
	signedHeaders := params["SignedHeaders"]
	signature := params["Signature"]
	if credential == "" || signedHeaders == "" || signature == "" {
		return HeaderAuth{}, s3err.New(s3err.CodeAuthorizationHeaderMalformed, "missing required authorization parameters")
	}

	scope, ok := ParseCredentialParam(credential)
	if !ok {
		return HeaderAuth{}, s3err.New(s3err.CodeAuthorizationHeaderMalformed, "invalid credential scope")
	}

	names := strings.Split(signedHeaders, ";")
	sort.Strings(names)

	return HeaderAuth{Scope: scope, SignedHeaders: names, Signature: signature}, nil
}

// StringToSign builds the spec §3 string-to-sign for a canonical request.
func StringToSign(amzDate string, scope Scope, canonicalRequest string) string {
	return strings.Join([]string{
		Algorithm,
		amzDate,
		scope.String(),
		HashHex([]byte(canonicalRequest)),
	}, "\n")
}

// Sign computes hex(HMAC-SHA256(signingKey, stringToSign)).
func Sign(signingKey []byte, stringToSign string) string {
	sig := checksum.HMACSHA256(signingKey, []byte(stringToSign))
	return hex.EncodeToString(sig)
}

// VerifyHeaderInput bundles everything VerifyHeader needs beyond the
// Authorization header itself.
type VerifyHeaderInput struct {
	Method      string
	URIPath     string
	RawQuery    url.Values
	Headers     *headerview.View
	AmzDate     string // X-Amz-Date (or Date) header value
	PayloadHash string // resolved payload-hash placeholder for the canonical request
	KeyCache    *KeyCache
}

// VerifyHeader verifies a header-auth (`Authorization:`) request and
// returns the populated Credentials plus the HeaderAuth it parsed (the
// caller needs the scope/signature to seed chunked decoding).
func VerifyHeader(auth HeaderAuth, store CredentialStore, in VerifyHeaderInput) (Credentials, *s3err.Error) {
	secret, ok := store.GetSecretKey(auth.Scope.AccessKeyID)
	if !ok {
		return Credentials{}, s3err.New(s3err.CodeInvalidAccessKeyId, "the access key id does not exist")
	}

	canonical := CanonicalRequest(CanonicalRequestInput{
		Method:        in.Method,
		URIPath:       in.URIPath,
		RawQuery:      in.RawQuery,
		Headers:       in.Headers,
		SignedHeaders: auth.SignedHeaders,
		PayloadHash:   in.PayloadHash,
	})
	sts := StringToSign(in.AmzDate, auth.Scope, canonical)
	signingKey := DeriveSigningKey(in.KeyCache, secret, auth.Scope.Date, auth.Scope.Region, auth.Scope.Service)
	expected := Sign(signingKey, sts)

	if !constantTimeEq(expected, auth.Signature) {
		return Credentials{}, s3err.New(s3err.CodeSignatureDoesNotMatch, "the request signature we calculated does not match the signature you provided")
	}
	return Credentials{AccessKeyID: auth.Scope.AccessKeyID, SecretAccessKey: secret, Region: auth.Scope.Region, Service: auth.Scope.Service}, nil
}

// VerifyPresignedInput bundles presigned-URL verification inputs.
type VerifyPresignedInput struct {
	Method       string
	URIPath      string
	RawQuery     url.Values
	Headers      *headerview.View
	Now          time.Time
	MaxSkew      time.Duration // allowance for a request dated slightly in the future; default 15m
	KeyCache     *KeyCache
}

// VerifyPresigned verifies an X-Amz-* query-string-authenticated request.
func VerifyPresigned(store CredentialStore, in VerifyPresignedInput) (Credentials, *s3err.Error) {
	q := in.RawQuery
	algorithm := q.Get("X-Amz-Algorithm")
	credential := q.Get("X-Amz-Credential")
	date := q.Get("X-Amz-Date")
	expires := q.Get("X-Amz-Expires")
	signedHeaders := q.Get("X-Amz-SignedHeaders")
	signature := q.Get("X-Amz-Signature")

	if algorithm != Algorithm {
		return Credentials{}, s3err.New(s3err.CodeInvalidArgument, "unsupported algorithm")
	}
	if credential == "" || date == "" || signedHeaders == "" || signature == "" || expires == "" {
		return Credentials{}, s3err.New(s3err.CodeAuthorizationHeaderMalformed, "missing required query parameters")
	}

	scope, ok := ParseCredentialParam(credential)
	if !ok {
		return Credentials{}, s3err.New(s3err.CodeAuthorizationHeaderMalformed, "invalid credential scope")
	}

	secret, ok := store.GetSecretKey(scope.AccessKeyID)
	if !ok {
		return Credentials{}, s3err.New(s3err.CodeInvalidAccessKeyId, "the access key id does not exist")
	}

	requestTime, err := time.Parse("20060102T150405Z", date)
	if err != nil {
		return Credentials{}, s3err.New(s3err.CodeAuthorizationHeaderMalformed, "invalid X-Amz-Date")
	}
	maxSkew := in.MaxSkew
	if maxSkew <= 0 {
		maxSkew = 15 * time.Minute
	}
	if requestTime.After(in.Now.Add(maxSkew)) {
		return Credentials{}, s3err.New(s3err.CodeRequestTimeTooSkewed, "the difference between the request time and the current time is too large")
	}
	expSecs, convErr := parseExpires(expires)
	if convErr != nil {
		return Credentials{}, s3err.New(s3err.CodeAuthorizationHeaderMalformed, "invalid X-Amz-Expires")
	}
	if in.Now.After(requestTime.Add(time.Duration(expSecs) * time.Second)) {
		return Credentials{}, s3err.New(s3err.CodeAccessDenied, "request has expired")
	}

	names := strings.Split(signedHeaders, ";")
	sort.Strings(names)

	canonical := CanonicalRequest(CanonicalRequestInput{
		Method:                in.Method,
		URIPath:               in.URIPath,
		RawQuery:              in.RawQuery,
		Headers:               in.Headers,
		SignedHeaders:         names,
		PayloadHash:           "UNSIGNED-PAYLOAD",
		ExcludeSignatureParam: true,
	})
	sts := StringToSign(date, scope, canonical)
	signingKey := DeriveSigningKey(in.KeyCache, secret, scope.Date, scope.Region, scope.Service)
	expected := Sign(signingKey, sts)

	if !constantTimeEq(expected, signature) {
		return Credentials{}, s3err.New(s3err.CodeSignatureDoesNotMatch, "the request signature we calculated does not match the signature you provided")
	}
	return Credentials{AccessKeyID: scope.AccessKeyID, SecretAccessKey: secret, Region: scope.Region, Service: scope.Service}, nil
}

func parseExpires(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func constantTimeEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
