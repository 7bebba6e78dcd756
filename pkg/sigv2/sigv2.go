// Package sigv2 implements the legacy AWS Signature Version 2 engine of
// spec §4.8, included for compatibility with older clients. It does not
// support chunked/streaming payloads.
package sigv2

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"

	"github.com/s3gw-project/s3gw/pkg/s3err"
)

// Credentials is the verified identity for a SigV2 request.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// CredentialStore looks up the secret for an access key.
type CredentialStore interface {
	GetSecretKey(accessKeyID string) (secret string, ok bool)
}

// StringToSignInput bundles the pieces of the header-auth/presigned
// string-to-sign, spec §4.8:
//
//	method\nContent-MD5\nContent-Type\nDate\n<canonicalized x-amz-* headers>\n<CanonicalizedResource>
type StringToSignInput struct {
	Method              string
	ContentMD5          string
	ContentType         string
	DateOrExpires       string
	AmzHeaders          map[string]string // already lowercased names
	CanonicalizedResource string
}

func StringToSign(in StringToSignInput) string {
	var b strings.Builder
	b.WriteString(in.Method)
	b.WriteByte('\n')
	b.WriteString(in.ContentMD5)
	b.WriteByte('\n')
	b.WriteString(in.ContentType)
	b.WriteByte('\n')
	b.WriteString(in.DateOrExpires)
	b.WriteByte('\n')
	b.WriteString(canonicalizeAmzHeaders(in.AmzHeaders))
	b.WriteString(in.CanonicalizedResource)
	return b.String()
}

func canonicalizeAmzHeaders(headers map[string]string) string {
	names := make([]string, 0, len(headers))
	for k := range headers {
		if strings.HasPrefix(k, "x-amz-") {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(headers[n]))
		b.WriteByte('\n')
	}
	return b.String()
}

// Sign computes Base64(HMAC-SHA1(secret, stringToSign)).
func Sign(secret, stringToSign string) string {
	h := hmac.New(sha1.New, []byte(secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyHeaderInput bundles header-auth verification inputs. AuthHeader
// is the raw `Authorization: AWS <accessKey>:<signature>` value.
type VerifyHeaderInput struct {
	AuthHeader string
	StringToSignInput
}

func VerifyHeader(store CredentialStore, in VerifyHeaderInput) (Credentials, *s3err.Error) {
	if !strings.HasPrefix(in.AuthHeader, "AWS ") {
		return Credentials{}, s3err.New(s3err.CodeInvalidArgument, "unsupported authorization type")
	}
	rest := strings.TrimPrefix(in.AuthHeader, "AWS ")
	accessKeyID, signature, ok := strings.Cut(rest, ":")
	if !ok {
		return Credentials{}, s3err.New(s3err.CodeInvalidArgument, "malformed authorization header")
	}
	secret, ok := store.GetSecretKey(accessKeyID)
	if !ok {
		return Credentials{}, s3err.New(s3err.CodeInvalidAccessKeyId, "the access key id does not exist")
	}
	sts := StringToSign(in.StringToSignInput)
	expected := Sign(secret, sts)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return Credentials{}, s3err.New(s3err.CodeSignatureDoesNotMatch, "the request signature we calculated does not match the signature you provided")
	}
	return Credentials{AccessKeyID: accessKeyID, SecretAccessKey: secret}, nil
}

// VerifyPresignedInput bundles presigned-URL inputs: the query carries
// AWSAccessKeyId, Expires and Signature.
type VerifyPresignedInput struct {
	Query url.Values
	StringToSignInput
}

func VerifyPresigned(store CredentialStore, in VerifyPresignedInput) (Credentials, *s3err.Error) {
	accessKeyID := in.Query.Get("AWSAccessKeyId")
	signature := in.Query.Get("Signature")
	if accessKeyID == "" || signature == "" {
		return Credentials{}, s3err.New(s3err.CodeInvalidArgument, "missing required query parameters")
	}
	secret, ok := store.GetSecretKey(accessKeyID)
	if !ok {
		return Credentials{}, s3err.New(s3err.CodeInvalidAccessKeyId, "the access key id does not exist")
	}
	sts := StringToSign(in.StringToSignInput)
	expected := Sign(secret, sts)
	// Signature arrives URL-encoded; callers should have already decoded
	// via url.Values, which url.ParseQuery performs automatically.
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return Credentials{}, s3err.New(s3err.CodeSignatureDoesNotMatch, "the request signature we calculated does not match the signature you provided")
	}
	return Credentials{AccessKeyID: accessKeyID, SecretAccessKey: secret}, nil
}

// VerifyPOST verifies the POST-form variant: the base64 policy document
// itself is the string-to-sign.
func VerifyPOST(store CredentialStore, accessKeyID, policyBase64, signature string) (Credentials, *s3err.Error) {
	secret, ok := store.GetSecretKey(accessKeyID)
	if !ok {
		return Credentials{}, s3err.New(s3err.CodeInvalidAccessKeyId, "the access key id does not exist")
	}
	expected := Sign(secret, policyBase64)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return Credentials{}, s3err.New(s3err.CodeSignatureDoesNotMatch, "the request signature we calculated does not match the signature you provided")
	}
	return Credentials{AccessKeyID: accessKeyID, SecretAccessKey: secret}, nil
}
