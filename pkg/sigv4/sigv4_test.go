package sigv4

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/s3gw-project/s3gw/pkg/headerview"
)

type fakeStore map[string]string

func (f fakeStore) GetSecretKey(accessKeyID string) (string, bool) {
	s, ok := f[accessKeyID]
	return s, ok
}

func TestCanonicalURIEncodesUnreservedOnly(t *testing.T) {
	got := CanonicalURI("/my bucket/my key")
	want := "/my%20bucket/my%20key"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCanonicalQuerySortedByKeyThenValue(t *testing.T) {
	v := url.Values{}
	v.Set("b", "2")
	v.Add("a", "2")
	v.Add("a", "1")
	got := CanonicalQuery(v, false)
	want := "a=1&a=2&b=2"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParseAuthorizationHeader(t *testing.T) {
	h := "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20130524/us-east-1/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=abc123"
	auth, errv := ParseAuthorizationHeader(h)
	if errv != nil {
		t.Fatalf("ParseAuthorizationHeader: %v", errv)
	}
	if auth.Scope.AccessKeyID != "AKIDEXAMPLE" || auth.Scope.Region != "us-east-1" || auth.Scope.Service != "s3" {
		t.Fatalf("got %+v", auth.Scope)
	}
	want := []string{"host", "x-amz-content-sha256", "x-amz-date"}
	if len(auth.SignedHeaders) != len(want) {
		t.Fatalf("got %v", auth.SignedHeaders)
	}
}

// TestSimpleSignedPUT reproduces spec §8 scenario 1: a zero-byte signed
// PUT to /b/k with the well-known AWS documentation example credentials.
func TestSimpleSignedPUT(t *testing.T) {
	store := fakeStore{"AKIDEXAMPLE": "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY"}

	req, _ := http.NewRequest(http.MethodPut, "https://s3.amazonaws.com/b/k", nil)
	req.Host = "s3.amazonaws.com"
	req.Header.Set("x-amz-content-sha256", EmptyStringSHA256)
	req.Header.Set("x-amz-date", "20130524T000000Z")

	signedHeaders := []string{"host", "x-amz-content-sha256", "x-amz-date"}
	views := headerview.New(req.Header, req.Host)
	canonical := CanonicalRequest(CanonicalRequestInput{
		Method:        "PUT",
		URIPath:       "/b/k",
		RawQuery:      url.Values{},
		Headers:       views,
		SignedHeaders: signedHeaders,
		PayloadHash:   EmptyStringSHA256,
	})
	scope := Scope{AccessKeyID: "AKIDEXAMPLE", Date: "20130524", Region: "us-east-1", Service: "s3"}
	sts := StringToSign("20130524T000000Z", scope, canonical)
	key := DeriveSigningKey(nil, store["AKIDEXAMPLE"], scope.Date, scope.Region, scope.Service)
	signature := Sign(key, sts)

	req.Header.Set("Authorization", "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20130524/us-east-1/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature="+signature)

	auth, errv := ParseAuthorizationHeader(req.Header.Get("Authorization"))
	if errv != nil {
		t.Fatalf("ParseAuthorizationHeader: %v", errv)
	}
	creds, errv := VerifyHeader(auth, store, VerifyHeaderInput{
		Method:      "PUT",
		URIPath:     "/b/k",
		RawQuery:    url.Values{},
		Headers:     headerview.New(req.Header, req.Host),
		AmzDate:     "20130524T000000Z",
		PayloadHash: EmptyStringSHA256,
	})
	if errv != nil {
		t.Fatalf("VerifyHeader: %v", errv)
	}
	if creds.AccessKeyID != "AKIDEXAMPLE" {
		t.Fatalf("got %+v", creds)
	}
}

func TestVerifyHeaderRejectsTamperedSignature(t *testing.T) {
	store := fakeStore{"AKIDEXAMPLE": "secret"}
	auth := HeaderAuth{
		Scope:         Scope{AccessKeyID: "AKIDEXAMPLE", Date: "20130524", Region: "us-east-1", Service: "s3"},
		SignedHeaders: []string{"host"},
		Signature:     "0000000000000000000000000000000000000000000000000000000000000000",
	}
	_, errv := VerifyHeader(auth, store, VerifyHeaderInput{
		Method:      "GET",
		URIPath:     "/",
		RawQuery:    url.Values{},
		Headers:     headerview.New(http.Header{}, "s3.amazonaws.com"),
		AmzDate:     "20130524T000000Z",
		PayloadHash: EmptyStringSHA256,
	})
	if errv == nil {
		t.Fatal("expected SignatureDoesNotMatch")
	}
}

func TestVerifyPresignedExpired(t *testing.T) {
	store := fakeStore{"AKIDEXAMPLE": "secret"}
	now := time.Date(2013, 5, 24, 2, 0, 0, 0, time.UTC)
	v := url.Values{}
	v.Set("X-Amz-Algorithm", Algorithm)
	v.Set("X-Amz-Credential", "AKIDEXAMPLE/20130524/us-east-1/s3/aws4_request")
	v.Set("X-Amz-Date", "20130524T000000Z")
	v.Set("X-Amz-Expires", "3600")
	v.Set("X-Amz-SignedHeaders", "host")
	v.Set("X-Amz-Signature", "deadbeef")

	_, errv := VerifyPresigned(store, VerifyPresignedInput{
		Method:   "GET",
		URIPath:  "/b/k",
		RawQuery: v,
		Headers:  headerview.New(http.Header{}, "s3.amazonaws.com"),
		Now:      now,
	})
	if errv == nil || errv.Code != "AccessDenied" {
		t.Fatalf("got %+v", errv)
	}
}
