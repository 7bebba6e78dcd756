package chunked

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/s3gw-project/s3gw/pkg/sigv4"
)

func buildStream(t *testing.T, scope sigv4.Scope, amzDate string, signingKey []byte, seedSig string, chunks [][]byte, trailers map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	prev := seedSig
	for _, c := range chunks {
		hashHex := sigv4.HashHex(c)
		sts := sigv4.ChunkStringToSign(amzDate, scope, prev, hashHex)
		sig := sigv4.Sign(signingKey, sts)
		prev = sig
		fmt.Fprintf(&buf, "%x;chunk-signature=%s\r\n", len(c), sig)
		buf.Write(c)
		buf.WriteString("\r\n")
	}
	// final zero-length chunk
	finalHashHex := sigv4.HashHex(nil)
	finalSts := sigv4.ChunkStringToSign(amzDate, scope, prev, finalHashHex)
	finalSig := sigv4.Sign(signingKey, finalSts)
	prev = finalSig
	fmt.Fprintf(&buf, "0;chunk-signature=%s\r\n", finalSig)

	if trailers != nil {
		canonical := sigv4.CanonicalTrailers(trailers)
		hashHex := sigv4.HashHex([]byte(canonical))
		sts := sigv4.TrailerStringToSign(amzDate, scope, prev, hashHex)
		trailerSig := sigv4.Sign(signingKey, sts)
		for k, v := range trailers {
			fmt.Fprintf(&buf, "%s:%s\r\n", k, v)
		}
		fmt.Fprintf(&buf, "x-amz-trailer-signature:%s\r\n", trailerSig)
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func TestDecoderRoundTrip(t *testing.T) {
	scope := sigv4.Scope{AccessKeyID: "AKIDEXAMPLE", Date: "20130524", Region: "us-east-1", Service: "s3"}
	signingKey := sigv4.DeriveSigningKey(nil, "secret", scope.Date, scope.Region, scope.Service)
	amzDate := "20130524T000000Z"
	seedSig := "seedsig0000"

	chunks := [][]byte{[]byte("hello "), []byte("world")}
	raw := buildStream(t, scope, amzDate, signingKey, seedSig, chunks, nil)

	var handle TrailerHandle
	dec := NewDecoder(bytes.NewReader(raw), SeedSignature{
		Scope: scope, AmzDate: amzDate, SigningKey: signingKey, Seed: seedSig,
	}, &handle)

	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}
	if _, done := handle.Trailers(); !done {
		t.Fatal("expected trailer handle to be marked done")
	}
}

func TestDecoderWithTrailers(t *testing.T) {
	scope := sigv4.Scope{AccessKeyID: "AKIDEXAMPLE", Date: "20130524", Region: "us-east-1", Service: "s3"}
	signingKey := sigv4.DeriveSigningKey(nil, "secret", scope.Date, scope.Region, scope.Service)
	amzDate := "20130524T000000Z"
	seedSig := "seedsig0000"

	trailers := map[string]string{"x-amz-checksum-crc32c": "deadbeef"}
	raw := buildStream(t, scope, amzDate, signingKey, seedSig, [][]byte{[]byte("payload")}, trailers)

	var handle TrailerHandle
	dec := NewDecoder(bytes.NewReader(raw), SeedSignature{
		Scope: scope, AmzDate: amzDate, SigningKey: signingKey, Seed: seedSig, VerifyTrailer: true,
	}, &handle)

	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q", got)
	}
	trailersGot, done := handle.Trailers()
	if !done || trailersGot["x-amz-checksum-crc32c"] != "deadbeef" {
		t.Fatalf("got %v done=%v", trailersGot, done)
	}
}

func TestDecoderWithTrailersExcludesSignatureKey(t *testing.T) {
	scope := sigv4.Scope{AccessKeyID: "AKIDEXAMPLE", Date: "20130524", Region: "us-east-1", Service: "s3"}
	signingKey := sigv4.DeriveSigningKey(nil, "secret", scope.Date, scope.Region, scope.Service)
	amzDate := "20130524T000000Z"
	seedSig := "seedsig0000"

	trailers := map[string]string{"x-amz-checksum-crc32c": "sOO8/Q=="}
	raw := buildStream(t, scope, amzDate, signingKey, seedSig, [][]byte{[]byte("payload")}, trailers)

	var handle TrailerHandle
	dec := NewDecoder(bytes.NewReader(raw), SeedSignature{
		Scope: scope, AmzDate: amzDate, SigningKey: signingKey, Seed: seedSig, VerifyTrailer: true,
	}, &handle)

	if _, err := io.ReadAll(dec); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	trailersGot, done := handle.Trailers()
	if !done {
		t.Fatal("expected trailer handle to be marked done")
	}
	if got, want := trailersGot, map[string]string{"x-amz-checksum-crc32c": "sOO8/Q=="}; len(got) != len(want) || got["x-amz-checksum-crc32c"] != want["x-amz-checksum-crc32c"] {
		t.Fatalf("got %v, want exactly %v", got, want)
	}
	if _, ok := trailersGot["x-amz-trailer-signature"]; ok {
		t.Fatal("x-amz-trailer-signature must not be exposed through the trailer handle")
	}
}

func buildUnsignedStream(chunks [][]byte, trailers map[string]string) []byte {
	var buf bytes.Buffer
	for _, c := range chunks {
		fmt.Fprintf(&buf, "%x\r\n", len(c))
		buf.Write(c)
		buf.WriteString("\r\n")
	}
	buf.WriteString("0\r\n")
	for k, v := range trailers {
		fmt.Fprintf(&buf, "%s:%s\r\n", k, v)
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func TestDecoderUnsignedPayloadTrailer(t *testing.T) {
	trailers := map[string]string{"x-amz-checksum-crc32c": "sOO8/Q=="}
	raw := buildUnsignedStream([][]byte{[]byte("hello "), []byte("world")}, trailers)

	var handle TrailerHandle
	dec := NewDecoder(bytes.NewReader(raw), SeedSignature{Unsigned: true}, &handle)

	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}
	trailersGot, done := handle.Trailers()
	if !done || trailersGot["x-amz-checksum-crc32c"] != "sOO8/Q==" {
		t.Fatalf("got %v done=%v", trailersGot, done)
	}
}

func TestDecoderRejectsTamperedChunk(t *testing.T) {
	scope := sigv4.Scope{AccessKeyID: "AKIDEXAMPLE", Date: "20130524", Region: "us-east-1", Service: "s3"}
	signingKey := sigv4.DeriveSigningKey(nil, "secret", scope.Date, scope.Region, scope.Service)
	amzDate := "20130524T000000Z"
	seedSig := "seedsig0000"

	raw := buildStream(t, scope, amzDate, signingKey, seedSig, [][]byte{[]byte("hello")}, nil)
	raw = bytes.Replace(raw, []byte("hello"), []byte("HELLO"), 1)

	dec := NewDecoder(bytes.NewReader(raw), SeedSignature{
		Scope: scope, AmzDate: amzDate, SigningKey: signingKey, Seed: seedSig,
	}, nil)

	_, err := io.ReadAll(dec)
	if err == nil {
		t.Fatal("expected signature mismatch error")
	}
	var decErr *DecodeError
	if !bytesErrorsAs(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
	if decErr.Kind != ErrSignatureMismatch {
		t.Fatalf("got kind %v", decErr.Kind)
	}
}

func bytesErrorsAs(err error, target **DecodeError) bool {
	if de, ok := err.(*DecodeError); ok {
		*target = de
		return true
	}
	return false
}

func TestDecoderRejectsOversizedMetaLine(t *testing.T) {
	big := bytes.Repeat([]byte("a"), MaxChunkMetaLine+10)
	raw := append(big, []byte(";chunk-signature=abc\r\n")...)
	dec := NewDecoder(bytes.NewReader(raw), SeedSignature{}, nil)
	_, err := io.ReadAll(dec)
	if err == nil {
		t.Fatal("expected ChunkMetaTooLarge error")
	}
}
