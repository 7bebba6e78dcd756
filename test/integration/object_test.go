package integration

import (
	"bytes"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func mustCreateBucket(t *testing.T, name string) {
	t.Helper()
	if _, err := ts.client.CreateBucket(ts.ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
		t.Fatalf("CreateBucket(%s): %v", name, err)
	}
}

// TestObjectPutGetDelete covers the basic single-shot object round trip.
func TestObjectPutGetDelete(t *testing.T) {
	bucketName := "test-object-roundtrip"
	mustCreateBucket(t, bucketName)
	key := "greeting.txt"
	body := []byte("hello, integration test")

	t.Run("PutObject", func(t *testing.T) {
		out, err := ts.client.PutObject(ts.ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("text/plain"),
		})
		if err != nil {
			t.Fatalf("PutObject: %v", err)
		}
		if aws.ToString(out.ETag) == "" {
			t.Fatal("expected non-empty ETag")
		}
	})

	t.Run("HeadObject", func(t *testing.T) {
		out, err := ts.client.HeadObject(ts.ctx, &s3.HeadObjectInput{Bucket: aws.String(bucketName), Key: aws.String(key)})
		if err != nil {
			t.Fatalf("HeadObject: %v", err)
		}
		if aws.ToInt64(out.ContentLength) != int64(len(body)) {
			t.Fatalf("expected content-length %d, got %d", len(body), aws.ToInt64(out.ContentLength))
		}
	})

	t.Run("GetObject", func(t *testing.T) {
		out, err := ts.client.GetObject(ts.ctx, &s3.GetObjectInput{Bucket: aws.String(bucketName), Key: aws.String(key)})
		if err != nil {
			t.Fatalf("GetObject: %v", err)
		}
		defer out.Body.Close()
		got, err := io.ReadAll(out.Body)
		if err != nil {
			t.Fatalf("reading body: %v", err)
		}
		if !bytes.Equal(got, body) {
			t.Fatalf("got body %q, want %q", got, body)
		}
	})

	t.Run("ListObjectsV2", func(t *testing.T) {
		out, err := ts.client.ListObjectsV2(ts.ctx, &s3.ListObjectsV2Input{Bucket: aws.String(bucketName)})
		if err != nil {
			t.Fatalf("ListObjectsV2: %v", err)
		}
		found := false
		for _, obj := range out.Contents {
			if aws.ToString(obj.Key) == key {
				found = true
			}
		}
		if !found {
			t.Fatal("expected object in listing")
		}
	})

	t.Run("DeleteObject", func(t *testing.T) {
		if _, err := ts.client.DeleteObject(ts.ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucketName), Key: aws.String(key)}); err != nil {
			t.Fatalf("DeleteObject: %v", err)
		}
	})

	t.Run("GetObject_AfterDelete", func(t *testing.T) {
		if _, err := ts.client.GetObject(ts.ctx, &s3.GetObjectInput{Bucket: aws.String(bucketName), Key: aws.String(key)}); err == nil {
			t.Fatal("expected NoSuchKey after delete")
		}
	})
}

// TestListObjectsV2Delimiter covers delimiter-based common-prefix grouping
// across a small tree of keys.
func TestListObjectsV2Delimiter(t *testing.T) {
	bucketName := "test-object-delimiter"
	mustCreateBucket(t, bucketName)

	for _, key := range []string{"a/1.txt", "a/2.txt", "b/1.txt", "root.txt"} {
		if _, err := ts.client.PutObject(ts.ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucketName), Key: aws.String(key), Body: bytes.NewReader([]byte(key)),
		}); err != nil {
			t.Fatalf("PutObject(%s): %v", key, err)
		}
	}

	out, err := ts.client.ListObjectsV2(ts.ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketName), Delimiter: aws.String("/"),
	})
	if err != nil {
		t.Fatalf("ListObjectsV2: %v", err)
	}
	if len(out.Contents) != 1 || aws.ToString(out.Contents[0].Key) != "root.txt" {
		t.Fatalf("expected only root.txt in Contents, got %+v", out.Contents)
	}
	prefixes := map[string]bool{}
	for _, p := range out.CommonPrefixes {
		prefixes[aws.ToString(p.Prefix)] = true
	}
	if !prefixes["a/"] || !prefixes["b/"] {
		t.Fatalf("expected a/ and b/ common prefixes, got %+v", out.CommonPrefixes)
	}
}

// TestCopyObject verifies cross-bucket copy, grounded on the real
// x-amz-copy-source PUT semantics the dispatcher rewrites to CopyObject.
func TestCopyObject(t *testing.T) {
	mustCreateBucket(t, "test-copy-src")
	mustCreateBucket(t, "test-copy-dst")

	if _, err := ts.client.PutObject(ts.ctx, &s3.PutObjectInput{
		Bucket: aws.String("test-copy-src"), Key: aws.String("original.txt"), Body: bytes.NewReader([]byte("copy payload")),
	}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	if _, err := ts.client.CopyObject(ts.ctx, &s3.CopyObjectInput{
		Bucket:     aws.String("test-copy-dst"),
		Key:        aws.String("copied.txt"),
		CopySource: aws.String("test-copy-src/original.txt"),
	}); err != nil {
		t.Fatalf("CopyObject: %v", err)
	}

	out, err := ts.client.GetObject(ts.ctx, &s3.GetObjectInput{Bucket: aws.String("test-copy-dst"), Key: aws.String("copied.txt")})
	if err != nil {
		t.Fatalf("GetObject of copy: %v", err)
	}
	defer out.Body.Close()
	got, _ := io.ReadAll(out.Body)
	if string(got) != "copy payload" {
		t.Fatalf("got %q", got)
	}
}
