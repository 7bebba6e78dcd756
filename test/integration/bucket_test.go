package integration

import (
	"bytes"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// TestBucketLifecycle exercises create, list, head, and delete end to end
// through the real signature-verification and dispatch path.
func TestBucketLifecycle(t *testing.T) {
	bucketName := "test-bucket-lifecycle"

	t.Run("CreateBucket", func(t *testing.T) {
		_, err := ts.client.CreateBucket(ts.ctx, &s3.CreateBucketInput{
			Bucket: aws.String(bucketName),
		})
		if err != nil {
			t.Fatalf("CreateBucket: %v", err)
		}
	})

	t.Run("CreateBucket_Duplicate", func(t *testing.T) {
		_, err := ts.client.CreateBucket(ts.ctx, &s3.CreateBucketInput{
			Bucket: aws.String(bucketName),
		})
		if err == nil {
			t.Fatal("expected error creating duplicate bucket")
		}
	})

	t.Run("ListBuckets", func(t *testing.T) {
		out, err := ts.client.ListBuckets(ts.ctx, &s3.ListBucketsInput{})
		if err != nil {
			t.Fatalf("ListBuckets: %v", err)
		}
		found := false
		for _, b := range out.Buckets {
			if aws.ToString(b.Name) == bucketName {
				found = true
			}
		}
		if !found {
			t.Fatal("created bucket not found in list")
		}
	})

	t.Run("HeadBucket_Exists", func(t *testing.T) {
		if _, err := ts.client.HeadBucket(ts.ctx, &s3.HeadBucketInput{Bucket: aws.String(bucketName)}); err != nil {
			t.Fatalf("HeadBucket: %v", err)
		}
	})

	t.Run("HeadBucket_NotFound", func(t *testing.T) {
		if _, err := ts.client.HeadBucket(ts.ctx, &s3.HeadBucketInput{Bucket: aws.String("does-not-exist")}); err == nil {
			t.Fatal("expected error heading missing bucket")
		}
	})

	t.Run("DeleteBucket", func(t *testing.T) {
		if _, err := ts.client.DeleteBucket(ts.ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)}); err != nil {
			t.Fatalf("DeleteBucket: %v", err)
		}
	})

	t.Run("HeadBucket_AfterDelete", func(t *testing.T) {
		if _, err := ts.client.HeadBucket(ts.ctx, &s3.HeadBucketInput{Bucket: aws.String(bucketName)}); err == nil {
			t.Fatal("expected error heading deleted bucket")
		}
	})
}

// TestDeleteBucketNotEmpty confirms a bucket holding an object cannot be
// removed until the object is deleted first.
func TestDeleteBucketNotEmpty(t *testing.T) {
	bucketName := "test-bucket-not-empty"
	if _, err := ts.client.CreateBucket(ts.ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	if _, err := ts.client.PutObject(ts.ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String("k"),
		Body:   bytes.NewReader(nil),
	}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	if _, err := ts.client.DeleteBucket(ts.ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)}); err == nil {
		t.Fatal("expected BucketNotEmpty")
	}

	if _, err := ts.client.DeleteObject(ts.ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucketName), Key: aws.String("k")}); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if _, err := ts.client.DeleteBucket(ts.ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		t.Fatalf("DeleteBucket after emptying: %v", err)
	}
}
