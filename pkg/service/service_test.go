package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/s3gw-project/s3gw/pkg/hostparser"
	"github.com/s3gw-project/s3gw/pkg/ops"
	"github.com/s3gw-project/s3gw/pkg/s3err"
)

type memBackend struct {
	objects map[string][]byte
}

func (b *memBackend) ListBuckets(context.Context, ops.ListBucketsInput) (ops.ListBucketsOutput, *s3err.Error) {
	return ops.ListBucketsOutput{}, nil
}
func (b *memBackend) CreateBucket(context.Context, ops.CreateBucketInput) (ops.CreateBucketOutput, *s3err.Error) {
	return ops.CreateBucketOutput{}, nil
}
func (b *memBackend) HeadBucket(context.Context, ops.HeadBucketInput) (ops.HeadBucketOutput, *s3err.Error) {
	return ops.HeadBucketOutput{}, nil
}
func (b *memBackend) DeleteBucket(context.Context, ops.DeleteBucketInput) (ops.DeleteBucketOutput, *s3err.Error) {
	return ops.DeleteBucketOutput{}, nil
}
func (b *memBackend) ListObjectsV2(context.Context, ops.ListObjectsV2Input) (ops.ListObjectsV2Output, *s3err.Error) {
	return ops.ListObjectsV2Output{}, nil
}
func (b *memBackend) PutObject(ctx context.Context, in ops.PutObjectInput) (ops.PutObjectOutput, *s3err.Error) {
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[in.Bucket+"/"+in.Key] = in.Body
	return ops.PutObjectOutput{ETag: `"etag"`}, nil
}
func (b *memBackend) GetObject(ctx context.Context, in ops.GetObjectInput) (ops.GetObjectOutput, *s3err.Error) {
	data, ok := b.objects[in.Bucket+"/"+in.Key]
	if !ok {
		return ops.GetObjectOutput{}, s3err.New(s3err.CodeNoSuchKey, "no such key")
	}
	return ops.GetObjectOutput{Body: data, ETag: `"etag"`}, nil
}
func (b *memBackend) HeadObject(context.Context, ops.HeadObjectInput) (ops.HeadObjectOutput, *s3err.Error) {
	return ops.HeadObjectOutput{}, nil
}
func (b *memBackend) DeleteObject(context.Context, ops.DeleteObjectInput) (ops.DeleteObjectOutput, *s3err.Error) {
	return ops.DeleteObjectOutput{}, nil
}
func (b *memBackend) CopyObject(context.Context, ops.CopyObjectInput) (ops.CopyObjectResult, *s3err.Error) {
	return ops.CopyObjectResult{}, nil
}
func (b *memBackend) CreateMultipartUpload(context.Context, ops.CreateMultipartUploadInput) (ops.CreateMultipartUploadOutput, *s3err.Error) {
	return ops.CreateMultipartUploadOutput{}, nil
}
func (b *memBackend) UploadPart(context.Context, ops.UploadPartInput) (ops.UploadPartOutput, *s3err.Error) {
	return ops.UploadPartOutput{}, nil
}
func (b *memBackend) CompleteMultipartUpload(context.Context, ops.CompleteMultipartUploadInput) (ops.CompleteMultipartUploadOutput, *s3err.Error) {
	return ops.CompleteMultipartUploadOutput{}, nil
}
func (b *memBackend) AbortMultipartUpload(context.Context, ops.AbortMultipartUploadInput) (ops.AbortMultipartUploadOutput, *s3err.Error) {
	return ops.AbortMultipartUploadOutput{}, nil
}
func (b *memBackend) ListParts(context.Context, ops.ListPartsInput) (ops.ListPartsOutput, *s3err.Error) {
	return ops.ListPartsOutput{}, nil
}

func TestNewStampsRequestID(t *testing.T) {
	s := New(WithBackend(&memBackend{}))

	req := httptest.NewRequest(http.MethodPut, "/bucket/key", strings.NewReader("hi"))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d body %s", w.Code, w.Body.String())
	}
	if w.Header().Get("x-amz-request-id") == "" || w.Header().Get("x-amz-id-2") == "" {
		t.Fatalf("missing request-id headers: %v", w.Header())
	}
}

func TestWithAccessLogWrapsHandler(t *testing.T) {
	s := New(WithBackend(&memBackend{}), WithConfig(StaticConfig(Config{AccessLog: true})))

	req := httptest.NewRequest(http.MethodGet, "/bucket/missing", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d", w.Code)
	}
}

func TestRegionTableResolve(t *testing.T) {
	rt := newRegionTable("us-east-1", []string{"eu-west-1"})

	region, ok := rt.Resolve(hostparser.Result{Region: "eu-west-1"}, ops.RequestView{}.Path)
	if !ok || region != "eu-west-1" {
		t.Fatalf("got %q ok=%v", region, ok)
	}

	region, ok = rt.Resolve(hostparser.Result{}, ops.RequestView{}.Path)
	if !ok || region != "us-east-1" {
		t.Fatalf("got %q ok=%v", region, ok)
	}
}
