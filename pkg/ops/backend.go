package ops

import (
	"context"

	"github.com/s3gw-project/s3gw/pkg/s3err"
)

// Backend is the storage collaborator the core dispatches operations to.
// The core never implements storage itself (spec §1); internal/examplefs
// provides a reference implementation.
type Backend interface {
	ListBuckets(ctx context.Context, in ListBucketsInput) (ListBucketsOutput, *s3err.Error)
	CreateBucket(ctx context.Context, in CreateBucketInput) (CreateBucketOutput, *s3err.Error)
	HeadBucket(ctx context.Context, in HeadBucketInput) (HeadBucketOutput, *s3err.Error)
	DeleteBucket(ctx context.Context, in DeleteBucketInput) (DeleteBucketOutput, *s3err.Error)

	ListObjectsV2(ctx context.Context, in ListObjectsV2Input) (ListObjectsV2Output, *s3err.Error)
	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, *s3err.Error)
	GetObject(ctx context.Context, in GetObjectInput) (GetObjectOutput, *s3err.Error)
	HeadObject(ctx context.Context, in HeadObjectInput) (HeadObjectOutput, *s3err.Error)
	DeleteObject(ctx context.Context, in DeleteObjectInput) (DeleteObjectOutput, *s3err.Error)
	CopyObject(ctx context.Context, in CopyObjectInput) (CopyObjectResult, *s3err.Error)

	CreateMultipartUpload(ctx context.Context, in CreateMultipartUploadInput) (CreateMultipartUploadOutput, *s3err.Error)
	UploadPart(ctx context.Context, in UploadPartInput) (UploadPartOutput, *s3err.Error)
	CompleteMultipartUpload(ctx context.Context, in CompleteMultipartUploadInput) (CompleteMultipartUploadOutput, *s3err.Error)
	AbortMultipartUpload(ctx context.Context, in AbortMultipartUploadInput) (AbortMultipartUploadOutput, *s3err.Error)
	ListParts(ctx context.Context, in ListPartsInput) (ListPartsOutput, *s3err.Error)
}

// PostObjectBackend is implemented by backends that special-case
// PostObject instead of delegating to PutObject; optional.
type PostObjectBackend interface {
	PostObject(ctx context.Context, in PostObjectInput) (PostObjectOutput, *s3err.Error)
}

// AccessContext bundles what an AccessPolicy needs to decide, spec
// §4.11 step 11.
type AccessContext struct {
	AccessKeyID string
	Authenticated bool
	Operation   string
	Method      string
	URIPath     string
	Bucket      string
	Key         string
}

// AccessPolicy is the external authorization collaborator. With a nil
// policy the dispatcher applies DefaultAccessPolicy (deny when credentials
// are absent) if a credential store is configured, and performs no access
// check otherwise.
type AccessPolicy interface {
	Authorize(ctx context.Context, ac AccessContext) *s3err.Error
}

// DefaultAccessPolicy denies anonymous requests and allows everything
// else, matching spec §4.11's documented default.
type DefaultAccessPolicy struct{}

func (DefaultAccessPolicy) Authorize(_ context.Context, ac AccessContext) *s3err.Error {
	if !ac.Authenticated {
		return s3err.New(s3err.CodeAccessDenied, "anonymous access is not permitted")
	}
	return nil
}
