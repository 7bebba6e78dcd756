package ops

import (
	"encoding/xml"
	"time"
)

// Owner mirrors the S3 bucket/object owner shape.
type Owner struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName"`
}

// Bucket is one entry of a ListBuckets response.
type Bucket struct {
	Name         string    `xml:"Name"`
	CreationDate time.Time `xml:"CreationDate"`
}

// ListBucketsInput has no wire fields; present for table uniformity.
type ListBucketsInput struct{}

// ListBucketsOutput is the response for ListBuckets.
type ListBucketsOutput struct {
	XMLName xml.Name `xml:"ListAllMyBucketsResult"`
	Owner   Owner    `xml:"Owner"`
	Buckets struct {
		Bucket []Bucket `xml:"Bucket"`
	} `xml:"Buckets"`
}

// CreateBucketInput is the request for CreateBucket (PUT Bucket).
type CreateBucketInput struct {
	Bucket string `s3:"bucket" xml:"-"`
}

// CreateBucketOutput carries only the Location header.
type CreateBucketOutput struct {
	Location string `s3:"header,Location"`
}

// HeadBucketInput is the request for HeadBucket.
type HeadBucketInput struct {
	Bucket string `s3:"bucket" xml:"-"`
}

// HeadBucketOutput has no body; existence alone is the signal.
type HeadBucketOutput struct{}

// DeleteBucketInput is the request for DeleteBucket.
type DeleteBucketInput struct {
	Bucket string `s3:"bucket" xml:"-"`
}

// DeleteBucketOutput has no body (204 No Content).
type DeleteBucketOutput struct{}

// Contents is one object entry of a ListObjectsV2 response.
type Contents struct {
	Key          string    `xml:"Key"`
	LastModified time.Time `xml:"LastModified"`
	ETag         string    `xml:"ETag"`
	Size         int64     `xml:"Size"`
	StorageClass string    `xml:"StorageClass"`
}

// CommonPrefix is one rolled-up prefix entry.
type CommonPrefix struct {
	Prefix string `xml:"Prefix"`
}

// ListObjectsV2Input is the request for ListObjectsV2.
type ListObjectsV2Input struct {
	Bucket            string `s3:"bucket" xml:"-"`
	Prefix            string `s3:"query,prefix" xml:"-"`
	Delimiter         string `s3:"query,delimiter" xml:"-"`
	MaxKeys           int    `s3:"query,max-keys" xml:"-"`
	ContinuationToken string `s3:"query,continuation-token" xml:"-"`
	StartAfter        string `s3:"query,start-after" xml:"-"`
}

// ListObjectsV2Output is the response for ListObjectsV2.
type ListObjectsV2Output struct {
	XMLName               xml.Name       `xml:"ListBucketResult"`
	Name                  string         `xml:"Name"`
	Prefix                string         `xml:"Prefix"`
	Delimiter             string         `xml:"Delimiter,omitempty"`
	MaxKeys               int            `xml:"MaxKeys"`
	KeyCount              int            `xml:"KeyCount"`
	IsTruncated           bool           `xml:"IsTruncated"`
	ContinuationToken     string         `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string         `xml:"NextContinuationToken,omitempty"`
	StartAfter            string         `xml:"StartAfter,omitempty"`
	Contents              []Contents     `xml:"Contents"`
	CommonPrefixes        []CommonPrefix `xml:"CommonPrefixes,omitempty"`
}

// PutObjectInput is the request for PutObject. Body is populated by the
// dispatcher directly (it is the streamed/decoded payload, not XML).
type PutObjectInput struct {
	Bucket      string            `s3:"bucket" xml:"-"`
	Key         string            `s3:"key" xml:"-"`
	ContentType string            `s3:"header,Content-Type" xml:"-"`
	ContentMD5  string            `s3:"header,Content-MD5" xml:"-"`
	IfNoneMatch string            `s3:"header,If-None-Match" xml:"-"`
	Metadata    map[string]string `s3:"metadata" xml:"-"`
	Body        []byte            `s3:"sealed" xml:"-"`
}

// PutObjectOutput is the response for PutObject: headers only.
type PutObjectOutput struct {
	ETag string `s3:"header,ETag"`
}

// GetObjectInput is the request for GetObject.
type GetObjectInput struct {
	Bucket      string `s3:"bucket" xml:"-"`
	Key         string `s3:"key" xml:"-"`
	IfNoneMatch string `s3:"header,If-None-Match" xml:"-"`
	Range       string `s3:"header,Range" xml:"-"`
}

// GetObjectOutput is the response for GetObject: headers plus a raw body.
type GetObjectOutput struct {
	ContentType string            `s3:"header,Content-Type"`
	ETag        string            `s3:"header,ETag"`
	Metadata    map[string]string `s3:"metadata"`
	Body        []byte            `s3:"sealed"`
}

// HeadObjectInput is the request for HeadObject.
type HeadObjectInput struct {
	Bucket string `s3:"bucket" xml:"-"`
	Key    string `s3:"key" xml:"-"`
}

// HeadObjectOutput mirrors GetObjectOutput minus the body.
type HeadObjectOutput struct {
	ContentType   string            `s3:"header,Content-Type"`
	ContentLength int64             `s3:"header,Content-Length"`
	ETag          string            `s3:"header,ETag"`
	Metadata      map[string]string `s3:"metadata"`
}

// DeleteObjectInput is the request for DeleteObject.
type DeleteObjectInput struct {
	Bucket string `s3:"bucket" xml:"-"`
	Key    string `s3:"key" xml:"-"`
}

// DeleteObjectOutput has no body (204 No Content).
type DeleteObjectOutput struct{}

// CopyObjectInput is the request for CopyObject (PUT with
// x-amz-copy-source).
type CopyObjectInput struct {
	Bucket     string `s3:"bucket" xml:"-"`
	Key        string `s3:"key" xml:"-"`
	CopySource string `s3:"header,X-Amz-Copy-Source" xml:"-"`
}

// CopyObjectResult is the XML body returned by CopyObject.
type CopyObjectResult struct {
	XMLName      xml.Name  `xml:"CopyObjectResult"`
	ETag         string    `xml:"ETag"`
	LastModified time.Time `xml:"LastModified"`
}

// CreateMultipartUploadInput is the request for CreateMultipartUpload.
type CreateMultipartUploadInput struct {
	Bucket      string            `s3:"bucket" xml:"-"`
	Key         string            `s3:"key" xml:"-"`
	ContentType string            `s3:"header,Content-Type" xml:"-"`
	Metadata    map[string]string `s3:"metadata" xml:"-"`
}

// CreateMultipartUploadOutput is the response for CreateMultipartUpload.
type CreateMultipartUploadOutput struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadId string   `xml:"UploadId"`
}

// UploadPartInput is the request for UploadPart.
type UploadPartInput struct {
	Bucket     string `s3:"bucket" xml:"-"`
	Key        string `s3:"key" xml:"-"`
	UploadID   string `s3:"query,uploadId" xml:"-"`
	PartNumber int    `s3:"query,partNumber" xml:"-"`
	Body       []byte `s3:"sealed" xml:"-"`
}

// UploadPartOutput is the response for UploadPart: headers only.
type UploadPartOutput struct {
	ETag string `s3:"header,ETag"`
}

// CompletedPart is one entry of a CompleteMultipartUpload request body.
type CompletedPart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

// CompleteMultipartUploadInput is the request for CompleteMultipartUpload.
type CompleteMultipartUploadInput struct {
	Bucket   string          `s3:"bucket" xml:"-"`
	Key      string          `s3:"key" xml:"-"`
	UploadID string          `s3:"query,uploadId" xml:"-"`
	Parts    []CompletedPart `xml:"Part"`
}

// CompleteMultipartUploadOutput is the response for CompleteMultipartUpload.
//
// KeepAlive, if set by the backend, is polled by the dispatcher once a
// second while it returns false, and the response is written only after it
// returns true. Nothing, not even whitespace padding, is sent to the client
// while it is pending.
type CompleteMultipartUploadOutput struct {
	XMLName  xml.Name           `xml:"CompleteMultipartUploadResult"`
	Location string             `xml:"Location"`
	Bucket   string             `xml:"Bucket"`
	Key      string             `xml:"Key"`
	ETag      string      `xml:"ETag"`
	KeepAlive func() bool `s3:"s3s" xml:"-"`
}

// AbortMultipartUploadInput is the request for AbortMultipartUpload.
type AbortMultipartUploadInput struct {
	Bucket   string `s3:"bucket" xml:"-"`
	Key      string `s3:"key" xml:"-"`
	UploadID string `s3:"query,uploadId" xml:"-"`
}

// AbortMultipartUploadOutput has no body (204 No Content).
type AbortMultipartUploadOutput struct{}

// ListPartsInput is the request for ListParts.
type ListPartsInput struct {
	Bucket   string `s3:"bucket" xml:"-"`
	Key      string `s3:"key" xml:"-"`
	UploadID string `s3:"query,uploadId" xml:"-"`
}

// Part is one entry of a ListParts response.
type Part struct {
	PartNumber   int       `xml:"PartNumber"`
	LastModified time.Time `xml:"LastModified"`
	ETag         string    `xml:"ETag"`
	Size         int64     `xml:"Size"`
}

// ListPartsOutput is the response for ListParts.
type ListPartsOutput struct {
	XMLName  xml.Name `xml:"ListPartsResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadId string   `xml:"UploadId"`
	Part     []Part   `xml:"Part"`
}

// PostObjectInput is the POST Object flow's dedicated input: it mirrors
// PutObject but arrives as multipart/form-data fields plus extra
// POST-only fields, spec §4.12.
type PostObjectInput struct {
	Bucket                string
	Key                    string
	ContentType            string
	Metadata               map[string]string
	Body                   []byte
	SuccessActionRedirect  string
	SuccessActionStatus    string
	Policy                 string
}

// PostObjectOutput mirrors PutObjectOutput plus the optional redirect.
type PostObjectOutput struct {
	ETag                  string
	Location              string
	SuccessActionRedirect string
	SuccessActionStatus   string
}

// ToPutObjectInput converts a PostObjectInput into the equivalent
// PutObjectInput so the default post_object implementation can delegate
// to put_object, spec §4.12.
func (p PostObjectInput) ToPutObjectInput() PutObjectInput {
	return PutObjectInput{
		Bucket:      p.Bucket,
		Key:         p.Key,
		ContentType: p.ContentType,
		Metadata:    p.Metadata,
		Body:        p.Body,
	}
}

// FromPutObjectOutput converts a PutObjectOutput (plus the POST-only
// fields carried on the input) back into a PostObjectOutput.
func FromPutObjectOutput(out PutObjectOutput, in PostObjectInput) PostObjectOutput {
	return PostObjectOutput{
		ETag:                  out.ETag,
		SuccessActionRedirect: in.SuccessActionRedirect,
		SuccessActionStatus:   in.SuccessActionStatus,
	}
}
