package examplefs

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/s3gw-project/s3gw/pkg/checksum"
	"github.com/s3gw-project/s3gw/pkg/etag"
	"github.com/s3gw-project/s3gw/pkg/ops"
	"github.com/s3gw-project/s3gw/pkg/s3err"
	"github.com/s3gw-project/s3gw/pkg/s3path"
)

// Backend adapts Store to ops.Backend. It also implements
// ops.PostObjectBackend; its PostObject converts the form with
// ToPutObjectInput and stores the file through PutObject.
type Backend struct {
	store *Store
}

// NewBackend wraps an already-open Store.
func NewBackend(store *Store) *Backend {
	return &Backend{store: store}
}

var _ ops.Backend = (*Backend)(nil)
var _ ops.PostObjectBackend = (*Backend)(nil)

func md5ETag(data []byte) string {
	h := checksum.NewMD5()
	h.Write(data)
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`
}

func sha256Digest(data []byte) string {
	h := checksum.NewSHA256()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func (b *Backend) ListBuckets(ctx context.Context, in ops.ListBucketsInput) (ops.ListBucketsOutput, *s3err.Error) {
	var out ops.ListBucketsOutput
	err := b.store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketsBucket).ForEach(func(k, v []byte) error {
			var rec bucketRecord
			if derr := decodeGob(v, &rec); derr != nil {
				return derr
			}
			out.Buckets.Bucket = append(out.Buckets.Bucket, ops.Bucket{
				Name: string(k), CreationDate: rec.CreationDate,
			})
			return nil
		})
	})
	if err != nil {
		return ops.ListBucketsOutput{}, s3err.Wrap(s3err.CodeInternalError, "failed to list buckets", err)
	}
	sort.Slice(out.Buckets.Bucket, func(i, j int) bool {
		return out.Buckets.Bucket[i].Name < out.Buckets.Bucket[j].Name
	})
	return out, nil
}

func (b *Backend) CreateBucket(ctx context.Context, in ops.CreateBucketInput) (ops.CreateBucketOutput, *s3err.Error) {
	if !(s3path.DefaultValidator{}).ValidateBucket(in.Bucket) {
		return ops.CreateBucketOutput{}, s3err.New(s3err.CodeInvalidBucketName, "the specified bucket is not valid")
	}
	err := b.store.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketsBucket).Get([]byte(in.Bucket)) != nil {
			return ErrBucketAlreadyExists
		}
		return tx.Bucket(bucketsBucket).Put([]byte(in.Bucket), encodeGob(bucketRecord{CreationDate: time.Now().UTC()}))
	})
	if err == ErrBucketAlreadyExists {
		return ops.CreateBucketOutput{}, s3err.New(s3err.CodeBucketAlreadyExists, "the requested bucket name is not available")
	}
	if err != nil {
		return ops.CreateBucketOutput{}, s3err.Wrap(s3err.CodeInternalError, "failed to create bucket", err)
	}
	return ops.CreateBucketOutput{Location: "/" + in.Bucket}, nil
}

func (b *Backend) HeadBucket(ctx context.Context, in ops.HeadBucketInput) (ops.HeadBucketOutput, *s3err.Error) {
	var exists bool
	b.store.db.View(func(tx *bolt.Tx) error {
		_, exists = getBucketRecord(tx, in.Bucket)
		return nil
	})
	if !exists {
		return ops.HeadBucketOutput{}, s3err.New(s3err.CodeNoSuchBucket, "the specified bucket does not exist")
	}
	return ops.HeadBucketOutput{}, nil
}

func (b *Backend) DeleteBucket(ctx context.Context, in ops.DeleteBucketInput) (ops.DeleteBucketOutput, *s3err.Error) {
	err := b.store.db.Update(func(tx *bolt.Tx) error {
		if _, exists := getBucketRecord(tx, in.Bucket); !exists {
			return ErrBucketNotFound
		}
		if objs := tx.Bucket(objectsBucketName(in.Bucket)); objs != nil {
			if k, _ := objs.Cursor().First(); k != nil {
				return ErrBucketNotEmpty
			}
			if err := tx.DeleteBucket(objectsBucketName(in.Bucket)); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketsBucket).Delete([]byte(in.Bucket))
	})
	switch err {
	case nil:
		return ops.DeleteBucketOutput{}, nil
	case ErrBucketNotFound:
		return ops.DeleteBucketOutput{}, s3err.New(s3err.CodeNoSuchBucket, "the specified bucket does not exist")
	case ErrBucketNotEmpty:
		return ops.DeleteBucketOutput{}, s3err.New(s3err.CodeBucketNotEmpty, "the bucket you tried to delete is not empty")
	default:
		return ops.DeleteBucketOutput{}, s3err.Wrap(s3err.CodeInternalError, "failed to delete bucket", err)
	}
}

func (b *Backend) ListObjectsV2(ctx context.Context, in ops.ListObjectsV2Input) (ops.ListObjectsV2Output, *s3err.Error) {
	maxKeys := in.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	type entry struct {
		key string
		rec objectRecord
	}
	var all []entry
	err := b.store.db.View(func(tx *bolt.Tx) error {
		objs := tx.Bucket(objectsBucketName(in.Bucket))
		if objs == nil {
			return nil
		}
		return objs.ForEach(func(k, v []byte) error {
			if !strings.HasPrefix(string(k), in.Prefix) {
				return nil
			}
			if in.StartAfter != "" && string(k) <= in.StartAfter {
				return nil
			}
			if in.ContinuationToken != "" && string(k) <= in.ContinuationToken {
				return nil
			}
			var rec objectRecord
			if derr := decodeGob(v, &rec); derr != nil {
				return derr
			}
			all = append(all, entry{key: string(k), rec: rec})
			return nil
		})
	})
	if err != nil {
		return ops.ListObjectsV2Output{}, s3err.Wrap(s3err.CodeInternalError, "failed to list objects", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].key < all[j].key })

	out := ops.ListObjectsV2Output{
		Name: in.Bucket, Prefix: in.Prefix, Delimiter: in.Delimiter,
		MaxKeys: maxKeys, ContinuationToken: in.ContinuationToken, StartAfter: in.StartAfter,
	}
	seenPrefixes := map[string]bool{}
	for _, e := range all {
		if out.KeyCount >= maxKeys {
			out.IsTruncated = true
			out.NextContinuationToken = e.key
			break
		}
		if in.Delimiter != "" {
			rest := strings.TrimPrefix(e.key, in.Prefix)
			if idx := strings.Index(rest, in.Delimiter); idx >= 0 {
				prefix := in.Prefix + rest[:idx+len(in.Delimiter)]
				if !seenPrefixes[prefix] {
					seenPrefixes[prefix] = true
					out.CommonPrefixes = append(out.CommonPrefixes, ops.CommonPrefix{Prefix: prefix})
					out.KeyCount++
				}
				continue
			}
		}
		out.Contents = append(out.Contents, ops.Contents{
			Key: e.key, LastModified: e.rec.ModTime, ETag: e.rec.ETag,
			Size: e.rec.Size, StorageClass: "STANDARD",
		})
		out.KeyCount++
	}
	return out, nil
}

func (b *Backend) PutObject(ctx context.Context, in ops.PutObjectInput) (ops.PutObjectOutput, *s3err.Error) {
	digest := sha256Digest(in.Body)
	etagValue := md5ETag(in.Body)
	rec := objectRecord{
		Digest: digest, ETag: etagValue, Size: int64(len(in.Body)),
		ContentType: in.ContentType, Metadata: in.Metadata, ModTime: time.Now().UTC(),
	}

	var cond etag.Condition
	var hasCond bool
	if in.IfNoneMatch != "" {
		parsed, perr := etag.ParseCondition(in.IfNoneMatch)
		if perr != nil {
			return ops.PutObjectOutput{}, s3err.New(s3err.CodeInvalidArgument, "If-None-Match could not be parsed")
		}
		cond, hasCond = parsed, true
	}

	err := b.store.db.Update(func(tx *bolt.Tx) error {
		if _, exists := getBucketRecord(tx, in.Bucket); !exists {
			return ErrBucketNotFound
		}
		if hasCond {
			existing, exists := getObjectRecord(tx, in.Bucket, in.Key)
			var current etag.ETag
			if exists {
				current, _ = etag.Parse(existing.ETag)
			}
			if cond.Matches(exists, current, false) {
				return ErrPreconditionFailed
			}
		}
		if err := storeBlob(tx, digest, in.Body); err != nil {
			return err
		}
		return putObjectRecord(tx, in.Bucket, in.Key, rec)
	})
	switch err {
	case nil:
		return ops.PutObjectOutput{ETag: etagValue}, nil
	case ErrBucketNotFound:
		return ops.PutObjectOutput{}, s3err.New(s3err.CodeNoSuchBucket, "the specified bucket does not exist")
	case ErrPreconditionFailed:
		return ops.PutObjectOutput{}, s3err.New(s3err.CodePreconditionFailed, "At least one of the pre-conditions you specified did not hold")
	default:
		return ops.PutObjectOutput{}, s3err.Wrap(s3err.CodeInternalError, "failed to store object", err)
	}
}

func (b *Backend) GetObject(ctx context.Context, in ops.GetObjectInput) (ops.GetObjectOutput, *s3err.Error) {
	var rec objectRecord
	var data []byte
	err := b.store.db.View(func(tx *bolt.Tx) error {
		var exists bool
		rec, exists = getObjectRecord(tx, in.Bucket, in.Key)
		if !exists {
			return ErrObjectNotFound
		}
		var ok bool
		data, ok = loadBlob(tx, rec.Digest)
		if !ok {
			return ErrObjectNotFound
		}
		return nil
	})
	if err != nil {
		return ops.GetObjectOutput{}, s3err.New(s3err.CodeNoSuchKey, "the specified key does not exist")
	}
	if in.IfNoneMatch != "" {
		if cond, perr := etag.ParseCondition(in.IfNoneMatch); perr == nil {
			current, _ := etag.Parse(rec.ETag)
			if cond.Matches(true, current, false) {
				return ops.GetObjectOutput{}, s3err.New(s3err.CodePreconditionFailed, "At least one of the pre-conditions you specified did not hold")
			}
		}
	}
	return ops.GetObjectOutput{
		ContentType: rec.ContentType, ETag: rec.ETag, Metadata: rec.Metadata, Body: data,
	}, nil
}

func (b *Backend) HeadObject(ctx context.Context, in ops.HeadObjectInput) (ops.HeadObjectOutput, *s3err.Error) {
	var rec objectRecord
	var exists bool
	b.store.db.View(func(tx *bolt.Tx) error {
		rec, exists = getObjectRecord(tx, in.Bucket, in.Key)
		return nil
	})
	if !exists {
		return ops.HeadObjectOutput{}, s3err.New(s3err.CodeNoSuchKey, "the specified key does not exist")
	}
	return ops.HeadObjectOutput{
		ContentType: rec.ContentType, ContentLength: rec.Size, ETag: rec.ETag, Metadata: rec.Metadata,
	}, nil
}

func (b *Backend) DeleteObject(ctx context.Context, in ops.DeleteObjectInput) (ops.DeleteObjectOutput, *s3err.Error) {
	err := b.store.db.Update(func(tx *bolt.Tx) error {
		rec, exists := getObjectRecord(tx, in.Bucket, in.Key)
		if !exists {
			return nil // DeleteObject is idempotent: missing key is not an error
		}
		objs := tx.Bucket(objectsBucketName(in.Bucket))
		if err := objs.Delete([]byte(in.Key)); err != nil {
			return err
		}
		return decrementRefCount(tx, rec.Digest)
	})
	if err != nil {
		return ops.DeleteObjectOutput{}, s3err.Wrap(s3err.CodeInternalError, "failed to delete object", err)
	}
	return ops.DeleteObjectOutput{}, nil
}

func (b *Backend) CopyObject(ctx context.Context, in ops.CopyObjectInput) (ops.CopyObjectResult, *s3err.Error) {
	src, perr := s3path.ParseCopySource(in.CopySource)
	if perr != nil {
		return ops.CopyObjectResult{}, s3err.New(s3err.CodeInvalidArgument, "copy source could not be parsed")
	}
	var rec objectRecord
	now := time.Now().UTC()
	err := b.store.db.Update(func(tx *bolt.Tx) error {
		var exists bool
		rec, exists = getObjectRecord(tx, src.Bucket, src.Key)
		if !exists {
			return ErrObjectNotFound
		}
		if _, exists := getBucketRecord(tx, in.Bucket); !exists {
			return ErrBucketNotFound
		}
		if err := incrementRefCount(tx, rec.Digest); err != nil {
			return err
		}
		rec.ModTime = now
		return putObjectRecord(tx, in.Bucket, in.Key, rec)
	})
	switch err {
	case nil:
		return ops.CopyObjectResult{ETag: rec.ETag, LastModified: now}, nil
	case ErrObjectNotFound:
		return ops.CopyObjectResult{}, s3err.New(s3err.CodeNoSuchKey, "the copy source does not exist")
	case ErrBucketNotFound:
		return ops.CopyObjectResult{}, s3err.New(s3err.CodeNoSuchBucket, "the specified bucket does not exist")
	default:
		return ops.CopyObjectResult{}, s3err.Wrap(s3err.CodeInternalError, "failed to copy object", err)
	}
}

func (b *Backend) CreateMultipartUpload(ctx context.Context, in ops.CreateMultipartUploadInput) (ops.CreateMultipartUploadOutput, *s3err.Error) {
	uploadID := uuid.New().String()
	err := b.store.db.Update(func(tx *bolt.Tx) error {
		if _, exists := getBucketRecord(tx, in.Bucket); !exists {
			return ErrBucketNotFound
		}
		return tx.Bucket(uploadsBucket).Put([]byte(uploadID), encodeGob(uploadRecord{
			Bucket: in.Bucket, Key: in.Key, ContentType: in.ContentType, Metadata: in.Metadata, Initiated: time.Now().UTC(),
		}))
	})
	if err == ErrBucketNotFound {
		return ops.CreateMultipartUploadOutput{}, s3err.New(s3err.CodeNoSuchBucket, "the specified bucket does not exist")
	}
	if err != nil {
		return ops.CreateMultipartUploadOutput{}, s3err.Wrap(s3err.CodeInternalError, "failed to create multipart upload", err)
	}
	return ops.CreateMultipartUploadOutput{Bucket: in.Bucket, Key: in.Key, UploadId: uploadID}, nil
}

func (b *Backend) UploadPart(ctx context.Context, in ops.UploadPartInput) (ops.UploadPartOutput, *s3err.Error) {
	if in.PartNumber < 1 || in.PartNumber > 10000 {
		return ops.UploadPartOutput{}, s3err.New(s3err.CodeInvalidArgument, "part number must be between 1 and 10000")
	}
	digest := sha256Digest(in.Body)
	etag := md5ETag(in.Body)
	err := b.store.db.Update(func(tx *bolt.Tx) error {
		if _, exists := getUploadRecord(tx, in.UploadID); !exists {
			return ErrInvalidUploadID
		}
		if err := storeBlob(tx, digest, in.Body); err != nil {
			return err
		}
		parts, err := tx.CreateBucketIfNotExists(partsBucketName(in.UploadID))
		if err != nil {
			return err
		}
		return parts.Put(partNumberKey(in.PartNumber), encodeGob(partRecord{Digest: digest, ETag: etag, Size: int64(len(in.Body))}))
	})
	if err == ErrInvalidUploadID {
		return ops.UploadPartOutput{}, s3err.New(s3err.CodeNoSuchUpload, "the specified upload does not exist")
	}
	if err != nil {
		return ops.UploadPartOutput{}, s3err.Wrap(s3err.CodeInternalError, "failed to store part", err)
	}
	return ops.UploadPartOutput{ETag: etag}, nil
}

// CompleteMultipartUpload concatenates the listed parts in order,
// verifies the client-supplied part ETags match what was stored, and
// computes the multipart ETag S3 clients expect: MD5 of the concatenated
// per-part MD5 digests, followed by "-" and the part count. This
// example backend assembles synchronously, so KeepAlive always reports
// done on the first poll; a backend that assembles in the background
// would instead flip it once assembly finishes.
func (b *Backend) CompleteMultipartUpload(ctx context.Context, in ops.CompleteMultipartUploadInput) (ops.CompleteMultipartUploadOutput, *s3err.Error) {
	if len(in.Parts) == 0 {
		return ops.CompleteMultipartUploadOutput{}, s3err.New(s3err.CodeInvalidRequest, "you must specify at least one part")
	}

	var upload uploadRecord
	var finalETag string
	err := b.store.db.Update(func(tx *bolt.Tx) error {
		var exists bool
		upload, exists = getUploadRecord(tx, in.UploadID)
		if !exists {
			return ErrInvalidUploadID
		}

		var concatenated []byte
		var digestSum []byte
		lastPartNumber := 0
		for _, p := range in.Parts {
			if p.PartNumber <= lastPartNumber {
				return s3err.New(s3err.CodeInvalidPartOrder, "part number must be listed in ascending order")
			}
			lastPartNumber = p.PartNumber

			rec, ok := getPartRecord(tx, in.UploadID, p.PartNumber)
			if !ok {
				return s3err.New(s3err.CodeInvalidPart, fmt.Sprintf("part %d was not found", p.PartNumber))
			}
			if rec.ETag != p.ETag {
				return s3err.New(s3err.CodeInvalidPart, fmt.Sprintf("ETag for part %d does not match", p.PartNumber))
			}
			data, ok := loadBlob(tx, rec.Digest)
			if !ok {
				return s3err.New(s3err.CodeInvalidPart, fmt.Sprintf("part %d data missing", p.PartNumber))
			}
			concatenated = append(concatenated, data...)
			sum := checksum.NewMD5()
			sum.Write(data)
			digestSum = append(digestSum, sum.Sum(nil)...)
		}

		finalDigest := sha256Digest(concatenated)
		if err := storeBlob(tx, finalDigest, concatenated); err != nil {
			return err
		}
		outerSum := checksum.NewMD5()
		outerSum.Write(digestSum)
		finalETag = `"` + hex.EncodeToString(outerSum.Sum(nil)) + "-" + strconv.Itoa(len(in.Parts)) + `"`

		if err := putObjectRecord(tx, upload.Bucket, upload.Key, objectRecord{
			Digest: finalDigest, ETag: finalETag, Size: int64(len(concatenated)),
			ContentType: upload.ContentType, Metadata: upload.Metadata, ModTime: time.Now().UTC(),
		}); err != nil {
			return err
		}

		if err := deleteUploadParts(tx, in.UploadID); err != nil {
			return err
		}
		return tx.Bucket(uploadsBucket).Delete([]byte(in.UploadID))
	})

	switch {
	case err == ErrInvalidUploadID:
		return ops.CompleteMultipartUploadOutput{}, s3err.New(s3err.CodeNoSuchUpload, "the specified upload does not exist")
	case err != nil:
		if serr, ok := err.(*s3err.Error); ok {
			return ops.CompleteMultipartUploadOutput{}, serr
		}
		return ops.CompleteMultipartUploadOutput{}, s3err.Wrap(s3err.CodeInternalError, "failed to complete multipart upload", err)
	}

	done := true
	return ops.CompleteMultipartUploadOutput{
		Location: "/" + upload.Bucket + "/" + upload.Key,
		Bucket:   upload.Bucket, Key: upload.Key, ETag: finalETag,
		KeepAlive: func() bool { return done },
	}, nil
}

func (b *Backend) AbortMultipartUpload(ctx context.Context, in ops.AbortMultipartUploadInput) (ops.AbortMultipartUploadOutput, *s3err.Error) {
	err := b.store.db.Update(func(tx *bolt.Tx) error {
		if _, exists := getUploadRecord(tx, in.UploadID); !exists {
			return ErrInvalidUploadID
		}
		if err := deleteUploadParts(tx, in.UploadID); err != nil {
			return err
		}
		return tx.Bucket(uploadsBucket).Delete([]byte(in.UploadID))
	})
	if err == ErrInvalidUploadID {
		return ops.AbortMultipartUploadOutput{}, s3err.New(s3err.CodeNoSuchUpload, "the specified upload does not exist")
	}
	if err != nil {
		return ops.AbortMultipartUploadOutput{}, s3err.Wrap(s3err.CodeInternalError, "failed to abort multipart upload", err)
	}
	return ops.AbortMultipartUploadOutput{}, nil
}

func (b *Backend) ListParts(ctx context.Context, in ops.ListPartsInput) (ops.ListPartsOutput, *s3err.Error) {
	out := ops.ListPartsOutput{Bucket: in.Bucket, Key: in.Key, UploadId: in.UploadID}
	err := b.store.db.View(func(tx *bolt.Tx) error {
		if _, exists := getUploadRecord(tx, in.UploadID); !exists {
			return ErrInvalidUploadID
		}
		parts := tx.Bucket(partsBucketName(in.UploadID))
		if parts == nil {
			return nil
		}
		return parts.ForEach(func(k, v []byte) error {
			var rec partRecord
			if derr := decodeGob(v, &rec); derr != nil {
				return derr
			}
			out.Part = append(out.Part, ops.Part{
				PartNumber: partNumberFromKey(k), ETag: rec.ETag, Size: rec.Size,
			})
			return nil
		})
	})
	if err == ErrInvalidUploadID {
		return ops.ListPartsOutput{}, s3err.New(s3err.CodeNoSuchUpload, "the specified upload does not exist")
	}
	if err != nil {
		return ops.ListPartsOutput{}, s3err.Wrap(s3err.CodeInternalError, "failed to list parts", err)
	}
	sort.Slice(out.Part, func(i, j int) bool { return out.Part[i].PartNumber < out.Part[j].PartNumber })
	return out, nil
}

// PostObject implements ops.PostObjectBackend by delegating straight to
// PutObject, the documented default behavior for a backend with no
// POST-specific handling of its own.
func (b *Backend) PostObject(ctx context.Context, in ops.PostObjectInput) (ops.PostObjectOutput, *s3err.Error) {
	out, err := b.PutObject(ctx, in.ToPutObjectInput())
	if err != nil {
		return ops.PostObjectOutput{}, err
	}
	return ops.FromPutObjectOutput(out, in), nil
}

func deleteUploadParts(tx *bolt.Tx, uploadID string) error {
	parts := tx.Bucket(partsBucketName(uploadID))
	if parts == nil {
		return nil
	}
	err := parts.ForEach(func(k, v []byte) error {
		var rec partRecord
		if derr := decodeGob(v, &rec); derr != nil {
			return derr
		}
		return decrementRefCount(tx, rec.Digest)
	})
	if err != nil {
		return err
	}
	return tx.DeleteBucket(partsBucketName(uploadID))
}
