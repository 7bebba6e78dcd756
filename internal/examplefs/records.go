package examplefs

import (
	"bytes"
	"encoding/gob"
	"time"

	bolt "go.etcd.io/bbolt"
)

// bucketRecord is the gob-encoded value stored under a bucket's name in
// bucketsBucket, mirroring the teacher's per-bucket metadata file.
type bucketRecord struct {
	CreationDate time.Time
}

// objectRecord is the gob-encoded value stored per object key, inside
// the bucket's own nested "objects:<bucket>" bucket.
type objectRecord struct {
	Digest      string
	ETag        string
	Size        int64
	ContentType string
	Metadata    map[string]string
	ModTime     time.Time
}

// uploadRecord tracks one in-progress multipart upload.
type uploadRecord struct {
	Bucket      string
	Key         string
	ContentType string
	Metadata    map[string]string
	Initiated   time.Time
}

// partRecord is the gob-encoded value stored per part number, inside the
// upload's own nested "parts:<uploadID>" bucket.
type partRecord struct {
	Digest string
	ETag   string
	Size   int64
}

func encodeGob(v interface{}) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func getBucketRecord(tx *bolt.Tx, bucket string) (bucketRecord, bool) {
	data := tx.Bucket(bucketsBucket).Get([]byte(bucket))
	if data == nil {
		return bucketRecord{}, false
	}
	var rec bucketRecord
	if err := decodeGob(data, &rec); err != nil {
		return bucketRecord{}, false
	}
	return rec, true
}

func getObjectRecord(tx *bolt.Tx, bucket, key string) (objectRecord, bool) {
	objs := tx.Bucket(objectsBucketName(bucket))
	if objs == nil {
		return objectRecord{}, false
	}
	data := objs.Get([]byte(key))
	if data == nil {
		return objectRecord{}, false
	}
	var rec objectRecord
	if err := decodeGob(data, &rec); err != nil {
		return objectRecord{}, false
	}
	return rec, true
}

func putObjectRecord(tx *bolt.Tx, bucket, key string, rec objectRecord) error {
	objs, err := tx.CreateBucketIfNotExists(objectsBucketName(bucket))
	if err != nil {
		return err
	}
	return objs.Put([]byte(key), encodeGob(rec))
}

func getUploadRecord(tx *bolt.Tx, uploadID string) (uploadRecord, bool) {
	data := tx.Bucket(uploadsBucket).Get([]byte(uploadID))
	if data == nil {
		return uploadRecord{}, false
	}
	var rec uploadRecord
	if err := decodeGob(data, &rec); err != nil {
		return uploadRecord{}, false
	}
	return rec, true
}

func getPartRecord(tx *bolt.Tx, uploadID string, partNumber int) (partRecord, bool) {
	parts := tx.Bucket(partsBucketName(uploadID))
	if parts == nil {
		return partRecord{}, false
	}
	data := parts.Get(partNumberKey(partNumber))
	if data == nil {
		return partRecord{}, false
	}
	var rec partRecord
	if err := decodeGob(data, &rec); err != nil {
		return partRecord{}, false
	}
	return rec, true
}

func partNumberKey(n int) []byte {
	return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

func partNumberFromKey(k []byte) int {
	return int(k[0])<<24 | int(k[1])<<16 | int(k[2])<<8 | int(k[3])
}
