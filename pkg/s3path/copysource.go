package s3path

import (
	"net/url"
	"strings"
)

// CopySource is the parsed form of an x-amz-copy-source header: the
// source bucket, key, and optional version ID. Generalizes the ad hoc
// string-splitting AWS SDKs (and the teacher's handler layer) otherwise
// do inline in every copy operation.
type CopySource struct {
	Bucket    string
	Key       string
	VersionID string
}

// ParseCopySource parses both forms AWS clients send: with and without a
// leading '/', and with the key percent-encoded or not. A trailing
// "?versionId=..." selects a specific version.
func ParseCopySource(header string) (CopySource, error) {
	header = strings.TrimPrefix(header, "/")

	path, query, _ := strings.Cut(header, "?")
	bucket, key, ok := strings.Cut(path, "/")
	if !ok || bucket == "" || key == "" {
		return CopySource{}, ErrInvalidPath
	}

	decodedKey, err := url.QueryUnescape(key)
	if err != nil {
		return CopySource{}, ErrInvalidPath
	}

	cs := CopySource{Bucket: bucket, Key: decodedKey}
	if query != "" {
		values, err := url.ParseQuery(query)
		if err == nil {
			cs.VersionID = values.Get("versionId")
		}
	}
	return cs, nil
}
