package ops

import (
	"net/http"

	"github.com/s3gw-project/s3gw/pkg/s3path"
)

// Operation describes one entry of the static operation table, spec
// §4.12: method, path shape, discriminating query keys, and whether the
// body must be fully materialized before dispatch.
type Operation struct {
	Name         string
	Method       string
	PathKind     s3path.Kind
	RequireQuery []string // query keys that MUST be present to match
	ForbidQuery  []string // query keys that must NOT be present to match
	BodyRequired bool
}

// Table is the fixed, ordered list of recognized operations. Order
// matters: more specific query-discriminated entries are listed before
// their general fallback (e.g. CreateMultipartUpload's "?uploads" before
// GetObject/PutObject's plain Object-path entries).
var Table = []Operation{
	{Name: "ListBuckets", Method: http.MethodGet, PathKind: s3path.Root},

	{Name: "CreateBucket", Method: http.MethodPut, PathKind: s3path.Bucket},
	{Name: "HeadBucket", Method: http.MethodHead, PathKind: s3path.Bucket},
	{Name: "DeleteBucket", Method: http.MethodDelete, PathKind: s3path.Bucket},
	{Name: "ListObjectsV2", Method: http.MethodGet, PathKind: s3path.Bucket, RequireQuery: []string{"list-type"}},
	{Name: "ListObjectsV2", Method: http.MethodGet, PathKind: s3path.Bucket},

	{Name: "CreateMultipartUpload", Method: http.MethodPost, PathKind: s3path.Object, RequireQuery: []string{"uploads"}},
	{Name: "UploadPart", Method: http.MethodPut, PathKind: s3path.Object, RequireQuery: []string{"partNumber", "uploadId"}},
	{Name: "CompleteMultipartUpload", Method: http.MethodPost, PathKind: s3path.Object, RequireQuery: []string{"uploadId"}, BodyRequired: true},
	{Name: "AbortMultipartUpload", Method: http.MethodDelete, PathKind: s3path.Object, RequireQuery: []string{"uploadId"}},
	{Name: "ListParts", Method: http.MethodGet, PathKind: s3path.Object, RequireQuery: []string{"uploadId"}},

	// PutObject matches first; the dispatcher rewrites the operation name to
	// CopyObject when X-Amz-Copy-Source is present (disambiguated by header,
	// not query shape).
	{Name: "PutObject", Method: http.MethodPut, PathKind: s3path.Object},
	{Name: "GetObject", Method: http.MethodGet, PathKind: s3path.Object},
	{Name: "HeadObject", Method: http.MethodHead, PathKind: s3path.Object},
	{Name: "DeleteObject", Method: http.MethodDelete, PathKind: s3path.Object},
}

// Resolve finds the first matching operation for (method, pathKind,
// query), spec §4.11 step 10. PostObject and CopyObject are handled by
// the caller before/around this lookup since they are discriminated by
// mime-type and header presence respectively, not purely by query shape.
func Resolve(method string, pathKind s3path.Kind, query map[string][]string) (Operation, bool) {
	for _, op := range Table {
		if op.Method != method || op.PathKind != pathKind {
			continue
		}
		if !hasAll(query, op.RequireQuery) {
			continue
		}
		if hasAny(query, op.ForbidQuery) {
			continue
		}
		return op, true
	}
	return Operation{}, false
}

func hasAll(query map[string][]string, keys []string) bool {
	for _, k := range keys {
		if _, ok := query[k]; !ok {
			return false
		}
	}
	return true
}

func hasAny(query map[string][]string, keys []string) bool {
	for _, k := range keys {
		if _, ok := query[k]; ok {
			return true
		}
	}
	return false
}
