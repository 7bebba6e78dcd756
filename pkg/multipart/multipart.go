// Package multipart implements the streaming multipart/form-data parser
// and POST policy evaluator used by the POST Object flow (spec §4.10):
// a sorted field list plus at most one embedded file part, each under
// explicit size/count limits.
package multipart

import (
	"io"
	"mime"
	"mime/multipart"
	"sort"
	"strings"

	"github.com/s3gw-project/s3gw/pkg/s3err"
)

// Limits enforced while decoding, spec §4.10.
const (
	MaxFieldValue  = 1 << 20        // 1 MB
	MaxTotalFields = 20 << 20       // 20 MB
	MaxParts       = 1000
	MaxFileSize    = 5 << 30 // 5 GB, may be further bounded by policy content-length-range
)

// Field is one non-file part.
type Field struct {
	Name  string
	Value string
}

// File is the single embedded file part, if any.
type File struct {
	FieldName   string
	Filename    string
	ContentType string
	Data        []byte
}

// Form is the fully-decoded POST body: a sorted field list (by lowercased
// name, per spec §4.3's data model) and an optional file.
type Form struct {
	Fields []Field
	File   *File
}

// Get returns the value of the named field via binary search (field names
// are indexed sorted, spec §4.3), and whether it was present.
func (f *Form) Get(name string) (string, bool) {
	lname := strings.ToLower(name)
	i := sort.Search(len(f.Fields), func(i int) bool { return f.Fields[i].Name >= lname })
	if i < len(f.Fields) && f.Fields[i].Name == lname {
		return f.Fields[i].Value, true
	}
	return "", false
}

// Parse decodes a multipart/form-data body per the Content-Type boundary
// parameter. maxFileSize overrides MaxFileSize when smaller (the POST
// policy's content-length-range upper bound, spec §4.10); pass 0 to use
// the default.
func Parse(r io.Reader, contentType string, maxFileSize int64) (*Form, *s3err.Error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, s3err.New(s3err.CodeMalformedPOSTRequest, "invalid Content-Type for multipart/form-data")
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, s3err.New(s3err.CodeMalformedPOSTRequest, "missing multipart boundary")
	}
	if maxFileSize <= 0 || maxFileSize > MaxFileSize {
		maxFileSize = MaxFileSize
	}

	mr := multipart.NewReader(r, boundary)

	var (
		fields    []Field
		file      *File
		partCount int
		totalSize int64
	)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, s3err.New(s3err.CodeMalformedPOSTRequest, "malformed multipart body")
		}
		partCount++
		if partCount > MaxParts {
			return nil, s3err.New(s3err.CodeTooManyParts, "too many parts in multipart body")
		}

		if part.FileName() != "" {
			if file != nil {
				return nil, s3err.New(s3err.CodeMalformedPOSTRequest, "multiple file parts in multipart body")
			}
			data, _, serr := readBounded(part, maxFileSize)
			if serr != nil {
				return nil, serr
			}
			file = &File{
				FieldName:   part.FormName(),
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Data:        data,
			}
			continue
		}

		data, size, serr := readBounded(part, MaxFieldValue)
		if serr != nil {
			return nil, serr
		}
		totalSize += size
		if totalSize > MaxTotalFields {
			return nil, s3err.New(s3err.CodeMalformedPOSTRequest, "total field size exceeds limit")
		}
		fields = append(fields, Field{Name: strings.ToLower(part.FormName()), Value: string(data)})
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return &Form{Fields: fields, File: file}, nil
}

func readBounded(r io.Reader, max int64) ([]byte, int64, *s3err.Error) {
	limited := io.LimitReader(r, max+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, 0, s3err.New(s3err.CodeMalformedPOSTRequest, "error reading multipart part")
	}
	if int64(len(data)) > max {
		return nil, 0, s3err.New(s3err.CodeEntityTooLarge, "multipart part exceeds size limit")
	}
	return data, int64(len(data)), nil
}
