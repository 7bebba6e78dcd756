// Package ops implements the static operation table and DTO plumbing of
// spec §4.12: each operation declares how its input is read from a
// request (headers, query, path, metadata, XML body) and how its output
// is written back (headers, XML body, or a streaming body), driven by
// struct-field tags the way the teacher's pkg/server response types are
// declared with plain xml tags.
package ops

import (
	"encoding/xml"
	"reflect"
	"strconv"
	"strings"

	"github.com/s3gw-project/s3gw/pkg/headerview"
	"github.com/s3gw-project/s3gw/pkg/s3err"
	"github.com/s3gw-project/s3gw/pkg/s3path"
)

// Field-position tag values recognized in the `s3` struct tag, spec §4.12:
// header, query, payload, bucket, key, metadata, xml, sealed, s3s.
const (
	posHeader   = "header"
	posQuery    = "query"
	posBucket   = "bucket"
	posKey      = "key"
	posMetadata = "metadata"
	posSealed   = "sealed" // never serialized; internal-only field
	posS3S      = "s3s"    // synthesized by the dispatcher; never serialized
)

// RequestView is the subset of an inbound request a DTO reads from.
type RequestView struct {
	Path    s3path.Path
	Query   map[string][]string
	Headers *headerview.View
	Body    []byte
}

// ReadInput populates dst (a pointer to an operation's input struct) from
// view. Fields tagged `xml:"..."` without an `s3` tag are filled by
// unmarshaling Body as XML first; s3-tagged fields are then applied on
// top, so header/query/path values always win over a stale XML field of
// the same name.
func ReadInput(dst interface{}, view RequestView) *s3err.Error {
	rv := reflect.ValueOf(dst).Elem()
	rt := rv.Type()

	if hasXMLPayload(rt) && len(view.Body) > 0 {
		if err := xml.Unmarshal(view.Body, dst); err != nil {
			return s3err.New(s3err.CodeMalformedXML, "the XML you provided was not well-formed")
		}
	}

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("s3")
		if tag == "" {
			continue
		}
		pos, name, _ := strings.Cut(tag, ",")
		fv := rv.Field(i)

		switch pos {
		case posBucket:
			fv.SetString(view.Path.Bucket)
		case posKey:
			fv.SetString(view.Path.Key)
		case posHeader:
			if name == "" {
				name = field.Name
			}
			if v, _ := view.Headers.Get(name); v != "" {
				setScalar(fv, v)
			}
		case posQuery:
			if name == "" {
				name = field.Name
			}
			if vs, ok := view.Query[name]; ok && len(vs) > 0 {
				setScalar(fv, vs[0])
			}
		case posMetadata:
			meta := map[string]string{}
			for _, p := range view.Headers.All() {
				lname := strings.ToLower(p.Name)
				if strings.HasPrefix(lname, "x-amz-meta-") {
					meta[strings.TrimPrefix(lname, "x-amz-meta-")] = p.Value
				}
			}
			fv.Set(reflect.ValueOf(meta))
		case posSealed, posS3S:
			// never populated from the wire
		}
	}
	return nil
}

func hasXMLPayload(rt reflect.Type) bool {
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.Tag.Get("s3") == "" && f.Tag.Get("xml") != "" {
			return true
		}
	}
	return false
}

func setScalar(fv reflect.Value, value string) {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(value)
	case reflect.Int, reflect.Int64:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			fv.SetInt(n)
		}
	case reflect.Bool:
		fv.SetBool(value != "" && value != "false")
	}
}

// Output is the rendered form of an operation's response: headers to
// attach plus an XML body, or a pre-built streaming body.
type Output struct {
	Status int
	Headers map[string]string
	Body    []byte // XML, already serialized
	Stream  []byte // raw bytes for streaming GetObject-style responses
}

// WriteOutput renders src (a pointer to or value of an output struct)
// into an Output: header-tagged fields become response headers, metadata
// fields are re-expanded to x-amz-meta-* headers, and the remainder (the
// plain xml-tagged fields, matching the teacher's response DTOs) is
// marshaled as the XML body unless sealed.
func WriteOutput(src interface{}) (Output, *s3err.Error) {
	rv := reflect.ValueOf(src)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	rt := rv.Type()

	out := Output{Headers: map[string]string{}}
	hasBody := false

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("s3")
		fv := rv.Field(i)
		pos, name, _ := strings.Cut(tag, ",")

		switch pos {
		case posHeader:
			if name == "" {
				name = field.Name
			}
			out.Headers[name] = scalarString(fv)
		case posMetadata:
			if m, ok := fv.Interface().(map[string]string); ok {
				for k, v := range m {
					out.Headers["x-amz-meta-"+k] = v
				}
			}
		case posSealed, posS3S:
			// skip
		default:
			if field.Tag.Get("xml") != "" {
				hasBody = true
			}
		}
	}

	if hasBody {
		body, err := xml.Marshal(src)
		if err != nil {
			return Output{}, s3err.New(s3err.CodeInternalError, "failed to serialize response")
		}
		out.Body = append([]byte(xml.Header), body...)
		out.Headers["Content-Type"] = "application/xml"
	}
	return out, nil
}

func scalarString(fv reflect.Value) string {
	switch fv.Kind() {
	case reflect.String:
		return fv.String()
	case reflect.Int, reflect.Int64:
		return strconv.FormatInt(fv.Int(), 10)
	case reflect.Bool:
		return strconv.FormatBool(fv.Bool())
	default:
		return ""
	}
}
