package dispatch

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"time"

	"github.com/s3gw-project/s3gw/pkg/ops"
	"github.com/s3gw-project/s3gw/pkg/s3err"
)

// call dispatches a resolved operation to the backend (spec §4.11 step
// 13), reading its input DTO from view and rendering its output DTO into
// an ops.Output (step 14, minus the final HTTP write which the caller
// performs).
func (d *Dispatcher) call(ctx context.Context, opName string, view ops.RequestView, body io.Reader) (ops.Output, *s3err.Error) {
	switch opName {
	case "ListBuckets":
		var in ops.ListBucketsInput
		out, err := d.Backend.ListBuckets(ctx, in)
		return render(out, err)

	case "CreateBucket":
		var in ops.CreateBucketInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		out, err := d.Backend.CreateBucket(ctx, in)
		return render(out, err)

	case "HeadBucket":
		var in ops.HeadBucketInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		out, err := d.Backend.HeadBucket(ctx, in)
		return render(out, err)

	case "DeleteBucket":
		var in ops.DeleteBucketInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		out, err := d.Backend.DeleteBucket(ctx, in)
		return render(out, err)

	case "ListObjectsV2":
		var in ops.ListObjectsV2Input
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		out, err := d.Backend.ListObjectsV2(ctx, in)
		return render(out, err)

	case "PutObject":
		var in ops.PutObjectInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		data, rerr := io.ReadAll(body)
		if rerr != nil {
			return ops.Output{}, s3err.Wrap(s3err.CodeIncompleteBody, "failed to read request body", rerr)
		}
		in.Body = data
		out, err := d.Backend.PutObject(ctx, in)
		return render(out, err)

	case "GetObject":
		var in ops.GetObjectInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		out, err := d.Backend.GetObject(ctx, in)
		if err != nil {
			return ops.Output{}, err
		}
		rendered, rerr := render(out, nil)
		if rerr != nil {
			return ops.Output{}, rerr
		}
		rendered.Stream = out.Body
		return rendered, nil

	case "HeadObject":
		var in ops.HeadObjectInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		out, err := d.Backend.HeadObject(ctx, in)
		return render(out, err)

	case "DeleteObject":
		var in ops.DeleteObjectInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		out, err := d.Backend.DeleteObject(ctx, in)
		return render(out, err)

	case "CopyObject":
		var in ops.CopyObjectInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		out, err := d.Backend.CopyObject(ctx, in)
		return render(out, err)

	case "CreateMultipartUpload":
		var in ops.CreateMultipartUploadInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		out, err := d.Backend.CreateMultipartUpload(ctx, in)
		return render(out, err)

	case "UploadPart":
		var in ops.UploadPartInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		data, rerr := io.ReadAll(body)
		if rerr != nil {
			return ops.Output{}, s3err.Wrap(s3err.CodeIncompleteBody, "failed to read request body", rerr)
		}
		in.Body = data
		out, err := d.Backend.UploadPart(ctx, in)
		return render(out, err)

	case "CompleteMultipartUpload":
		var in ops.CompleteMultipartUploadInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		if err := xml.Unmarshal(view.Body, &in); err != nil {
			return ops.Output{}, s3err.New(s3err.CodeMalformedXML, "the XML you provided was not well-formed")
		}
		out, err := d.Backend.CompleteMultipartUpload(ctx, in)
		if err != nil {
			return ops.Output{}, err
		}
		for out.KeepAlive != nil && !out.KeepAlive() {
			// deferred-completion polling point (spec §9): a real HTTP
			// transport would flush whitespace to the client here.
			time.Sleep(time.Second)
		}
		return render(out, nil)

	case "AbortMultipartUpload":
		var in ops.AbortMultipartUploadInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		out, err := d.Backend.AbortMultipartUpload(ctx, in)
		return render(out, err)

	case "ListParts":
		var in ops.ListPartsInput
		if rerr := ops.ReadInput(&in, view); rerr != nil {
			return ops.Output{}, rerr
		}
		out, err := d.Backend.ListParts(ctx, in)
		return render(out, err)

	default:
		return ops.Output{}, s3err.New(s3err.CodeNotImplemented, "operation not implemented")
	}
}

func render(out interface{}, err *s3err.Error) (ops.Output, *s3err.Error) {
	if err != nil {
		return ops.Output{}, err
	}
	return ops.WriteOutput(out)
}

func marshalXML(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
