package dispatch

import (
	"context"
	"net/http"

	"github.com/s3gw-project/s3gw/pkg/multipart"
	"github.com/s3gw-project/s3gw/pkg/ops"
	"github.com/s3gw-project/s3gw/pkg/s3err"
	"github.com/s3gw-project/s3gw/pkg/sigv2"
)

// handlePostObject implements the POST Object branch of spec §4.11 step
// 7/10: the multipart body is fully decoded, its embedded POST policy is
// verified and evaluated, and the result is dispatched as PostObject (or
// PutObject, if the backend has no dedicated PostObject handler).
func (d *Dispatcher) handlePostObject(ctx context.Context, w http.ResponseWriter, r *http.Request, contentType string) {
	form, ferr := multipart.Parse(r.Body, contentType, 0)
	if ferr != nil {
		writeError(w, ferr)
		return
	}

	policyB64, _ := form.Get("policy")
	if policyB64 == "" {
		writeError(w, s3err.New(s3err.CodeInvalidArgument, "missing policy field"))
		return
	}
	policy, perr := multipart.DecodePolicy(policyB64)
	if perr != nil {
		writeError(w, perr)
		return
	}

	accessKeyID, _ := form.Get("x-amz-credential")
	signature, _ := form.Get("x-amz-signature")
	if accessKeyID == "" {
		accessKeyID, _ = form.Get("awsaccesskeyid")
		signature, _ = form.Get("signature")
	}
	if d.CredentialsV2 != nil {
		if _, serr := sigv2.VerifyPOST(d.CredentialsV2, accessKeyID, policyB64, signature); serr != nil {
			writeError(w, serr)
			return
		}
	}

	fileSize := int64(0)
	if form.File != nil {
		fileSize = int64(len(form.File.Data))
	}
	maxFileSize := multipart.MaxFileSizeForPolicy(policy)
	if fileSize > maxFileSize {
		writeError(w, s3err.New(s3err.CodeEntityTooLarge, "file exceeds policy content-length-range maximum"))
		return
	}
	if eerr := multipart.Evaluate(policy, d.now(), form, fileSize); eerr != nil {
		writeError(w, eerr)
		return
	}

	bucket, _ := form.Get("bucket")
	key, _ := form.Get("key")
	contentTypeField, _ := form.Get("content-type")
	successRedirect, _ := form.Get("success_action_redirect")
	successStatus, _ := form.Get("success_action_status")

	in := ops.PostObjectInput{
		Bucket:                bucket,
		Key:                   key,
		ContentType:           contentTypeField,
		Policy:                policyB64,
		SuccessActionRedirect: successRedirect,
		SuccessActionStatus:   successStatus,
	}
	if form.File != nil {
		in.Body = form.File.Data
		if in.ContentType == "" {
			in.ContentType = form.File.ContentType
		}
	}

	if pb, ok := d.Backend.(ops.PostObjectBackend); ok {
		out, derr := pb.PostObject(ctx, in)
		if derr != nil {
			writeError(w, derr)
			return
		}
		writePostObjectOutput(w, out)
		return
	}

	putOut, derr := d.Backend.PutObject(ctx, in.ToPutObjectInput())
	if derr != nil {
		writeError(w, derr)
		return
	}
	writePostObjectOutput(w, ops.FromPutObjectOutput(putOut, in))
}

func writePostObjectOutput(w http.ResponseWriter, out ops.PostObjectOutput) {
	if out.ETag != "" {
		w.Header().Set("ETag", out.ETag)
	}
	status := http.StatusNoContent
	if out.SuccessActionRedirect != "" {
		w.Header().Set("Location", out.SuccessActionRedirect)
		status = http.StatusSeeOther
	} else if out.SuccessActionStatus != "" {
		switch out.SuccessActionStatus {
		case "200":
			status = http.StatusOK
		case "201":
			status = http.StatusCreated
		}
	}
	w.WriteHeader(status)
}
