// Package dispatch implements the request dispatcher of spec §4.11: the
// central orchestrator that turns a decoded HTTP request into a routed
// operation call and a serialized response, sequencing path parsing,
// host parsing, signature verification, body materialization, operation
// resolution, access control, and response serialization.
package dispatch

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/s3gw-project/s3gw/pkg/bytestream"
	"github.com/s3gw-project/s3gw/pkg/chunked"
	"github.com/s3gw-project/s3gw/pkg/headerview"
	"github.com/s3gw-project/s3gw/pkg/hostparser"
	"github.com/s3gw-project/s3gw/pkg/ops"
	"github.com/s3gw-project/s3gw/pkg/s3err"
	"github.com/s3gw-project/s3gw/pkg/s3path"
	"github.com/s3gw-project/s3gw/pkg/sigv2"
	"github.com/s3gw-project/s3gw/pkg/sigv4"
)

// MaxBodyBytes bounds full-body materialization for XML-input operations
// (spec §4.11 step 12); well above any legitimate CompleteMultipartUpload
// document.
const MaxBodyBytes = 16 << 20

// Route is a custom, pre-operation-table handoff (spec §4.11 step 9): a
// collaborator that may claim a request before the static operation
// table is consulted.
type Route interface {
	Matches(method, uriPath string, headers *headerview.View) bool
	Handle(ctx context.Context, w http.ResponseWriter, r *http.Request) bool
}

// Dispatcher wires every external collaborator the core needs: the
// storage backend, credential stores for both signature schemes, the
// host parser, the path validator, the access policy, and any custom
// routes. All are optional except Backend.
type Dispatcher struct {
	Backend        ops.Backend
	CredentialsV4  sigv4.CredentialStore
	CredentialsV2  sigv2.CredentialStore
	HostParser     hostparser.Parser
	PathValidator  s3path.Validator
	AccessPolicy   ops.AccessPolicy
	RegionResolver RegionResolver
	Routes         []Route
	KeyCache       *sigv4.KeyCache
	Now            func() time.Time
}

// RegionResolver decides which configured region a request belongs to,
// given the host-parse result and parsed path. It is the supplemented
// "region-aware dispatch" feature: a multi-region deployment rejects a
// request signed for the wrong region rather than silently accepting it.
type RegionResolver interface {
	Resolve(host hostparser.Result, path s3path.Path) (region string, ok bool)
}

// trailerHandleKey is the context key under which the chunked decoder's
// trailing-headers handle is published for the duration of one request,
// so a Backend implementation can read trailer fields (e.g. a trailer
// checksum) once the body has been fully drained (spec §5).
type trailerHandleKey struct{}

// TrailerHandle retrieves the trailing-headers handle for a streaming
// aws-chunked request, if one was established. A Backend should only
// call Trailers() on it after it has fully read the request body.
func TrailerHandle(ctx context.Context) (*chunked.TrailerHandle, bool) {
	h, ok := ctx.Value(trailerHandleKey{}).(*chunked.TrailerHandle)
	return h, ok
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// ServeHTTP implements http.Handler, the core's single entry point.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	decodedPath, err := s3path.DecodeURI(r.URL.EscapedPath())
	if err != nil {
		writeError(w, s3err.New(s3err.CodeInvalidURI, "the request contains a malformed URI"))
		return
	}

	hostBucket := ""
	var hostResult hostparser.Result
	if d.HostParser != nil && !hostparser.IsIPLiteral(r.Host) {
		hostResult = d.HostParser.Parse(r.Host)
		hostBucket = hostResult.Bucket
	}

	validator := d.PathValidator
	if validator == nil {
		validator = s3path.DefaultValidator{}
	}
	path, perr := s3path.Parse(decodedPath, hostBucket, validator)
	if perr != nil {
		writeError(w, s3err.AsError(perr))
		return
	}

	query := r.URL.Query()
	headers := headerview.New(r.Header, r.Host)

	for _, route := range d.Routes {
		if route.Matches(r.Method, r.URL.Path, headers) {
			if route.Handle(ctx, w, r) {
				return
			}
		}
	}

	contentType := r.Header.Get("Content-Type")
	mimeType, _, _ := mime.ParseMediaType(contentType)

	var (
		body        io.Reader = r.Body
		trailer     *chunked.TrailerHandle
		decodedLen  int64 = -1
		signedRegion string
	)

	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(mimeType, "multipart/form-data"):
		d.handlePostObject(ctx, w, r, contentType)
		return

	case query.Get("X-Amz-Signature") != "":
		creds, serr := sigv4.VerifyPresigned(d.CredentialsV4, sigv4.VerifyPresignedInput{
			Method: r.Method, URIPath: decodedPath, RawQuery: query, Headers: headers, Now: d.now(), KeyCache: d.KeyCache,
		})
		if serr != nil {
			writeError(w, serr)
			return
		}
		signedRegion = creds.Region

	case r.Header.Get("Authorization") != "":
		auth, perr := sigv4.ParseAuthorizationHeader(r.Header.Get("Authorization"))
		if perr != nil {
			writeError(w, perr)
			return
		}
		amzDate := r.Header.Get("X-Amz-Date")
		if amzDate == "" {
			amzDate = r.Header.Get("Date")
		}
		payloadHashHeader := r.Header.Get("X-Amz-Content-Sha256")
		mode, fixedHash := sigv4.ParsePayloadMode(payloadHashHeader)

		creds, verr := sigv4.VerifyHeader(auth, d.CredentialsV4, sigv4.VerifyHeaderInput{
			Method: r.Method, URIPath: decodedPath, RawQuery: query, Headers: headers, AmzDate: amzDate,
			PayloadHash: payloadHashHeaderOrDefault(payloadHashHeader, fixedHash), KeyCache: d.KeyCache,
		})
		if verr != nil {
			writeError(w, verr)
			return
		}
		signedRegion = creds.Region

		if mode == sigv4.PayloadECDSAP256 || mode == sigv4.PayloadECDSAP256Trailer {
			writeError(w, s3err.New(s3err.CodeNotImplemented, "AWS4-ECDSA-P256-SHA256 streaming payloads are not supported"))
			return
		}

		if mode == sigv4.PayloadStreamingSigned || mode == sigv4.PayloadStreamingSignedTrailer || mode == sigv4.PayloadStreamingUnsignedTrailer {
			var signingKey []byte
			if mode != sigv4.PayloadStreamingUnsignedTrailer {
				signingKey = sigv4.DeriveSigningKey(d.KeyCache, creds.SecretAccessKey, auth.Scope.Date, auth.Scope.Region, auth.Scope.Service)
			}
			trailer = &chunked.TrailerHandle{}
			body = chunked.NewDecoder(r.Body, chunked.SeedSignature{
				Scope: auth.Scope, AmzDate: amzDate, SigningKey: signingKey, Seed: auth.Signature,
				Unsigned:      mode == sigv4.PayloadStreamingUnsignedTrailer,
				VerifyTrailer: mode == sigv4.PayloadStreamingSignedTrailer,
			}, trailer)
			if v := r.Header.Get("X-Amz-Decoded-Content-Length"); v != "" {
				if n, cerr := strconv.ParseInt(v, 10, 64); cerr == nil {
					decodedLen = n
				}
			}
		}

	default:
		// anonymous
	}

	if decodedLen >= 0 {
		r.ContentLength = decodedLen
	}

	if signedRegion != "" && d.RegionResolver != nil {
		if resolved, ok := d.RegionResolver.Resolve(hostResult, path); ok && resolved != signedRegion {
			writeError(w, s3err.New(s3err.CodeAuthorizationHeaderMalformed, "the region is wrong; expecting '"+resolved+"'"))
			return
		}
	}

	op, ok := ops.Resolve(r.Method, path.Kind, query)
	if !ok {
		writeError(w, s3err.New(s3err.CodeInvalidRequest, "no matching operation for this request"))
		return
	}
	if op.Name == "PutObject" && r.Header.Get("X-Amz-Copy-Source") != "" {
		op.Name = "CopyObject"
	}

	policy := d.AccessPolicy
	if policy == nil && (d.CredentialsV4 != nil || d.CredentialsV2 != nil) {
		policy = ops.DefaultAccessPolicy{}
	}
	if policy != nil {
		if aerr := policy.Authorize(ctx, ops.AccessContext{
			Operation: op.Name, Method: r.Method, URIPath: r.URL.Path, Bucket: path.Bucket, Key: path.Key,
			Authenticated: r.Header.Get("Authorization") != "" || query.Get("X-Amz-Signature") != "",
		}); aerr != nil {
			writeError(w, aerr)
			return
		}
	}

	var bodyBytes []byte
	if op.BodyRequired {
		bodyBytes, err = readBody(r, body)
		if err != nil {
			writeError(w, s3err.AsError(err))
			return
		}
	}

	view := ops.RequestView{Path: path, Query: map[string][]string(query), Headers: headers, Body: bodyBytes}
	if trailer != nil {
		ctx = context.WithValue(ctx, trailerHandleKey{}, trailer)
	}

	out, derr := d.call(ctx, op.Name, view, body)
	if derr != nil {
		writeError(w, derr)
		return
	}
	writeOutput(w, out)
}

func payloadHashHeaderOrDefault(declared, fixed string) string {
	if fixed != "" {
		return fixed
	}
	return declared
}

func readBody(r *http.Request, body io.Reader) ([]byte, error) {
	return bytestream.StoreAllLimited(bytestream.New(body, bytestream.Unknown), MaxBodyBytes)
}

func writeError(w http.ResponseWriter, e *s3err.Error) {
	body := e.ToBody()
	data, _ := marshalXML(body)
	for k, v := range e.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(e.HTTPStatus())
	w.Write(data)
}

func writeOutput(w http.ResponseWriter, out ops.Output) {
	for k, v := range out.Headers {
		w.Header().Set(k, v)
	}
	status := out.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(out.Body) > 0 {
		w.Write(out.Body)
	} else if len(out.Stream) > 0 {
		w.Write(out.Stream)
	}
}
