// Package service is the façade the core exposes to an embedder: a
// functional-options builder (generalized from wzshiming/s3d's
// server.Option / server.NewS3Handler pattern) that wires the dispatcher
// collaborators together into a plain http.Handler, adds per-request
// x-amz-request-id/x-amz-id-2 headers, and wraps the result with the
// access-log and CORS middleware the teacher's cmd/s3d/main.go applies
// by hand.
package service

import (
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"

	"github.com/s3gw-project/s3gw/pkg/dispatch"
	"github.com/s3gw-project/s3gw/pkg/hostparser"
	"github.com/s3gw-project/s3gw/pkg/ops"
	"github.com/s3gw-project/s3gw/pkg/s3path"
	"github.com/s3gw-project/s3gw/pkg/sigv2"
	"github.com/s3gw-project/s3gw/pkg/sigv4"
)

// Config is an immutable configuration snapshot. A Service reads it once
// per request through its ConfigProvider, so a provider can hot-swap
// Config values (e.g. on a credential file reload) without restarting
// the listener.
type Config struct {
	DefaultRegion string
	AccessLog     bool
	CORS          bool
	CORSOrigins   []string
}

// ConfigProvider returns the current configuration snapshot. The
// simplest provider is a closure over an *atomic.Pointer[Config]; tests
// can use StaticConfig.
type ConfigProvider func() Config

// StaticConfig returns a ConfigProvider that always returns cfg.
func StaticConfig(cfg Config) ConfigProvider {
	return func() Config { return cfg }
}

// Service is the assembled S3-compatible handler. The zero value is not
// usable; build one with New.
type Service struct {
	dispatcher *dispatch.Dispatcher
	config     ConfigProvider
	handler    http.Handler
}

// Option configures a Service under construction, mirroring the
// teacher's server.Option pattern.
type Option func(*Service)

// WithBackend sets the storage collaborator. Required.
func WithBackend(b ops.Backend) Option {
	return func(s *Service) { s.dispatcher.Backend = b }
}

// WithCredentialsV4 sets the SigV4 credential store.
func WithCredentialsV4(store sigv4.CredentialStore) Option {
	return func(s *Service) { s.dispatcher.CredentialsV4 = store }
}

// WithCredentialsV2 sets the legacy SigV2 credential store.
func WithCredentialsV2(store sigv2.CredentialStore) Option {
	return func(s *Service) { s.dispatcher.CredentialsV2 = store }
}

// WithHostParser sets the virtual-host Host-header parser.
func WithHostParser(p hostparser.Parser) Option {
	return func(s *Service) { s.dispatcher.HostParser = p }
}

// WithPathValidator overrides the default bucket/key validation rules.
func WithPathValidator(v s3path.Validator) Option {
	return func(s *Service) { s.dispatcher.PathValidator = v }
}

// WithAccessPolicy overrides the default deny-unauthenticated policy.
func WithAccessPolicy(p ops.AccessPolicy) Option {
	return func(s *Service) { s.dispatcher.AccessPolicy = p }
}

// WithRoutes registers custom pre-operation-table routes.
func WithRoutes(routes ...dispatch.Route) Option {
	return func(s *Service) { s.dispatcher.Routes = append(s.dispatcher.Routes, routes...) }
}

// WithRegions configures the region-aware dispatch supplement: requests
// signed for a region other than the one resolved from the host/path are
// rejected with AuthorizationHeaderMalformed. defaultRegion is used when
// the host doesn't carry an explicit region (e.g. path-style requests).
func WithRegions(defaultRegion string, known ...string) Option {
	return func(s *Service) { s.dispatcher.RegionResolver = newRegionTable(defaultRegion, known) }
}

// WithKeyCache installs a shared signing-key cache across requests.
func WithKeyCache(cache *sigv4.KeyCache) Option {
	return func(s *Service) { s.dispatcher.KeyCache = cache }
}

// WithClock overrides the dispatcher's notion of "now", for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.dispatcher.Now = now }
}

// WithConfig installs a hot-reloadable configuration provider. Without
// one, New uses StaticConfig(Config{}).
func WithConfig(p ConfigProvider) Option {
	return func(s *Service) { s.config = p }
}

// New builds the assembled handler. The functional options run in order
// against a Dispatcher seeded with sigv4.NewKeyCache's default size;
// middleware (request-ID, access log, CORS) is layered on last so every
// option has already been applied to the dispatcher it wraps.
func New(opts ...Option) *Service {
	s := &Service{
		dispatcher: &dispatch.Dispatcher{KeyCache: sigv4.NewKeyCache()},
		config:     StaticConfig(Config{DefaultRegion: "us-east-1"}),
	}
	for _, opt := range opts {
		opt(s)
	}

	var h http.Handler = requestIDMiddleware(s.dispatcher)
	cfg := s.config()
	if cfg.CORS {
		h = handlers.CORS(handlers.AllowedOrigins(corsOriginsOrWildcard(cfg.CORSOrigins)))(h)
	}
	if cfg.AccessLog {
		h = handlers.CombinedLoggingHandler(os.Stdout, h)
	}
	s.handler = h
	return s
}

func corsOriginsOrWildcard(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// ServeHTTP implements http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// requestIDMiddleware stamps every response with x-amz-request-id and
// x-amz-id-2 before handing off to next, matching the pair of opaque
// identifiers real S3 returns on every response (including error
// responses) for support correlation.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-amz-request-id", uuid.New().String())
		w.Header().Set("x-amz-id-2", uuid.New().String())
		next.ServeHTTP(w, r)
	})
}
