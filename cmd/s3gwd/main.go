// Command s3gwd runs the core request-processing pipeline against the
// bundled example filesystem backend. It is not part of the core: a
// real deployment would supply its own Backend, credential store, and
// access policy and assemble them with pkg/service directly.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/julienschmidt/httprouter"

	"github.com/s3gw-project/s3gw/internal/examplefs"
	"github.com/s3gw-project/s3gw/pkg/hostparser"
	"github.com/s3gw-project/s3gw/pkg/service"
)

type cli struct {
	Addr        string   `default:":8080" help:"Listen address."`
	DataDir     string   `default:"./data" help:"Directory holding the bbolt database file."`
	Credentials string   `help:"Comma-separated accessKeyID:secretAccessKey pairs. Anonymous access only when empty."`
	Region      string   `default:"us-east-1" help:"Default region for signature verification and Location headers."`
	Regions     []string `help:"Additional regions accepted alongside --region."`
	Domain      string   `help:"Virtual-host suffix, e.g. s3.example.com. Omit to require path-style requests only."`
	AccessLog   bool     `default:"true" help:"Wrap the handler with a combined (Apache-style) access log on stdout."`
	CORS        bool     `help:"Allow cross-origin requests from any origin."`
}

func parseCredentials(raw string) examplefs.CredentialStore {
	store := examplefs.CredentialStore{}
	if raw == "" {
		return store
	}
	for _, pair := range strings.Split(raw, ",") {
		accessKey, secret, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		store[accessKey] = secret
	}
	return store
}

func buildHandler(c *cli) (http.Handler, error) {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := examplefs.Open(c.DataDir + "/s3gwd.db")
	if err != nil {
		return nil, fmt.Errorf("open example backend: %w", err)
	}
	backend := examplefs.NewBackend(store)

	opts := []service.Option{
		service.WithBackend(backend),
		service.WithRegions(c.Region, c.Regions...),
		service.WithConfig(service.StaticConfig(service.Config{
			DefaultRegion: c.Region,
			AccessLog:     c.AccessLog,
			CORS:          c.CORS,
		})),
	}

	if c.Domain != "" {
		opts = append(opts, service.WithHostParser(hostparser.NewSingleDomain(c.Domain)))
	}

	if c.Credentials != "" {
		creds := parseCredentials(c.Credentials)
		opts = append(opts,
			service.WithCredentialsV4(creds),
			service.WithCredentialsV2(creds),
		)
	}

	return service.New(opts...), nil
}

// withOperatorRoutes fronts handler with a small httprouter mux for the
// operator-facing endpoints every deployment needs alongside the S3 API
// itself (here just a liveness probe); every other path falls through to
// the S3 dispatcher unchanged.
func withOperatorRoutes(handler http.Handler) http.Handler {
	mux := httprouter.New()
	mux.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.NotFound = handler
	return mux
}

func main() {
	var c cli
	kong.Parse(&c)

	handler, err := buildHandler(&c)
	if err != nil {
		log.Fatalf("s3gwd: %v", err)
	}

	log.Printf("s3gwd listening on %s (data dir %s, region %s)", c.Addr, c.DataDir, c.Region)
	if c.Credentials == "" {
		log.Printf("s3gwd: no credentials configured, every request is anonymous")
	}
	if err := http.ListenAndServe(c.Addr, withOperatorRoutes(handler)); err != nil {
		log.Fatalf("s3gwd: %v", err)
	}
}
