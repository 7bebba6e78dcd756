// Package integration drives the assembled service.Service, over a real
// net.Listen socket, with the actual aws-sdk-go-v2 S3 client — the same
// harness shape the teacher's test/integration package uses against its
// own server.NewS3Handler.
package integration

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/s3gw-project/s3gw/internal/examplefs"
	"github.com/s3gw-project/s3gw/pkg/service"
)

const (
	testAccessKey = "AKIAEXAMPLETESTKEY12"
	testSecretKey = "example/secret/testkeythatislongenough1234"
	testRegion    = "us-east-1"
)

type testServer struct {
	listener net.Listener
	srv      *http.Server
	store    *examplefs.Store
	tmpDir   string
	ctx      context.Context
	client   *s3.Client
}

var ts *testServer

func TestMain(m *testing.M) {
	s, err := setupTestServer()
	if err != nil {
		panic(err)
	}
	ts = s
	code := m.Run()
	ts.cleanup()
	os.Exit(code)
}

func setupTestServer() (*testServer, error) {
	tmpDir, err := os.MkdirTemp("", "s3gw-integration-")
	if err != nil {
		return nil, err
	}

	store, err := examplefs.Open(filepath.Join(tmpDir, "s3gw.db"))
	if err != nil {
		return nil, err
	}
	backend := examplefs.NewBackend(store)

	creds := examplefs.CredentialStore{testAccessKey: testSecretKey}
	handler := service.New(
		service.WithBackend(backend),
		service.WithCredentialsV4(creds),
		service.WithRegions(testRegion),
		service.WithConfig(service.StaticConfig(service.Config{DefaultRegion: testRegion})),
	)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	httpSrv := &http.Server{Handler: handler}
	go httpSrv.Serve(listener)
	time.Sleep(100 * time.Millisecond)

	endpoint := "http://" + listener.Addr().String()
	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(testRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(testAccessKey, testSecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &testServer{
		listener: listener,
		srv:      httpSrv,
		store:    store,
		tmpDir:   tmpDir,
		ctx:      ctx,
		client:   client,
	}, nil
}

func (s *testServer) cleanup() {
	s.srv.Shutdown(context.Background())
	s.listener.Close()
	s.store.Close()
	os.RemoveAll(s.tmpDir)
}
