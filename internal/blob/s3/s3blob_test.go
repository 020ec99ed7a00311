package s3blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/pricearb/internal/config"
)

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("https://minio:9000", false))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("e2.example.com", true))
}

func TestNewValidation(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	assert.ErrorContains(t, err, "bucket")

	_, err = New(context.Background(), ClientConfig{Bucket: "b"})
	assert.ErrorContains(t, err, "region")
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.ArchiveConfig{Bucket: "arb", Region: "eu-west-1", ForcePathStyle: true})
	assert.Equal(t, "arb", cfg.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.True(t, cfg.ForcePathStyle)
	assert.True(t, cfg.UseSSL)
}

func TestPutAgainstCompatibleEndpoint(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		ctype  string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method, path, ctype = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(context.Background(), ClientConfig{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		Bucket:         "archive",
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "archive", c.Bucket())

	err = NewWriter(c).Put(context.Background(), "snapshots/2026/03/abc.json",
		bytes.NewReader([]byte(`{"ok":true}`)), "application/json")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/archive/snapshots/2026/03/abc.json", path)
	assert.Equal(t, "application/json", ctype)
	assert.Contains(t, string(body), `{"ok":true}`)
}
