package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/c360studio/evorao/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves GetObject and PutObject for path-style requests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(req.URL.Path, "/")
	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.objects[key] = body
		f.puts++
		return response(http.StatusOK, nil, http.Header{"ETag": {"\"etag\""}}), nil
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return response(http.StatusNotFound,
				[]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`),
				http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return response(http.StatusOK, body, http.Header{
			"Content-Length": {fmt.Sprintf("%d", len(body))},
			"Content-Type":   {"application/json"},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
		}), nil
	}
	return response(http.StatusNotImplemented, nil, http.Header{}), nil
}

func response(status int, body []byte, h http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: h}
}

// decodeChunked unwraps a single-chunk aws-chunked payload.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 || parts[2] != "0" {
		return nil, false
	}
	var size int
	if _, err := fmt.Sscanf(parts[0], "%x", &size); err != nil || size != len(parts[1]) {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeS3Store(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	rt := &fakeS3{objects: make(map[string][]byte)}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return newS3Store(client, "evorao", ""), rt
}

func TestS3Store_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, rt := newFakeS3Store(t)
	assert.Equal(t, DriverS3, store.Driver())

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	c := New()
	c.Set("Rabies virus", &taxonomy.Result{Status: taxonomy.StatusCurrent, Current: &taxonomy.Entity{Label: "Rabies lyssavirus"}})
	c.Set("Nothing", nil)
	require.NoError(t, Save(ctx, store, c))
	assert.Equal(t, 1, rt.puts)
	assert.Contains(t, rt.objects, "evorao/"+DefaultObjectKey)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nothing", "Rabies virus"}, loaded.Labels())
	assert.False(t, loaded.FetchedAt().IsZero())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		driver  Driver
		wantErr bool
	}{
		{"default file", Config{Path: dir + "/c.json"}, DriverFile, false},
		{"sqlite", Config{Driver: DriverSQLite, Path: dir + "/c.db"}, DriverSQLite, false},
		{"s3 without bucket", Config{Driver: DriverS3}, "", true},
		{"unknown", Config{Driver: "redis"}, "", true},
		{"file without path", Config{Driver: DriverFile}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(ctx, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()
			assert.Equal(t, tt.driver, store.Driver())
		})
	}
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "data/ictv_cache.json", DefaultPath(DriverFile, "data/eva.jsonld"))
	assert.Equal(t, "data/ictv_cache.db", DefaultPath(DriverSQLite, "data/eva.jsonld"))
	assert.Equal(t, "ictv_cache.json", DefaultPath("", "eva.jsonld"))
}
