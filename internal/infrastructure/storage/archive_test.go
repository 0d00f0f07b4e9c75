package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/storefront/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMemoryArchive(t *testing.T) {
	ctx := context.Background()
	archive := NewMemoryArchive()

	body := []byte("date,description\n")
	require.NoError(t, archive.Put(ctx, "statements/a/1.csv", body, "text/csv"))
	body[0] = 'X'

	got, err := archive.Get(ctx, "statements/a/1.csv")
	require.NoError(t, err)
	assert.Equal(t, "date,description\n", string(got))

	exists, err := archive.Exists(ctx, "statements/a/1.csv")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = archive.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Error(t, archive.Put(ctx, "", body, "text/csv"))

	require.NoError(t, archive.Put(ctx, "statements/a/0.csv", nil, "text/csv"))
	assert.Equal(t, []string{"statements/a/0.csv", "statements/a/1.csv"}, archive.Keys())
}

func TestNewS3Archive_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.StorageConfig
		want string
	}{
		{"nil config", nil, "configuration is required"},
		{"missing bucket", &config.StorageConfig{AccessKey: "k", SecretKey: "s"}, "bucket is required"},
		{"missing access key", &config.StorageConfig{Bucket: "b", SecretKey: "s"}, "access key is required"},
		{"missing secret key", &config.StorageConfig{Bucket: "b", AccessKey: "k"}, "secret key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Archive(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	archive, err := NewS3Archive(&config.StorageConfig{Bucket: "statements", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "statements", archive.Bucket())
}

// fakeS3 is a minimal path-style S3 endpoint holding objects in memory
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = string(body)
		f.types[path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.objects[path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		_, _ = io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Archive_RoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	archive, err := NewS3Archive(&config.StorageConfig{
		Bucket:    "statements",
		AccessKey: "test-key",
		SecretKey: "test-secret",
		Endpoint:  server.URL,
		PathStyle: true,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, archive.Put(ctx, "acct/abc.csv", []byte("date,balance\n"), "text/csv"))

	fake.mu.Lock()
	assert.Equal(t, "date,balance\n", fake.objects["statements/acct/abc.csv"])
	assert.Equal(t, "text/csv", fake.types["statements/acct/abc.csv"])
	fake.mu.Unlock()

	got, err := archive.Get(ctx, "acct/abc.csv")
	require.NoError(t, err)
	assert.Equal(t, "date,balance\n", string(got))

	exists, err := archive.Exists(ctx, "acct/abc.csv")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = archive.Exists(ctx, "acct/missing.csv")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = archive.Get(ctx, "acct/missing.csv")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestNewArchive(t *testing.T) {
	ctx := context.Background()

	archive, err := NewArchive(ctx, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &MemoryArchive{}, archive)

	archive, err = NewArchive(ctx, &config.StorageConfig{Type: "memory"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &MemoryArchive{}, archive)

	_, err = NewArchive(ctx, &config.StorageConfig{Type: "gcs"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
