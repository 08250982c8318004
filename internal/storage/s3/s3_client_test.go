package s3_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/config"
	"invoicer/internal/port"
	s3store "invoicer/internal/storage/s3"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		f.deleted = append(f.deleted, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newClient(t *testing.T, endpoint string) port.ObjectStorage {
	t.Helper()
	c, err := s3store.NewS3Client(context.Background(), &config.S3Config{
		Region:    "us-east-1",
		Bucket:    "results",
		Endpoint:  endpoint,
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	return c
}

func TestS3Client_UploadAndDelete(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newClient(t, srv.URL)

	out, err := c.Upload(context.Background(), port.UploadInput{
		Bucket:      "results",
		Key:         "archives/session-1/processed-invoices.zip",
		Body:        bytes.NewReader([]byte("zip-bytes")),
		ContentType: "application/zip",
	})
	require.NoError(t, err)
	assert.Equal(t, `"abc123"`, out.ETag)
	assert.Contains(t, out.Location, "/results/archives/session-1/processed-invoices.zip")
	stored, ok := fake.objects["/results/archives/session-1/processed-invoices.zip"]
	require.True(t, ok)
	assert.Contains(t, string(stored), "zip-bytes")

	require.NoError(t, c.Delete(context.Background(), "results", "archives/session-1/processed-invoices.zip"))
	assert.Equal(t, []string{"/results/archives/session-1/processed-invoices.zip"}, fake.deleted)
}

func TestS3Client_PresignedURL(t *testing.T) {
	c := newClient(t, "http://localhost:9000")

	url, err := c.GetPresignedURL(context.Background(), "results", "archives/a.zip", 600)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/results/archives/a.zip?"))
	assert.Contains(t, url, "X-Amz-Expires=600")
}

func TestNewS3Client_RequiresBucket(t *testing.T) {
	_, err := s3store.NewS3Client(context.Background(), &config.S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}
