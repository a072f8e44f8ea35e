package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledStore(t *testing.T) {
	ctx := context.Background()
	var store ObjectStore = DisabledStore{}

	assert.ErrorIs(t, store.Put(ctx, "k", strings.NewReader("x"), 1, "text/plain"), ErrNotConfigured)
	_, err := store.PresignGet(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, store.Delete(ctx, "k"), ErrNotConfigured)
}

type seenRequest struct {
	method string
	path   string
}

func newTestS3(t *testing.T) (*S3Store, *[]seenRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []seenRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, seenRequest{method: r.Method, path: r.URL.Path})
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	store, err := NewS3Store(context.Background(), S3Options{
		Bucket:          "certs",
		Region:          "ap-southeast-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)
	return store, &seen
}

func TestS3StorePresignUsesPathStyleEndpoint(t *testing.T) {
	store, _ := newTestS3(t)

	url, err := store.PresignGet(context.Background(), "technicians/t1/cert.pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "/certs/technicians/t1/cert.pdf")
	assert.Contains(t, url, "X-Amz-Expires=900")
}

func TestS3StorePutAndDelete(t *testing.T) {
	store, seen := newTestS3(t)
	ctx := context.Background()

	body := "%PDF-1.4"
	require.NoError(t, store.Put(ctx, "technicians/t1/cert.pdf", strings.NewReader(body), int64(len(body)), "application/pdf"))
	require.NoError(t, store.Delete(ctx, "technicians/t1/cert.pdf"))

	require.Len(t, *seen, 2)
	assert.Equal(t, seenRequest{method: http.MethodPut, path: "/certs/technicians/t1/cert.pdf"}, (*seen)[0])
	assert.Equal(t, seenRequest{method: http.MethodDelete, path: "/certs/technicians/t1/cert.pdf"}, (*seen)[1])
}
