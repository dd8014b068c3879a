package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollyFetcherFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gapscan-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	headers := http.Header{}
	headers.Set("X-Test", "yes")
	fetcher := NewCollyFetcher(CollyConfig{
		UserAgent: "gapscan-test/1.0",
		Timeout:   5 * time.Second,
		Headers:   headers,
	})
	defer fetcher.Close()

	resp, err := fetcher.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "hello")
	assert.Equal(t, srv.URL+"/page", resp.URL)
	assert.Greater(t, resp.Duration, time.Duration(0))
}

func TestCollyFetcherPreservesErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := NewCollyFetcher(CollyConfig{Timeout: 5 * time.Second})
	defer fetcher.Close()

	resp, err := fetcher.Fetch(context.Background(), srv.URL+"/missing")
	require.NoError(t, err, "HTTP error statuses are data, not errors")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCollyFetcherCanceledContext(t *testing.T) {
	t.Parallel()

	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-blocked
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(blocked)

	fetcher := NewCollyFetcher(CollyConfig{Timeout: 30 * time.Second})
	defer fetcher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fetcher.Fetch(ctx, srv.URL)
	require.Error(t, err)
}
