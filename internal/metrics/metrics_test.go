package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.COM/path", "example.com"},
		{"example.com/page", "example.com"},
		{"http://sub.site.org", "sub.site.org"},
		{"://bad url", "unknown"},
		{"", "unknown"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeHost(tc.in), "input %q", tc.in)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	// Collectors must be usable after repeated Init calls.
	ObserveFetchAttempt("https://example.com/a", "retryable")
	ObservePageFetched("https://example.com/a", "ok", 1024)
	ObserveEmbeddingBatch("ok", 10)
	ObserveGap("missing_content")
	ObserveStage("crawl", 2*time.Second)
	ObserveHostWait("example.com", 100*time.Millisecond)
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObservePageFetched("https://example.com/b", "ok", 10)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gapscan_pages_fetched_total")
}
