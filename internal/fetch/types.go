// Package fetch implements the bounded-concurrency fetch layer that turns a
// list of URLs into raw page content under partial network failure.
package fetch

import (
	"context"
	"net/http"
	"time"
)

// Response is the result of a single HTTP GET attempt.
type Response struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher executes a single HTTP GET. Implementations must be safe for
// concurrent use; the pool issues many Fetch calls in parallel against one
// shared transport.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Response, error)
}

// Result is one slot in the fan-out output map. A Result with a nil Body
// means every retry was exhausted; per-URL failure is never surfaced as an
// error from the pool.
type Result struct {
	Body       []byte
	StatusCode int
	Attempts   int
}

// OK reports whether the fetch produced content.
func (r Result) OK() bool {
	return r.Body != nil
}
