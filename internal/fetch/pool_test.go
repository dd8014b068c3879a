package fetch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gapscan/gapscan/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

// scriptedFetcher replays a fixed status sequence per URL, then keeps
// returning the last entry.
type scriptedFetcher struct {
	mu       sync.Mutex
	scripts  map[string][]int
	attempts map[string]int
}

func newScriptedFetcher(scripts map[string][]int) *scriptedFetcher {
	return &scriptedFetcher{
		scripts:  scripts,
		attempts: make(map[string]int),
	}
}

func (f *scriptedFetcher) Fetch(_ context.Context, rawURL string) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := f.scripts[rawURL]
	idx := f.attempts[rawURL]
	f.attempts[rawURL]++
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	status := seq[idx]
	if status == 0 {
		return Response{}, fmt.Errorf("dial tcp: connection refused")
	}
	resp := Response{URL: rawURL, StatusCode: status}
	if status == http.StatusOK {
		resp.Body = []byte("content for " + rawURL)
	}
	return resp, nil
}

func (f *scriptedFetcher) attemptsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[url]
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		RateLimitMax: 10 * time.Millisecond,
	}
}

func TestFetchAllMixedOutcomes(t *testing.T) {
	t.Parallel()

	// 10 URLs: 3 return 500 then 200, 2 always 404, rest succeed first try.
	scripts := make(map[string][]int)
	var urls []string
	for i := 0; i < 5; i++ {
		u := fmt.Sprintf("https://site-%d.com/page", i)
		urls = append(urls, u)
		scripts[u] = []int{http.StatusOK}
	}
	for i := 0; i < 3; i++ {
		u := fmt.Sprintf("https://flaky-%d.com/page", i)
		urls = append(urls, u)
		scripts[u] = []int{http.StatusInternalServerError, http.StatusOK}
	}
	for i := 0; i < 2; i++ {
		u := fmt.Sprintf("https://gone-%d.com/page", i)
		urls = append(urls, u)
		scripts[u] = []int{http.StatusNotFound}
	}

	fetcher := newScriptedFetcher(scripts)
	pool := NewPoolWithFetcher(PoolConfig{Concurrency: 4, PerHostMax: 2, Policy: fastPolicy()}, fetcher, nil)

	results := pool.FetchAll(context.Background(), urls)
	require.Len(t, results, 10)

	withContent := 0
	absent := 0
	for u, r := range results {
		if r.OK() {
			withContent++
			assert.Equal(t, http.StatusOK, r.StatusCode, u)
		} else {
			absent++
		}
	}
	assert.Equal(t, 8, withContent)
	assert.Equal(t, 2, absent)

	// 404s abort on the first attempt without consuming retries.
	assert.Equal(t, 1, fetcher.attemptsFor("https://gone-0.com/page"))
	// 500s recover on the second attempt.
	assert.Equal(t, 2, fetcher.attemptsFor("https://flaky-0.com/page"))
}

func TestFetchAllRetriesExhausted(t *testing.T) {
	t.Parallel()

	url := "https://down.com/page"
	fetcher := newScriptedFetcher(map[string][]int{url: {0}})
	pool := NewPoolWithFetcher(PoolConfig{Concurrency: 2, PerHostMax: 1, Policy: fastPolicy()}, fetcher, nil)

	results := pool.FetchAll(context.Background(), []string{url})
	require.Len(t, results, 1)
	assert.False(t, results[url].OK())
	assert.Equal(t, 3, results[url].Attempts)
}

func TestFetchAllRecoversAfterRateLimit(t *testing.T) {
	t.Parallel()

	url := "https://busy.com/page"
	fetcher := newScriptedFetcher(map[string][]int{url: {http.StatusTooManyRequests, http.StatusOK}})
	pool := NewPoolWithFetcher(PoolConfig{Concurrency: 1, PerHostMax: 1, Policy: fastPolicy()}, fetcher, nil)

	results := pool.FetchAll(context.Background(), []string{url})
	require.True(t, results[url].OK())
	assert.Equal(t, 2, results[url].Attempts)
}

// gatedFetcher counts concurrent in-flight calls.
type gatedFetcher struct {
	inFlight    atomic.Int32
	maxObserved atomic.Int32
}

func (f *gatedFetcher) Fetch(_ context.Context, rawURL string) (Response, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxObserved.Load()
		if cur <= prev || f.maxObserved.CompareAndSwap(prev, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return Response{URL: rawURL, StatusCode: http.StatusOK, Body: []byte("ok")}, nil
}

func TestFetchAllHonorsGlobalConcurrency(t *testing.T) {
	t.Parallel()

	fetcher := &gatedFetcher{}
	pool := NewPoolWithFetcher(PoolConfig{Concurrency: 3, PerHostMax: 3, Policy: fastPolicy()}, fetcher, nil)

	var urls []string
	for i := 0; i < 12; i++ {
		urls = append(urls, fmt.Sprintf("https://host-%d.com/p", i))
	}
	results := pool.FetchAll(context.Background(), urls)

	assert.Len(t, results, 12)
	assert.LessOrEqual(t, fetcher.maxObserved.Load(), int32(3))
}

func TestFetchAllHonorsPerHostCap(t *testing.T) {
	t.Parallel()

	fetcher := &gatedFetcher{}
	pool := NewPoolWithFetcher(PoolConfig{Concurrency: 8, PerHostMax: 1, Policy: fastPolicy()}, fetcher, nil)

	var urls []string
	for i := 0; i < 6; i++ {
		urls = append(urls, fmt.Sprintf("https://same-host.com/p%d", i))
	}
	results := pool.FetchAll(context.Background(), urls)

	assert.Len(t, results, 6)
	assert.LessOrEqual(t, fetcher.maxObserved.Load(), int32(1))
}

func TestFetchAllCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := newScriptedFetcher(map[string][]int{"https://a.com/p": {http.StatusOK}})
	pool := NewPoolWithFetcher(PoolConfig{Concurrency: 1, PerHostMax: 1, Policy: fastPolicy()}, fetcher, nil)

	results := pool.FetchAll(ctx, []string{"https://a.com/p"})
	require.Len(t, results, 1)
	assert.False(t, results["https://a.com/p"].OK())
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com", hostOf("https://Example.com/x"))
	assert.Equal(t, "unknown", hostOf("::not-a-url"))
}

func TestResultOK(t *testing.T) {
	t.Parallel()

	assert.False(t, Result{}.OK())
	assert.True(t, Result{Body: []byte("x")}.OK())
	assert.True(t, Result{Body: []byte{}}.OK(), "empty body still counts as fetched")
}
