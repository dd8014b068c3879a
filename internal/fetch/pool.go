package fetch

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/gapscan/gapscan/internal/metrics"
)

// PoolConfig bounds the fan-out of a Pool.
type PoolConfig struct {
	Concurrency int
	PerHostMax  int
	PerHostRPS  float64
	Policy      RetryPolicy
}

// Pool fans fetches out over a bounded set of goroutines. Two nested gates
// apply: a global in-flight cap and a lower per-host cap, so one slow origin
// cannot monopolize the budget while other hosts proceed.
//
// A Pool either owns its Fetcher (created by NewPool, released by Close) or
// borrows one handed in by a caller that manages its lifetime across
// operations.
type Pool struct {
	fetcher Fetcher
	cfg     PoolConfig
	logger  *zap.Logger
	owned   bool

	mu        sync.Mutex
	hostGates map[string]*semaphore.Weighted
	hostRates map[string]*rate.Limiter
}

// NewPool creates a Pool that owns its colly-backed Fetcher.
func NewPool(cfg PoolConfig, collyCfg CollyConfig, logger *zap.Logger) *Pool {
	p := newPool(cfg, logger)
	p.fetcher = NewCollyFetcher(collyCfg)
	p.owned = true
	return p
}

// NewPoolWithFetcher creates a Pool over a borrowed Fetcher. The caller keeps
// ownership and is responsible for releasing it.
func NewPoolWithFetcher(cfg PoolConfig, fetcher Fetcher, logger *zap.Logger) *Pool {
	p := newPool(cfg, logger)
	p.fetcher = fetcher
	return p
}

func newPool(cfg PoolConfig, logger *zap.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.PerHostMax <= 0 || cfg.PerHostMax > cfg.Concurrency {
		cfg.PerHostMax = cfg.Concurrency
	}
	if cfg.Policy.MaxRetries <= 0 {
		cfg.Policy = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:       cfg,
		logger:    logger,
		hostGates: make(map[string]*semaphore.Weighted),
		hostRates: make(map[string]*rate.Limiter),
	}
}

// Close releases the owned fetcher's connections. Borrowed fetchers are left
// untouched.
func (p *Pool) Close() {
	if !p.owned {
		return
	}
	if c, ok := p.fetcher.(*CollyFetcher); ok {
		c.Close()
	}
}

// FetchAll fetches every URL and returns one Result per input URL. Exhausted
// retries yield a Result with a nil Body; FetchAll itself fails only when the
// context is canceled mid-flight.
func (p *Pool) FetchAll(ctx context.Context, urls []string) map[string]Result {
	results := make([]Result, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			// Each task owns its result slot, so the merge below needs
			// no locking.
			results[i] = p.fetchOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Result, len(urls))
	for i, u := range urls {
		out[u] = results[i]
	}

	succeeded := 0
	for _, r := range out {
		if r.OK() {
			succeeded++
		}
	}
	p.logger.Info("fetch batch complete",
		zap.Int("urls", len(urls)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(urls)-succeeded),
	)
	return out
}

func (p *Pool) fetchOne(ctx context.Context, rawURL string) Result {
	host := hostOf(rawURL)
	gate, limiter := p.hostControls(host)

	if err := gate.Acquire(ctx, 1); err != nil {
		return Result{}
	}
	defer gate.Release(1)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return Result{}
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveHostWait(host, waited)
	}

	return p.fetchWithRetry(ctx, rawURL)
}

func (p *Pool) fetchWithRetry(ctx context.Context, rawURL string) Result {
	var last Result
	for attempt := 0; attempt < p.cfg.Policy.MaxRetries; attempt++ {
		resp, err := p.fetcher.Fetch(ctx, rawURL)
		outcome := Classify(resp, err)
		metrics.ObserveFetchAttempt(rawURL, outcome.String())
		p.logger.Debug("fetch attempt",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.String("outcome", outcome.String()),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		last = Result{StatusCode: resp.StatusCode, Attempts: attempt + 1}

		switch outcome {
		case OutcomeOK:
			last.Body = resp.Body
			metrics.ObservePageFetched(rawURL, "ok", len(resp.Body))
			return last
		case OutcomeFatal:
			// Non-retryable client error: do not consume remaining attempts.
			p.logger.Warn("fetch failed permanently",
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode),
				zap.Error(err),
			)
			metrics.ObservePageFetched(rawURL, "fatal", 0)
			return last
		default:
			if !p.cfg.Policy.ShouldRetry(outcome, attempt) {
				continue
			}
			if err := sleep(ctx, p.cfg.Policy.Backoff(outcome, attempt)); err != nil {
				metrics.ObservePageFetched(rawURL, "canceled", 0)
				return last
			}
		}
	}
	p.logger.Warn("fetch retries exhausted",
		zap.String("url", rawURL),
		zap.Int("attempts", last.Attempts),
		zap.Int("status", last.StatusCode),
	)
	metrics.ObservePageFetched(rawURL, "exhausted", 0)
	return last
}

// hostControls returns the per-host gate and rate limiter, creating them on
// first use.
func (p *Pool) hostControls(host string) (*semaphore.Weighted, *rate.Limiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	gate, ok := p.hostGates[host]
	if !ok {
		gate = semaphore.NewWeighted(int64(p.cfg.PerHostMax))
		p.hostGates[host] = gate
	}
	limiter, ok := p.hostRates[host]
	if !ok {
		r := rate.Limit(p.cfg.PerHostRPS)
		if p.cfg.PerHostRPS <= 0 {
			r = rate.Inf
		}
		limiter = rate.NewLimiter(r, p.cfg.PerHostMax)
		p.hostRates[host] = limiter
	}
	return gate, limiter
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
