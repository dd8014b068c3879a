package fetch

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net/http"
	"time"
)

// Outcome classifies one fetch attempt. Keeping the class explicit lets the
// retry driver pattern-match on it instead of inspecting raw errors.
type Outcome int

// Attempt outcome classes ordered from best to worst.
const (
	OutcomeOK Outcome = iota
	OutcomeRetryable
	OutcomeRateLimited
	OutcomeFatal
)

// String returns the log/metric label for the outcome class.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "fatal"
	}
}

// Classify maps an attempt's response/error pair onto an outcome class:
// 2xx succeeds, 429 is rate-limited, other 4xx fail fast, everything else
// (5xx, timeouts, transport errors) is retryable. Context cancellation is
// fatal so a canceled run stops immediately.
func Classify(resp Response, err error) Outcome {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return OutcomeFatal
		}
		// Timeouts, per-attempt deadlines, and transport errors are all
		// transient.
		return OutcomeRetryable
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return OutcomeOK
	case resp.StatusCode == http.StatusTooManyRequests:
		return OutcomeRateLimited
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return OutcomeFatal
	default:
		return OutcomeRetryable
	}
}

// RetryPolicy drives jittered exponential backoff with separate caps for
// transient failures and rate-limit responses. HTTP 429 backs off for longer
// than a generic 5xx.
type RetryPolicy struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	RateLimitMax time.Duration
}

// DefaultRetryPolicy returns a policy with sane defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		RateLimitMax: time.Minute,
	}
}

// ShouldRetry decides whether another attempt is allowed for the outcome.
func (p RetryPolicy) ShouldRetry(outcome Outcome, attempt int) bool {
	if outcome == OutcomeOK || outcome == OutcomeFatal {
		return false
	}
	return attempt < p.MaxRetries-1
}

// Backoff returns the wait duration before the next attempt. The attempt
// index is zero-based; the delay doubles per attempt up to the class cap,
// with up to half the delay added as jitter.
func (p RetryPolicy) Backoff(outcome Outcome, attempt int) time.Duration {
	limit := p.MaxDelay
	if outcome == OutcomeRateLimited {
		limit = p.RateLimitMax
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(limit) {
		delay = float64(limit)
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// sleep waits for the backoff delay or until the context finishes.
func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
