package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp Response
		err  error
		want Outcome
	}{
		{"success", Response{StatusCode: http.StatusOK}, nil, OutcomeOK},
		{"created", Response{StatusCode: http.StatusCreated}, nil, OutcomeOK},
		{"rate limited", Response{StatusCode: http.StatusTooManyRequests}, nil, OutcomeRateLimited},
		{"not found", Response{StatusCode: http.StatusNotFound}, nil, OutcomeFatal},
		{"forbidden", Response{StatusCode: http.StatusForbidden}, nil, OutcomeFatal},
		{"server error", Response{StatusCode: http.StatusInternalServerError}, nil, OutcomeRetryable},
		{"bad gateway", Response{StatusCode: http.StatusBadGateway}, nil, OutcomeRetryable},
		{"transport error", Response{}, errors.New("connection refused"), OutcomeRetryable},
		{"deadline", Response{}, context.DeadlineExceeded, OutcomeRetryable},
		{"canceled", Response{}, context.Canceled, OutcomeFatal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Classify(tc.resp, tc.err))
		})
	}
}

func TestRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second, RateLimitMax: time.Second}

	assert.True(t, p.ShouldRetry(OutcomeRetryable, 0))
	assert.True(t, p.ShouldRetry(OutcomeRateLimited, 1))
	assert.False(t, p.ShouldRetry(OutcomeRetryable, 2), "last attempt must not retry")
	assert.False(t, p.ShouldRetry(OutcomeOK, 0))
	assert.False(t, p.ShouldRetry(OutcomeFatal, 0))
}

func TestRetryPolicyBackoffCaps(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{
		MaxRetries:   5,
		BaseDelay:    time.Second,
		MaxDelay:     2 * time.Second,
		RateLimitMax: 8 * time.Second,
	}

	// Transient backoff is capped at MaxDelay even with jitter.
	for attempt := 0; attempt < 5; attempt++ {
		d := p.Backoff(OutcomeRetryable, attempt)
		assert.LessOrEqual(t, d, 2*time.Second, "attempt %d", attempt)
		assert.Greater(t, d, time.Duration(0))
	}

	// Rate limit backoff grows past the transient cap.
	d := p.Backoff(OutcomeRateLimited, 3)
	assert.Greater(t, d, 2*time.Second)
	assert.LessOrEqual(t, d, 8*time.Second)
}

func TestBackoffGrowsPerAttempt(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxRetries: 4, BaseDelay: time.Second, MaxDelay: time.Minute, RateLimitMax: time.Minute}

	// Jitter is bounded by half the raw delay, so the minimum of a later
	// attempt must exceed the maximum of an earlier one at distance two.
	first := p.Backoff(OutcomeRetryable, 0)
	third := p.Backoff(OutcomeRetryable, 2)
	assert.Greater(t, third, first)
}
