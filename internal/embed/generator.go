package embed

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gapscan/gapscan/internal/fetch"
	"github.com/gapscan/gapscan/internal/metrics"
)

// API is the surface of the embeddings client the Generator needs.
type API interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GeneratorConfig bounds the batching behaviour.
type GeneratorConfig struct {
	// BatchSize is the number of texts per API request.
	BatchSize int
	// MaxParallel caps in-flight API requests.
	MaxParallel int
	// Policy drives the per-batch retry loop.
	Policy fetch.RetryPolicy
}

// Generator fans batches of texts out to the embeddings API and returns
// vectors aligned index-for-index with the input.
type Generator struct {
	api    API
	cfg    GeneratorConfig
	logger *zap.Logger
}

func NewGenerator(api API, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 5
	}
	if cfg.Policy.MaxRetries == 0 {
		cfg.Policy = fetch.DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{api: api, cfg: cfg, logger: logger}
}

// GenerateBatch embeds texts and returns one normalized vector per input,
// in input order. Blank texts are never sent upstream and yield a nil
// slot. A batch that fails after retries yields nil slots for its texts
// only; other batches are unaffected. The returned error is non-nil only
// when the context is done.
func (g *Generator) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	// Carry original positions so blank inputs keep their slots.
	indices := make([]int, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) != "" {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return vectors, nil
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.cfg.MaxParallel)

	for start := 0; start < len(indices); start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > len(indices) {
			end = len(indices)
		}
		batch := indices[start:end]

		grp.Go(func() error {
			input := make([]string, len(batch))
			for i, idx := range batch {
				input[i] = texts[idx]
			}

			out, err := g.embedWithRetry(ctx, input)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Degraded continuation: this batch stays nil.
				metrics.ObserveEmbeddingBatch("failed", 0)
				g.logger.Warn("embedding batch failed",
					zap.Int("batch_size", len(input)),
					zap.Error(err))
				return nil
			}

			for i, idx := range batch {
				// Each goroutine writes a disjoint set of slots.
				vectors[idx] = Normalize(out[i])
			}
			metrics.ObserveEmbeddingBatch("ok", len(out))
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (g *Generator) embedWithRetry(ctx context.Context, input []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < g.cfg.Policy.MaxRetries; attempt++ {
		out, err := g.api.EmbedBatch(ctx, input)
		if err == nil {
			return out, nil
		}
		lastErr = err

		outcome := classify(err)
		if outcome == fetch.OutcomeFatal || !g.cfg.Policy.ShouldRetry(outcome, attempt) {
			break
		}
		delay := g.cfg.Policy.Backoff(outcome, attempt)
		g.logger.Debug("retrying embedding batch",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// classify maps API failures onto the shared retry outcomes: 429 is
// rate-limited, 5xx and transport errors are retryable, any other 4xx is
// fatal.
func classify(err error) fetch.Outcome {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 429:
			return fetch.OutcomeRateLimited
		case se.StatusCode >= 500:
			return fetch.OutcomeRetryable
		default:
			return fetch.OutcomeFatal
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fetch.OutcomeFatal
	}
	return fetch.OutcomeRetryable
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Normalize scales v to unit L2 length. The small epsilon keeps the
// all-zero vector finite instead of dividing by zero.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + 1e-10

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
