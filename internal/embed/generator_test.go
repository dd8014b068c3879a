package embed

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gapscan/gapscan/internal/fetch"
	"github.com/gapscan/gapscan/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

// fakeAPI returns one deterministic vector per text and can be scripted to
// fail specific calls.
type fakeAPI struct {
	mu       sync.Mutex
	calls    [][]string
	failures map[int]error
}

func (f *fakeAPI) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, append([]string(nil), texts...))
	err := f.failures[call]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (f *fakeAPI) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += len(c)
	}
	return n
}

func fastPolicy() fetch.RetryPolicy {
	return fetch.RetryPolicy{
		MaxRetries:   3,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		RateLimitMax: 5 * time.Millisecond,
	}
}

func TestGenerateBatchSkipsBlankTexts(t *testing.T) {
	t.Parallel()

	texts := make([]string, 100)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}
	texts[57] = "   "

	api := &fakeAPI{}
	gen := NewGenerator(api, GeneratorConfig{BatchSize: 100, MaxParallel: 2, Policy: fastPolicy()}, nil)

	vectors, err := gen.GenerateBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 100)

	assert.Nil(t, vectors[57])
	for i, v := range vectors {
		if i == 57 {
			continue
		}
		assert.NotNil(t, v, "slot %d", i)
	}
	// The blank text never reaches the API.
	assert.Equal(t, 99, api.sent())
}

func TestGenerateBatchFailedBatchLeavesOnlyItsSlotsNil(t *testing.T) {
	t.Parallel()

	texts := make([]string, 6)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}

	// Batch size 3 gives two batches; fail every attempt of one of them.
	api := &fakeAPI{failures: map[int]error{}}
	fatal := &StatusError{StatusCode: 400, Message: "bad input"}
	api.failures[0] = fatal
	api.failures[1] = fatal

	gen := NewGenerator(api, GeneratorConfig{BatchSize: 3, MaxParallel: 1, Policy: fastPolicy()}, nil)
	vectors, err := gen.GenerateBatch(context.Background(), texts)
	require.NoError(t, err)

	var nilCount, okCount int
	for _, v := range vectors {
		if v == nil {
			nilCount++
		} else {
			okCount++
		}
	}
	assert.Equal(t, 3, nilCount)
	assert.Equal(t, 3, okCount)
}

func TestGenerateBatchRetriesRateLimit(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{failures: map[int]error{
		0: &StatusError{StatusCode: 429, Message: "slow down"},
	}}
	gen := NewGenerator(api, GeneratorConfig{BatchSize: 10, MaxParallel: 1, Policy: fastPolicy()}, nil)

	vectors, err := gen.GenerateBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.NotNil(t, vectors[0])
	assert.NotNil(t, vectors[1])
	assert.Len(t, api.calls, 2)
}

func TestGenerateBatchAllBlank(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(&fakeAPI{}, GeneratorConfig{Policy: fastPolicy()}, nil)
	vectors, err := gen.GenerateBatch(context.Background(), []string{"", "  "})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{nil, nil}, vectors)
}

func TestGenerateBatchCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := &fakeAPI{failures: map[int]error{0: context.Canceled}}
	gen := NewGenerator(api, GeneratorConfig{Policy: fastPolicy()}, nil)
	_, err := gen.GenerateBatch(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	v := Normalize([]float32{3, 4})
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	// The zero vector stays finite.
	zero := Normalize([]float32{0, 0, 0})
	for _, x := range zero {
		assert.False(t, math.IsNaN(float64(x)))
		assert.False(t, math.IsInf(float64(x), 0))
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, fetch.OutcomeRateLimited, classify(&StatusError{StatusCode: 429}))
	assert.Equal(t, fetch.OutcomeRetryable, classify(&StatusError{StatusCode: 503}))
	assert.Equal(t, fetch.OutcomeFatal, classify(&StatusError{StatusCode: 401}))
	assert.Equal(t, fetch.OutcomeFatal, classify(context.Canceled))
	assert.Equal(t, fetch.OutcomeRetryable, classify(fmt.Errorf("connection reset")))
}
