package gap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gapscan/gapscan/internal/metrics"
	"github.com/gapscan/gapscan/internal/store"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

func TestCosine(t *testing.T) {
	t.Parallel()

	v := []float32{0.6, 0.8}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
	assert.InDelta(t, -1.0, Cosine(v, []float32{-0.6, -0.8}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)

	// Mismatched or empty vectors score zero rather than panicking.
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 0}))
	assert.Zero(t, Cosine(nil, nil))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 0}))
}

func TestMostSimilar(t *testing.T) {
	t.Parallel()

	candidates := [][]float32{{1, 0}, {0, 1}, {0.7071, 0.7071}}
	matches := MostSimilar([]float32{1, 0}, candidates, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Index)
	assert.Equal(t, 2, matches[1].Index)

	assert.Nil(t, MostSimilar([]float32{1, 0}, nil, 3))
}

func ce(url string, v ...float32) store.ChunkEmbedding {
	return store.ChunkEmbedding{URL: url, Vector: v}
}

func TestDetectMissingContent(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultBands(), nil)

	primary := []store.ChunkEmbedding{
		ce("https://example.com/a", 1, 0),
		ce("https://example.com/b", 0, 1),
	}
	competitor := []store.ChunkEmbedding{
		// Best match 1.0: covered.
		ce("https://rival.com/covered", 1, 0),
		// Best match 3/sqrt(109) ~= 0.287 against /a: a medium gap.
		ce("https://rival.com/gap", 3, -10),
	}

	gaps := d.DetectMissingContent(primary, competitor)
	require.Len(t, gaps, 1)
	assert.Equal(t, "https://rival.com/gap", gaps[0].CompetitorURL)
	assert.Equal(t, "https://example.com/a", gaps[0].ClosestMatchURL)
	assert.InDelta(t, 3/math.Sqrt(109), gaps[0].Similarity, 1e-9)
	assert.Equal(t, "medium", gaps[0].Priority)
}

func TestDetectMissingContentThresholdIsStrict(t *testing.T) {
	t.Parallel()

	// 3, 4, and 25 are exact in floating point, so cos((1,0),(3,4)) is
	// exactly 3/5 and the boundary comparison is deterministic.
	bands := Bands{Threshold: 0.6, HighBand: 0.2, MediumBand: 0.35}
	d := NewDetector(bands, nil)

	primary := []store.ChunkEmbedding{ce("https://example.com/a", 1, 0)}

	at := []store.ChunkEmbedding{ce("https://rival.com/at", 3, 4)}
	assert.Empty(t, d.DetectMissingContent(primary, at))

	below := []store.ChunkEmbedding{ce("https://rival.com/below", 3, 5)}
	assert.Len(t, d.DetectMissingContent(primary, below), 1)
}

func TestDetectMissingContentEmptyPrimary(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultBands(), nil)
	gaps := d.DetectMissingContent(nil, []store.ChunkEmbedding{ce("https://rival.com/x", 1, 0)})
	assert.Empty(t, gaps)
}

func TestBandsPriority(t *testing.T) {
	t.Parallel()

	b := DefaultBands()
	tests := []struct {
		score float64
		want  string
	}{
		{0.15, "high"},
		{0.30, "medium"},
		{0.40, "low"},
		{-0.5, "high"},
		{0.2, "medium"},
		{0.35, "low"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, b.Priority(tc.score), "score %v", tc.score)
	}
}

func TestDedupByURL(t *testing.T) {
	t.Parallel()

	gaps := []ContentGap{
		{CompetitorURL: "https://rival.com/x", Similarity: 0.40},
		{CompetitorURL: "https://rival.com/x", Similarity: 0.10},
		{CompetitorURL: "https://rival.com/y", Similarity: 0.25},
		{CompetitorURL: "https://rival.com/x", Similarity: 0.30},
	}
	out := DedupByURL(gaps)
	require.Len(t, out, 2)
	assert.Equal(t, "https://rival.com/x", out[0].CompetitorURL)
	assert.InDelta(t, 0.10, out[0].Similarity, 1e-9)
	assert.Equal(t, "https://rival.com/y", out[1].CompetitorURL)
}

func TestRows(t *testing.T) {
	t.Parallel()

	rows := Rows([]ContentGap{
		{CompetitorURL: "https://rival.com/x", ClosestMatchURL: "https://example.com/a", Similarity: 0.3, Priority: "medium"},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, store.GapMissingContent, rows[0].Type)
	require.NotNil(t, rows[0].SimilarityScore)
	assert.InDelta(t, 0.3, *rows[0].SimilarityScore, 1e-9)
}
