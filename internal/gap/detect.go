package gap

import (
	"go.uber.org/zap"

	"github.com/gapscan/gapscan/internal/metrics"
	"github.com/gapscan/gapscan/internal/store"
)

// Bands maps similarity scores and word-count ratios to priorities.
type Bands struct {
	// Threshold is the similarity below which a competitor chunk counts
	// as a gap. Comparison is strict: a score equal to the threshold is
	// covered content.
	Threshold float64
	// HighBand and MediumBand split gap scores into priorities:
	// score < HighBand is high, score < MediumBand is medium, else low.
	HighBand   float64
	MediumBand float64
}

// DefaultBands mirrors the shipped configuration defaults.
func DefaultBands() Bands {
	return Bands{Threshold: 0.45, HighBand: 0.2, MediumBand: 0.35}
}

// Priority assigns a band to a gap similarity score.
func (b Bands) Priority(score float64) string {
	switch {
	case score < b.HighBand:
		return "high"
	case score < b.MediumBand:
		return "medium"
	default:
		return "low"
	}
}

// ContentGap is one competitor chunk whose best primary match fell below
// the threshold.
type ContentGap struct {
	CompetitorURL   string
	ClosestMatchURL string
	Similarity      float64
	Priority        string
}

// Detector runs similarity analysis between the two embedding sets.
type Detector struct {
	bands  Bands
	logger *zap.Logger
}

func NewDetector(bands Bands, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{bands: bands, logger: logger}
}

// DetectMissingContent scans every competitor chunk for its best primary
// match and emits a gap when that best score is strictly below the
// threshold. An empty primary set yields no gaps and a warning rather
// than an error, since an unanalyzed site is a degraded run, not a
// broken one.
func (d *Detector) DetectMissingContent(primary, competitor []store.ChunkEmbedding) []ContentGap {
	if len(primary) == 0 {
		d.logger.Warn("no primary embeddings, skipping missing-content analysis")
		return nil
	}

	vectors := make([][]float32, len(primary))
	for i, prim := range primary {
		vectors[i] = prim.Vector
	}

	var gaps []ContentGap
	for _, comp := range competitor {
		top := MostSimilar(comp.Vector, vectors, 1)
		best := top[0].Similarity
		bestURL := primary[top[0].Index].URL
		if best < d.bands.Threshold {
			gaps = append(gaps, ContentGap{
				CompetitorURL:   comp.URL,
				ClosestMatchURL: bestURL,
				Similarity:      best,
				Priority:        d.bands.Priority(best),
			})
			metrics.ObserveGap(string(store.GapMissingContent))
		}
	}

	d.logger.Info("missing-content analysis complete",
		zap.Int("competitor_chunks", len(competitor)),
		zap.Int("raw_gaps", len(gaps)))
	return gaps
}

// DedupByURL collapses chunk-level gaps to one per competitor page,
// keeping the worst (lowest) similarity seen for that page.
func DedupByURL(gaps []ContentGap) []ContentGap {
	seen := make(map[string]int)
	var out []ContentGap
	for _, g := range gaps {
		if i, ok := seen[g.CompetitorURL]; ok {
			if g.Similarity < out[i].Similarity {
				out[i] = g
			}
			continue
		}
		seen[g.CompetitorURL] = len(out)
		out = append(out, g)
	}
	return out
}

// Rows converts deduplicated content gaps to store rows.
func Rows(gaps []ContentGap) []store.Gap {
	rows := make([]store.Gap, len(gaps))
	for i, g := range gaps {
		score := g.Similarity
		rows[i] = store.Gap{
			CompetitorURL:   g.CompetitorURL,
			Type:            store.GapMissingContent,
			SimilarityScore: &score,
			ClosestMatchURL: g.ClosestMatchURL,
			Priority:        g.Priority,
		}
	}
	return rows
}
