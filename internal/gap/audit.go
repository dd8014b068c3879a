package gap

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gapscan/gapscan/internal/metrics"
	"github.com/gapscan/gapscan/internal/store"
)

// Auditor runs the non-embedding detectors directly over stored pages:
// thin content, missing metadata, and missing schema markup.
type Auditor struct {
	store  *store.Store
	logger *zap.Logger

	// ThinRatio is the competitor/primary word-count ratio above which
	// a primary page counts as thin.
	ThinRatio float64
}

func NewAuditor(s *store.Store, thinRatio float64, logger *zap.Logger) *Auditor {
	if thinRatio <= 0 {
		thinRatio = 3.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{store: s, logger: logger, ThinRatio: thinRatio}
}

// DetectThinContent compares primary pages against competitor pages that
// share a title or h1. One gap per primary page, keeping the worst ratio.
func (a *Auditor) DetectThinContent(ctx context.Context) ([]store.Gap, error) {
	primary, err := a.store.PagesBySite(ctx, true)
	if err != nil {
		return nil, err
	}
	competitors, err := a.store.PagesBySite(ctx, false)
	if err != nil {
		return nil, err
	}

	type worst struct {
		ratio float64
		gap   store.Gap
	}
	byURL := make(map[string]worst)
	var order []string

	for _, p := range primary {
		if p.WordCount <= 0 {
			continue
		}
		for _, c := range competitors {
			if !sameTopic(p, c) {
				continue
			}
			ratio := float64(c.WordCount) / float64(p.WordCount)
			if ratio <= a.ThinRatio {
				continue
			}

			g := store.Gap{
				CompetitorURL: c.URL,
				Type:          store.GapThinContent,
				Analysis: fmt.Sprintf("%s has %d words vs %d on %s (%.1fx)",
					c.URL, c.WordCount, p.WordCount, p.URL, ratio),
				ClosestMatchURL: p.URL,
				Priority:        thinPriority(ratio),
			}
			prev, ok := byURL[p.URL]
			if !ok {
				order = append(order, p.URL)
			}
			if !ok || ratio > prev.ratio {
				byURL[p.URL] = worst{ratio: ratio, gap: g}
			}
		}
	}

	gaps := make([]store.Gap, 0, len(order))
	for _, url := range order {
		gaps = append(gaps, byURL[url].gap)
		metrics.ObserveGap(string(store.GapThinContent))
	}
	a.logger.Info("thin-content audit complete", zap.Int("gaps", len(gaps)))
	return gaps, nil
}

func sameTopic(p, c store.Page) bool {
	if p.Title != "" && p.Title == c.Title {
		return true
	}
	return p.H1 != "" && p.H1 == c.H1
}

func thinPriority(ratio float64) string {
	switch {
	case ratio > 5.0:
		return "high"
	case ratio > 4.0:
		return "medium"
	default:
		return "low"
	}
}

// DetectMetadataGaps flags primary pages missing title, description, or
// h1. Missing a title, or two or more elements, is high priority.
func (a *Auditor) DetectMetadataGaps(ctx context.Context) ([]store.Gap, error) {
	primary, err := a.store.PagesBySite(ctx, true)
	if err != nil {
		return nil, err
	}

	var gaps []store.Gap
	for _, p := range primary {
		var missing []string
		if p.Title == "" {
			missing = append(missing, "title")
		}
		if p.Description == "" {
			missing = append(missing, "description")
		}
		if p.H1 == "" {
			missing = append(missing, "h1")
		}
		if len(missing) == 0 {
			continue
		}

		priority := "medium"
		if p.Title == "" || len(missing) >= 2 {
			priority = "high"
		}
		gaps = append(gaps, store.Gap{
			CompetitorURL: p.URL,
			Type:          store.GapMetadata,
			Analysis:      "missing " + strings.Join(missing, ", "),
			Priority:      priority,
		})
		metrics.ObserveGap(string(store.GapMetadata))
	}
	a.logger.Info("metadata audit complete", zap.Int("gaps", len(gaps)))
	return gaps, nil
}

// DetectSchemaGaps flags primary pages without JSON-LD markup, but only
// when at least one competitor page carries it.
func (a *Auditor) DetectSchemaGaps(ctx context.Context) ([]store.Gap, error) {
	competitors, err := a.store.PagesBySite(ctx, false)
	if err != nil {
		return nil, err
	}
	anyCompetitorSchema := false
	for _, c := range competitors {
		if c.SchemaData != "" {
			anyCompetitorSchema = true
			break
		}
	}
	if !anyCompetitorSchema {
		return nil, nil
	}

	primary, err := a.store.PagesBySite(ctx, true)
	if err != nil {
		return nil, err
	}

	var gaps []store.Gap
	for _, p := range primary {
		if p.SchemaData != "" {
			continue
		}
		gaps = append(gaps, store.Gap{
			CompetitorURL: p.URL,
			Type:          store.GapSchema,
			Analysis:      "no structured data while competitors carry JSON-LD",
			Priority:      "medium",
		})
		metrics.ObserveGap(string(store.GapSchema))
	}
	a.logger.Info("schema audit complete", zap.Int("gaps", len(gaps)))
	return gaps, nil
}
