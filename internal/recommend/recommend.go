// Package recommend turns detected gaps into an impact-ranked action
// plan.
package recommend

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/gapscan/gapscan/internal/store"
)

// Scored is a gap annotated with its impact score and display category.
type Scored struct {
	store.Gap
	Category    string
	ImpactScore float64
}

// Action is one entry of the ordered action plan.
type Action struct {
	Rank        int     `json:"rank"`
	Category    string  `json:"category"`
	Action      string  `json:"action"`
	URL         string  `json:"url"`
	Priority    string  `json:"priority"`
	ImpactScore float64 `json:"impact_score"`
	Description string  `json:"description"`
}

// Summary is the executive overview of one analysis run.
type Summary struct {
	TotalGaps       int            `json:"total_gaps"`
	ByCategory      map[string]int `json:"by_category"`
	HighPriority    int            `json:"high_priority_count"`
	EstimatedEffort string         `json:"estimated_effort"`
}

var priorityWeights = map[string]float64{
	"high":   3,
	"medium": 2,
	"low":    1,
}

func categoryOf(t store.GapType) string {
	switch t {
	case store.GapMissingContent:
		return "Missing Content"
	case store.GapThinContent:
		return "Thin Content"
	case store.GapMetadata:
		return "Metadata Issues"
	case store.GapSchema:
		return "Schema Missing"
	default:
		return string(t)
	}
}

// Prioritize scores every gap and returns them highest impact first.
// Missing content with lower similarity scores higher; metadata gaps
// gain a point per missing element.
func Prioritize(gaps []store.Gap, logger *zap.Logger) []Scored {
	if logger == nil {
		logger = zap.NewNop()
	}

	scored := make([]Scored, 0, len(gaps))
	for _, g := range gaps {
		weight, ok := priorityWeights[g.Priority]
		if !ok {
			weight = 2
		}
		s := Scored{Gap: g, Category: categoryOf(g.Type), ImpactScore: weight}

		switch g.Type {
		case store.GapMissingContent:
			sim := 0.5
			if g.SimilarityScore != nil {
				sim = *g.SimilarityScore
			}
			s.ImpactScore += (1 - sim) * 2
		case store.GapThinContent:
			// The worst thin pages already carry high priority; a small
			// fixed bump keeps them above metadata noise at equal weight.
			s.ImpactScore += 1
		case store.GapMetadata:
			s.ImpactScore += float64(strings.Count(g.Analysis, ",")) + 1
		}
		scored = append(scored, s)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].ImpactScore > scored[j].ImpactScore
	})
	logger.Info("prioritized gaps", zap.Int("total", len(scored)))
	return scored
}

// ActionPlan renders the top maxItems scored gaps into concrete steps.
func ActionPlan(scored []Scored, maxItems int) []Action {
	if maxItems <= 0 {
		maxItems = 20
	}
	if len(scored) > maxItems {
		scored = scored[:maxItems]
	}

	plan := make([]Action, len(scored))
	for i, s := range scored {
		a := Action{
			Rank:        i + 1,
			Category:    s.Category,
			URL:         s.CompetitorURL,
			Priority:    s.Priority,
			ImpactScore: s.ImpactScore,
		}
		switch s.Type {
		case store.GapMissingContent:
			a.Action = "Create new page"
			sim := 0.0
			if s.SimilarityScore != nil {
				sim = *s.SimilarityScore
			}
			a.Description = fmt.Sprintf("Create content similar to competitor page with %.1f%% gap", (1-sim)*100)
		case store.GapThinContent:
			a.Action = "Expand content"
			a.URL = s.ClosestMatchURL
			a.Description = s.Analysis
		case store.GapMetadata:
			a.Action = "Fix metadata"
			a.Description = s.Analysis
		case store.GapSchema:
			a.Action = "Add schema markup"
			a.Description = "Implement structured data"
		}
		plan[i] = a
	}
	return plan
}

// QuickWins picks the low-effort items: metadata and schema fixes, plus
// missing-content gaps whose closest match already scores above 0.3. At
// most ten are returned.
func QuickWins(scored []Scored) []Scored {
	var wins []Scored
	for _, s := range scored {
		switch s.Type {
		case store.GapMetadata, store.GapSchema:
			wins = append(wins, s)
		case store.GapMissingContent:
			if s.SimilarityScore != nil && *s.SimilarityScore > 0.3 {
				wins = append(wins, s)
			}
		}
		if len(wins) == 10 {
			break
		}
	}
	return wins
}

// Summarize counts gaps per category and estimates overall effort.
func Summarize(gaps []store.Gap) Summary {
	s := Summary{ByCategory: make(map[string]int)}
	for _, g := range gaps {
		s.TotalGaps++
		s.ByCategory[categoryOf(g.Type)]++
		if g.Priority == "high" {
			s.HighPriority++
		}
	}
	switch {
	case s.TotalGaps > 50:
		s.EstimatedEffort = "High"
	case s.TotalGaps > 20:
		s.EstimatedEffort = "Medium"
	default:
		s.EstimatedEffort = "Low"
	}
	return s
}
