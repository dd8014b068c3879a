// Package report renders analysis results as JSON and Markdown files.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gapscan/gapscan/internal/recommend"
	"github.com/gapscan/gapscan/internal/store"
)

// Settings echoes the analysis parameters into the report so a reader
// knows what produced it.
type Settings struct {
	SimilarityThreshold float64 `json:"similarity_threshold"`
	ChunkSize           int     `json:"chunk_size"`
	ThinContentRatio    float64 `json:"thin_content_ratio"`
}

// Report is the complete output of one analysis run.
type Report struct {
	Metadata   Metadata               `json:"metadata"`
	Summary    recommend.Summary      `json:"summary"`
	Gaps       map[string][]store.Gap `json:"gaps"`
	ActionPlan []recommend.Action     `json:"action_plan"`
	QuickWins  []recommend.Scored     `json:"quick_wins"`
	Settings   Settings               `json:"config"`
}

type Metadata struct {
	GeneratedAt         time.Time `json:"generated_at"`
	PrimarySite         string    `json:"primary_site"`
	CompetitorsAnalyzed int       `json:"competitors_analyzed"`
	Version             string    `json:"version"`
}

// Writer renders and saves reports.
type Writer struct {
	logger *zap.Logger
}

func NewWriter(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger}
}

// Build assembles the report structure from run outputs.
func Build(primarySite string, competitors int, gaps []store.Gap,
	summary recommend.Summary, plan []recommend.Action, wins []recommend.Scored,
	settings Settings) Report {

	byType := make(map[string][]store.Gap)
	for _, g := range gaps {
		byType[string(g.Type)] = append(byType[string(g.Type)], g)
	}
	return Report{
		Metadata: Metadata{
			GeneratedAt:         time.Now(),
			PrimarySite:         primarySite,
			CompetitorsAnalyzed: competitors,
			Version:             "1.0",
		},
		Summary:    summary,
		Gaps:       byType,
		ActionPlan: plan,
		QuickWins:  wins,
		Settings:   settings,
	}
}

// WriteJSON saves the report as indented JSON, creating parent
// directories as needed.
func (w *Writer) WriteJSON(r Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	w.logger.Info("json report saved", zap.String("path", path))
	return nil
}

// WriteMarkdown renders the human-readable report.
func (w *Writer) WriteMarkdown(r Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Markdown(r)), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	w.logger.Info("markdown report saved", zap.String("path", path))
	return nil
}

// Markdown renders the report body.
func Markdown(r Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# SEO Content Gap Analysis Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n", r.Metadata.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Primary Site:** %s\n", r.Metadata.PrimarySite)
	fmt.Fprintf(&b, "**Competitors Analyzed:** %d\n\n---\n\n", r.Metadata.CompetitorsAnalyzed)

	fmt.Fprintf(&b, "## Executive Summary\n\n")
	fmt.Fprintf(&b, "- **Total Gaps Identified:** %d\n", r.Summary.TotalGaps)
	fmt.Fprintf(&b, "- **High Priority Items:** %d\n", r.Summary.HighPriority)
	fmt.Fprintf(&b, "- **Estimated Effort:** %s\n\n", r.Summary.EstimatedEffort)

	if len(r.Summary.ByCategory) > 0 {
		fmt.Fprintf(&b, "### Gaps by Category\n\n")
		for _, category := range sortedKeys(r.Summary.ByCategory) {
			fmt.Fprintf(&b, "- **%s:** %d\n", category, r.Summary.ByCategory[category])
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\n\n## Quick Wins\n\n")
	if len(r.QuickWins) == 0 {
		b.WriteString("No quick wins identified.\n\n")
	}
	for i, win := range r.QuickWins {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, win.Category)
		fmt.Fprintf(&b, "**URL:** %s\n", win.CompetitorURL)
		if win.SimilarityScore != nil {
			fmt.Fprintf(&b, "**Similarity Score:** %.1f%%\n", *win.SimilarityScore*100)
		}
		if win.Analysis != "" {
			fmt.Fprintf(&b, "**Detail:** %s\n", win.Analysis)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\n\n## Prioritized Action Plan\n\n")
	if len(r.ActionPlan) == 0 {
		b.WriteString("No actions required.\n")
		return b.String()
	}
	b.WriteString("| Rank | Category | Action | URL | Priority | Impact | Description |\n")
	b.WriteString("|------|----------|--------|-----|----------|--------|-------------|\n")
	for _, a := range r.ActionPlan {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %.1f | %s |\n",
			a.Rank, a.Category, a.Action, a.URL, a.Priority, a.ImpactScore,
			strings.ReplaceAll(a.Description, "|", "\\|"))
	}
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
