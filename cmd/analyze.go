package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newAnalyzeCmd creates the 'analyze' subcommand. It runs the full
// pipeline once: sitemap discovery, crawl, chunking, embedding, gap
// detection, and report generation.
func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Run a full content gap analysis",
		Long: `Fetches the primary and competitor sitemaps, crawls and embeds every
page, detects content gaps, and writes JSON and Markdown reports to the
paths in the output configuration.`,

		RunE: runAnalyzeCommand,
	}
}

func runAnalyzeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger

	rep, err := appInstance.Pipeline().Run(cmd.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("analysis canceled")
			return nil
		}
		return fmt.Errorf("run analysis: %w", err)
	}

	logger.Info("analysis finished",
		zap.Int("total_gaps", rep.Summary.TotalGaps),
		zap.Int("high_priority", rep.Summary.HighPriority),
		zap.String("estimated_effort", rep.Summary.EstimatedEffort),
	)
	return nil
}
