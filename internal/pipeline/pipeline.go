// Package pipeline orchestrates a full analysis run: sitemap discovery,
// crawl and extraction, chunking, embedding, gap analysis, and reporting.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/gapscan/gapscan/internal/chunk"
	"github.com/gapscan/gapscan/internal/config"
	"github.com/gapscan/gapscan/internal/extract"
	"github.com/gapscan/gapscan/internal/fetch"
	"github.com/gapscan/gapscan/internal/gap"
	"github.com/gapscan/gapscan/internal/metrics"
	"github.com/gapscan/gapscan/internal/progress"
	"github.com/gapscan/gapscan/internal/recommend"
	"github.com/gapscan/gapscan/internal/report"
	"github.com/gapscan/gapscan/internal/sitemap"
	"github.com/gapscan/gapscan/internal/store"
)

// PageFetcher is the fetch-layer surface the pipeline needs.
type PageFetcher interface {
	FetchAll(ctx context.Context, urls []string) map[string]fetch.Result
}

// Embedder turns texts into aligned vectors.
type Embedder interface {
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline runs the analysis stages in order against one store.
type Pipeline struct {
	cfg      config.Config
	store    *store.Store
	fetcher  PageFetcher
	embedder Embedder
	splitter *chunk.Splitter
	tracker  *progress.Tracker
	logger   *zap.Logger

	// minContentLength guards against boilerplate-only pages.
	minContentLength int
}

func New(cfg config.Config, st *store.Store, fetcher PageFetcher, embedder Embedder,
	splitter *chunk.Splitter, tracker *progress.Tracker, logger *zap.Logger) *Pipeline {
	if tracker == nil {
		tracker = progress.NewTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:              cfg,
		store:            st,
		fetcher:          fetcher,
		embedder:         embedder,
		splitter:         splitter,
		tracker:          tracker,
		logger:           logger,
		minContentLength: 100,
	}
}

// Run executes the whole pipeline. Per-page failures degrade the run but
// never abort it; only storage and configuration errors propagate.
func (p *Pipeline) Run(ctx context.Context) (report.Report, error) {
	runID := p.tracker.StartRun()
	p.logger.Info("analysis run starting", zap.String("run_id", runID))

	rep, err := p.run(ctx)
	p.tracker.FinishRun(err)
	if err != nil {
		p.logger.Error("analysis run failed", zap.String("run_id", runID), zap.Error(err))
		return report.Report{}, err
	}
	p.logger.Info("analysis run complete", zap.String("run_id", runID))
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context) (report.Report, error) {
	primaryPages, competitorPages, competitorCount, err := p.discover(ctx)
	if err != nil {
		return report.Report{}, err
	}

	if err := p.crawl(ctx, primaryPages, true); err != nil {
		return report.Report{}, err
	}
	if err := p.crawl(ctx, competitorPages, false); err != nil {
		return report.Report{}, err
	}

	if err := p.chunkAndEmbed(ctx); err != nil {
		return report.Report{}, err
	}

	gaps, err := p.analyze(ctx)
	if err != nil {
		return report.Report{}, err
	}

	return p.report(gaps, competitorCount)
}

// discover resolves the sitemap of the primary site and each competitor
// into capped, filtered page URL lists.
func (p *Pipeline) discover(ctx context.Context) (primary, competitors []string, competitorCount int, err error) {
	p.tracker.EnterStage(progress.StageSitemaps)
	start := time.Now()

	competitorSitemaps, err := config.LoadCompetitors(p.cfg.Site.CompetitorsFile)
	if err != nil {
		return nil, nil, 0, err
	}

	primary, perr := p.sitePages(ctx, p.cfg.Site.SitemapURL)
	if perr != nil {
		return nil, nil, 0, fmt.Errorf("primary sitemap: %w", perr)
	}

	failed := 0
	for _, sm := range competitorSitemaps {
		pages, cerr := p.sitePages(ctx, sm)
		if cerr != nil {
			// One unreadable competitor degrades the run, not ends it.
			p.logger.Warn("competitor sitemap failed", zap.String("sitemap", sm), zap.Error(cerr))
			failed++
			continue
		}
		competitors = append(competitors, pages...)
	}

	p.tracker.FinishStage(progress.StageSitemaps, 1+len(competitorSitemaps)-failed, failed)
	metrics.ObserveStage(string(progress.StageSitemaps), time.Since(start))
	p.logger.Info("sitemap discovery complete",
		zap.Int("primary_pages", len(primary)),
		zap.Int("competitor_pages", len(competitors)))
	return primary, competitors, len(competitorSitemaps), nil
}

// sitePages fetches one sitemap, following index entries one level deep.
func (p *Pipeline) sitePages(ctx context.Context, sitemapURL string) ([]string, error) {
	results := p.fetcher.FetchAll(ctx, []string{sitemapURL})
	res, ok := results[sitemapURL]
	if !ok || !res.OK() {
		return nil, fmt.Errorf("sitemap %s unreachable", sitemapURL)
	}

	parsed, err := sitemap.Parse(res.Body, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("parsing sitemap %s: %w", sitemapURL, err)
	}

	urls := parsed.URLs
	if len(parsed.Sitemaps) > 0 {
		nested := p.fetcher.FetchAll(ctx, parsed.Sitemaps)
		for _, sm := range parsed.Sitemaps {
			sub, ok := nested[sm]
			if !ok || !sub.OK() {
				p.logger.Warn("nested sitemap unreachable", zap.String("sitemap", sm))
				continue
			}
			subParsed, err := sitemap.Parse(sub.Body, sm)
			if err != nil {
				p.logger.Warn("nested sitemap unparseable", zap.String("sitemap", sm), zap.Error(err))
				continue
			}
			urls = append(urls, subParsed.URLs...)
		}
	}

	filtered, err := sitemap.Filter(urls, p.cfg.Crawl.IncludePaths, p.cfg.Crawl.ExcludePaths)
	if err != nil {
		return nil, err
	}
	if limit := p.cfg.Site.MaxPagesPerSite; limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// crawl fetches pages, extracts their content, and upserts them.
func (p *Pipeline) crawl(ctx context.Context, urls []string, isPrimary bool) error {
	p.tracker.EnterStage(progress.StageCrawl)
	start := time.Now()

	results := p.fetcher.FetchAll(ctx, urls)

	stored, failed := 0, 0
	for _, pageURL := range urls {
		res := results[pageURL]
		if !res.OK() {
			failed++
			continue
		}

		data, err := extract.Page(res.Body)
		if err != nil {
			p.logger.Warn("extraction failed", zap.String("url", pageURL), zap.Error(err))
			failed++
			continue
		}

		content := extract.RemoveBoilerplate(extract.CleanText(data.Content), nil)
		if !extract.ValidContent(content, p.minContentLength) {
			p.logger.Debug("skipping page with insufficient content", zap.String("url", pageURL))
			failed++
			continue
		}

		if _, err := p.store.UpsertPage(ctx, store.Page{
			URL:         sitemap.Normalize(pageURL),
			Domain:      hostOf(pageURL),
			IsPrimary:   isPrimary,
			Title:       data.Metadata.Title,
			Description: data.Metadata.Description,
			H1:          data.Metadata.H1,
			ContentText: content,
			WordCount:   data.WordCount,
			SchemaData:  data.Schema,
		}); err != nil {
			return fmt.Errorf("storing page %s: %w", pageURL, err)
		}
		stored++
	}

	p.tracker.FinishStage(progress.StageCrawl, stored, failed)
	metrics.ObserveStage(string(progress.StageCrawl), time.Since(start))
	p.logger.Info("crawl stage complete",
		zap.Bool("primary", isPrimary),
		zap.Int("stored", stored),
		zap.Int("failed", failed))
	return nil
}

// chunkAndEmbed windows every stored page and embeds the windows.
func (p *Pipeline) chunkAndEmbed(ctx context.Context) error {
	for _, isPrimary := range []bool{true, false} {
		if err := p.chunkAndEmbedSite(ctx, isPrimary); err != nil {
			return err
		}
	}
	return nil
}

// chunkPage splits page text per the configured strategy. Paragraph
// chunking never splits inside a paragraph; token windows are the
// default.
func (p *Pipeline) chunkPage(text string) []string {
	if p.cfg.Chunking.Strategy == config.ChunkStrategyParagraphs {
		chunks := p.splitter.ByParagraphs(text, p.cfg.Chunking.ChunkSize)
		if limit := p.cfg.Chunking.MaxChunksPerPage; limit > 0 && len(chunks) > limit {
			chunks = chunks[:limit]
		}
		return chunks
	}
	return p.splitter.SplitCapped(text, p.cfg.Chunking.MaxChunksPerPage)
}

func (p *Pipeline) chunkAndEmbedSite(ctx context.Context, isPrimary bool) error {
	pages, err := p.store.PagesBySite(ctx, isPrimary)
	if err != nil {
		return err
	}

	p.tracker.EnterStage(progress.StageChunk)
	chunkStart := time.Now()

	var (
		allIDs   []int64
		allTexts []string
		chunked  int
	)
	for _, page := range pages {
		windows := p.chunkPage(page.ContentText)
		if len(windows) == 0 {
			continue
		}
		rows := make([]store.Chunk, len(windows))
		for i, w := range windows {
			// Oversized windows are cut to the provider's input budget
			// instead of letting the embeddings API reject the batch.
			if limit := p.cfg.Embeddings.MaxInputTokens; limit > 0 {
				w = p.splitter.Truncate(w, limit)
				windows[i] = w
			}
			rows[i] = store.Chunk{ChunkIndex: i, Content: w, TokenCount: p.splitter.Count(w)}
		}
		ids, err := p.store.ReplaceChunks(ctx, page.ID, rows)
		if err != nil {
			return fmt.Errorf("chunking page %s: %w", page.URL, err)
		}
		allIDs = append(allIDs, ids...)
		allTexts = append(allTexts, windows...)
		chunked++
	}
	p.tracker.FinishStage(progress.StageChunk, chunked, 0)
	metrics.ObserveStage(string(progress.StageChunk), time.Since(chunkStart))

	p.tracker.EnterStage(progress.StageEmbed)
	embedStart := time.Now()

	vectors, err := p.embedder.GenerateBatch(ctx, allTexts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	stored, err := p.store.UpsertEmbeddings(ctx, allIDs, vectors, p.cfg.Embeddings.Model)
	if err != nil {
		return fmt.Errorf("storing embeddings: %w", err)
	}

	p.tracker.FinishStage(progress.StageEmbed, stored, len(allTexts)-stored)
	metrics.ObserveStage(string(progress.StageEmbed), time.Since(embedStart))
	p.logger.Info("embedding stage complete",
		zap.Bool("primary", isPrimary),
		zap.Int("chunks", len(allTexts)),
		zap.Int("embedded", stored))
	return nil
}

// analyze runs similarity and audit detectors and persists the gap set.
func (p *Pipeline) analyze(ctx context.Context) ([]store.Gap, error) {
	p.tracker.EnterStage(progress.StageAnalyze)
	start := time.Now()

	primary, err := p.store.EmbeddingsBySite(ctx, true, 0)
	if err != nil {
		return nil, err
	}
	competitor, err := p.store.EmbeddingsBySite(ctx, false, 0)
	if err != nil {
		return nil, err
	}

	bands := gap.Bands{
		Threshold:  p.cfg.Analysis.SimilarityThreshold,
		HighBand:   p.cfg.Analysis.HighBand,
		MediumBand: p.cfg.Analysis.MediumBand,
	}
	detector := gap.NewDetector(bands, p.logger)
	contentGaps := gap.DedupByURL(detector.DetectMissingContent(primary, competitor))

	p.clusterGapTopics(competitor, contentGaps)

	gaps := gap.Rows(contentGaps)

	auditor := gap.NewAuditor(p.store, p.cfg.Analysis.ThinContentRatio, p.logger)
	for _, detect := range []func(context.Context) ([]store.Gap, error){
		auditor.DetectThinContent,
		auditor.DetectMetadataGaps,
		auditor.DetectSchemaGaps,
	} {
		extra, err := detect(ctx)
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, extra...)
	}

	if err := p.store.ReplaceGaps(ctx, gaps); err != nil {
		return nil, err
	}

	p.tracker.FinishStage(progress.StageAnalyze, len(gaps), 0)
	metrics.ObserveStage(string(progress.StageAnalyze), time.Since(start))
	return gaps, nil
}

// clusterGapTopics groups the gap chunks into themes so large gap sets
// read as a handful of missing topics rather than a flat list.
func (p *Pipeline) clusterGapTopics(competitor []store.ChunkEmbedding, gaps []gap.ContentGap) {
	gapURLs := make(map[string]bool, len(gaps))
	for _, g := range gaps {
		gapURLs[g.CompetitorURL] = true
	}
	var vectors [][]float32
	for _, ce := range competitor {
		if gapURLs[ce.URL] {
			vectors = append(vectors, ce.Vector)
		}
	}

	labels := gap.Cluster(vectors, p.cfg.Analysis.ClusterEps, p.cfg.Analysis.ClusterMinSamples)
	clusters := make(map[int]int)
	noise := 0
	for _, l := range labels {
		if l == gap.Noise {
			noise++
			continue
		}
		clusters[l]++
	}
	p.logger.Info("gap topic clustering",
		zap.Int("gap_chunks", len(vectors)),
		zap.Int("clusters", len(clusters)),
		zap.Int("noise", noise))
}

// report prioritizes the gaps and writes both output formats.
func (p *Pipeline) report(gaps []store.Gap, competitorCount int) (report.Report, error) {
	p.tracker.EnterStage(progress.StageReport)
	start := time.Now()

	scored := recommend.Prioritize(gaps, p.logger)
	rep := report.Build(
		p.cfg.Site.SitemapURL,
		competitorCount,
		gaps,
		recommend.Summarize(gaps),
		recommend.ActionPlan(scored, 20),
		recommend.QuickWins(scored),
		report.Settings{
			SimilarityThreshold: p.cfg.Analysis.SimilarityThreshold,
			ChunkSize:           p.cfg.Chunking.ChunkSize,
			ThinContentRatio:    p.cfg.Analysis.ThinContentRatio,
		},
	)

	writer := report.NewWriter(p.logger)
	if path := p.cfg.Output.JSONReport; path != "" {
		if err := writer.WriteJSON(rep, path); err != nil {
			return report.Report{}, err
		}
	}
	if path := p.cfg.Output.MarkdownReport; path != "" {
		if err := writer.WriteMarkdown(rep, path); err != nil {
			return report.Report{}, err
		}
	}

	p.tracker.FinishStage(progress.StageReport, 1, 0)
	metrics.ObserveStage(string(progress.StageReport), time.Since(start))
	return rep, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	return u.Hostname()
}
