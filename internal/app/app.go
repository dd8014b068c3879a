// Package app initializes and holds the long-lived application services,
// acting as a dependency injection container.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gapscan/gapscan/internal/api"
	"github.com/gapscan/gapscan/internal/chunk"
	"github.com/gapscan/gapscan/internal/config"
	"github.com/gapscan/gapscan/internal/embed"
	"github.com/gapscan/gapscan/internal/fetch"
	"github.com/gapscan/gapscan/internal/logging"
	"github.com/gapscan/gapscan/internal/metrics"
	"github.com/gapscan/gapscan/internal/pipeline"
	"github.com/gapscan/gapscan/internal/progress"
	"github.com/gapscan/gapscan/internal/store"
)

// App holds the shared services for one process: logger, store, fetch
// pool, embedding generator, progress tracker, and the HTTP server. It
// is initialized once at startup and fails fast when any critical
// service cannot be built.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Store   *store.Store
	Pool    *fetch.Pool
	Tracker *progress.Tracker
	Server  *api.Server

	pipeline *pipeline.Pipeline
}

// New wires every service from configuration.
func New(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	metrics.Init()

	st, err := store.Open(cfg.DB.Path)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	policy := fetch.RetryPolicy{
		MaxRetries:   cfg.HTTP.MaxRetries,
		BaseDelay:    cfg.BackoffInitial(),
		MaxDelay:     cfg.BackoffMax(),
		RateLimitMax: cfg.RateLimitMax(),
	}
	pool := fetch.NewPool(
		fetch.PoolConfig{
			Concurrency: cfg.Crawl.Concurrency,
			PerHostMax:  cfg.Crawl.PerHostMax,
			PerHostRPS:  cfg.Crawl.PerHostRPS,
			Policy:      policy,
		},
		fetch.CollyConfig{
			UserAgent: cfg.Crawl.UserAgent,
			Timeout:   cfg.RequestTimeout(),
		},
		logger,
	)

	client, err := embed.NewClient(embed.ClientConfig{
		APIKey:  cfg.Embeddings.APIKey,
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		Timeout: time.Duration(cfg.Embeddings.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		st.Close()
		pool.Close()
		return nil, fmt.Errorf("initializing embeddings client: %w", err)
	}
	generator := embed.NewGenerator(client, embed.GeneratorConfig{
		BatchSize:   cfg.Embeddings.BatchSize,
		MaxParallel: cfg.Embeddings.MaxParallel,
		Policy:      policy,
	}, logger)

	splitter := chunk.NewSplitter(
		chunk.NewTokenizer(cfg.Embeddings.Model),
		cfg.Chunking.ChunkSize,
		cfg.Chunking.Overlap,
	)

	tracker := progress.NewTracker()
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Pool:     pool,
		Tracker:  tracker,
		Server:   api.NewServer(st, tracker, logger),
		pipeline: pipeline.New(cfg, st, pool, generator, splitter, tracker, logger),
	}
	logger.Info("application services initialized", zap.String("db", st.Path()))
	return app, nil
}

// Pipeline returns the configured analysis pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Close releases services in reverse initialization order.
func (a *App) Close() {
	a.Pool.Close()
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("closing store", zap.Error(err))
	}
	_ = a.Logger.Sync()
}
