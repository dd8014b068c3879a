// Package config loads and validates analyzer configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site       SiteConfig       `mapstructure:"site"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	DB         DBConfig         `mapstructure:"db"`
	Server     ServerConfig     `mapstructure:"server"`
	Output     OutputConfig     `mapstructure:"output"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SiteConfig identifies the primary site and the competitor set.
type SiteConfig struct {
	SitemapURL      string `mapstructure:"sitemap_url"`
	CompetitorsFile string `mapstructure:"competitors_file"`
	MaxPagesPerSite int    `mapstructure:"max_pages_per_site"`
}

// CrawlConfig governs fetch fan-out behavior.
type CrawlConfig struct {
	Concurrency  int      `mapstructure:"concurrency"`
	PerHostMax   int      `mapstructure:"per_host_max"`
	PerHostRPS   float64  `mapstructure:"per_host_rps"`
	UserAgent    string   `mapstructure:"user_agent"`
	IncludePaths []string `mapstructure:"include_paths"`
	ExcludePaths []string `mapstructure:"exclude_paths"`
}

// HTTPConfig configures HTTP client timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
	RateLimitMaxMs   int `mapstructure:"rate_limit_max_ms"`
}

// Chunking strategies.
const (
	ChunkStrategyTokens     = "tokens"
	ChunkStrategyParagraphs = "paragraphs"
)

// ChunkingConfig controls how page text is split before embedding.
type ChunkingConfig struct {
	Strategy         string `mapstructure:"strategy"`
	ChunkSize        int    `mapstructure:"chunk_size"`
	Overlap          int    `mapstructure:"overlap"`
	MaxChunksPerPage int    `mapstructure:"max_chunks_per_page"`
}

// EmbeddingsConfig configures the embedding service client.
type EmbeddingsConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	BatchSize      int    `mapstructure:"batch_size"`
	MaxParallel    int    `mapstructure:"max_parallel"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxInputTokens int    `mapstructure:"max_input_tokens"`
}

// AnalysisConfig holds gap detection thresholds. The similarity bands are
// configuration, not constants: scores below HighBand are high priority,
// below MediumBand medium, anything else low.
type AnalysisConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	HighBand            float64 `mapstructure:"high_band"`
	MediumBand          float64 `mapstructure:"medium_band"`
	ThinContentRatio    float64 `mapstructure:"thin_content_ratio"`
	ClusterEps          float64 `mapstructure:"cluster_eps"`
	ClusterMinSamples   int     `mapstructure:"cluster_min_samples"`
}

// DBConfig controls the embedded relational store.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig controls the observability HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// OutputConfig sets report destinations.
type OutputConfig struct {
	JSONReport     string `mapstructure:"json_report"`
	MarkdownReport string `mapstructure:"markdown_report"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GAPSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.max_pages_per_site", 50)
	v.SetDefault("crawl.concurrency", 10)
	v.SetDefault("crawl.per_host_max", 4)
	v.SetDefault("crawl.per_host_rps", 2.0)
	v.SetDefault("crawl.user_agent", "gapscan/1.0")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 30000)
	v.SetDefault("http.rate_limit_max_ms", 60000)
	v.SetDefault("chunking.strategy", ChunkStrategyTokens)
	v.SetDefault("chunking.chunk_size", 1500)
	v.SetDefault("chunking.overlap", 200)
	v.SetDefault("chunking.max_chunks_per_page", 10)
	v.SetDefault("embeddings.base_url", "https://api.openai.com/v1")
	v.SetDefault("embeddings.model", "text-embedding-3-large")
	v.SetDefault("embeddings.batch_size", 100)
	v.SetDefault("embeddings.max_parallel", 5)
	v.SetDefault("embeddings.timeout_seconds", 60)
	v.SetDefault("embeddings.max_input_tokens", 8000)
	v.SetDefault("analysis.similarity_threshold", 0.45)
	v.SetDefault("analysis.high_band", 0.2)
	v.SetDefault("analysis.medium_band", 0.35)
	v.SetDefault("analysis.thin_content_ratio", 3.0)
	v.SetDefault("analysis.cluster_eps", 0.3)
	v.SetDefault("analysis.cluster_min_samples", 2)
	v.SetDefault("db.path", "data/pages.db")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("output.json_report", "reports/gap_report.json")
	v.SetDefault("output.markdown_report", "reports/gap_report.md")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.SitemapURL == "" {
		return fmt.Errorf("site.sitemap_url must be set")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Crawl.PerHostMax <= 0 {
		return fmt.Errorf("crawl.per_host_max must be > 0")
	}
	if c.Crawl.PerHostMax > c.Crawl.Concurrency {
		return fmt.Errorf("crawl.per_host_max must not exceed crawl.concurrency")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if s := c.Chunking.Strategy; s != "" && s != ChunkStrategyTokens && s != ChunkStrategyParagraphs {
		return fmt.Errorf("chunking.strategy must be %q or %q", ChunkStrategyTokens, ChunkStrategyParagraphs)
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be > 0")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.overlap must be in [0, chunk_size)")
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be > 0")
	}
	if c.Embeddings.MaxParallel <= 0 {
		return fmt.Errorf("embeddings.max_parallel must be > 0")
	}
	if c.Analysis.SimilarityThreshold < 0 || c.Analysis.SimilarityThreshold > 1 {
		return fmt.Errorf("analysis.similarity_threshold must be in [0,1]")
	}
	if c.Analysis.HighBand > c.Analysis.MediumBand {
		return fmt.Errorf("analysis.high_band must not exceed analysis.medium_band")
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db.path must be set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when server is enabled")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the backoff cap for transient failures.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// RateLimitMax returns the backoff cap applied after HTTP 429 responses.
func (c Config) RateLimitMax() time.Duration {
	return time.Duration(c.HTTP.RateLimitMaxMs) * time.Millisecond
}

// competitorsFile mirrors the shape of the competitors YAML document.
type competitorsFile struct {
	Competitors []string `yaml:"competitors"`
}

// LoadCompetitors reads the competitor sitemap URL list from a YAML file.
func LoadCompetitors(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read competitors file: %w", err)
	}
	var doc competitorsFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse competitors file: %w", err)
	}
	out := make([]string, 0, len(doc.Competitors))
	for _, u := range doc.Competitors {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return nil, fmt.Errorf("invalid competitor URL %q", u)
		}
		out = append(out, u)
	}
	return out, nil
}
