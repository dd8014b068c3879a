package store

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError reports bad input rejected before it reaches the
// database. The write it guarded never happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Page is one crawled page. URL is unique; repeated stores update in
// place.
type Page struct {
	ID          int64
	URL         string
	Domain      string
	IsPrimary   bool
	Title       string
	Description string
	H1          string
	ContentText string
	WordCount   int
	SchemaData  string
	LastCrawled time.Time
}

func (p *Page) validate() error {
	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "url", Reason: "must be absolute http(s)"}
	}
	if strings.TrimSpace(p.Domain) == "" {
		return &ValidationError{Field: "domain", Reason: "must not be empty"}
	}
	if p.WordCount < 0 {
		return &ValidationError{Field: "word_count", Reason: "must not be negative"}
	}
	return nil
}

// Chunk is one token window of a page's content.
type Chunk struct {
	ID         int64
	PageID     int64
	ChunkIndex int
	Content    string
	TokenCount int
}

func (c *Chunk) validate() error {
	if c.PageID <= 0 {
		return &ValidationError{Field: "page_id", Reason: "must reference a stored page"}
	}
	if c.ChunkIndex < 0 {
		return &ValidationError{Field: "chunk_index", Reason: "must not be negative"}
	}
	if strings.TrimSpace(c.Content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return nil
}

// ChunkEmbedding pairs a chunk with its vector for site-wide similarity
// scans.
type ChunkEmbedding struct {
	ChunkID int64
	PageID  int64
	URL     string
	Vector  []float32
}

// GapType labels the kind of shortfall a gap row records.
type GapType string

const (
	GapMissingContent GapType = "missing_content"
	GapThinContent    GapType = "thin_content"
	GapMetadata       GapType = "metadata_gap"
	GapSchema         GapType = "schema_gap"
)

// Gap is one detected content gap against a competitor page. Similarity
// is nil for gap types that carry no score.
type Gap struct {
	ID              int64
	CompetitorURL   string
	Type            GapType
	SimilarityScore *float64
	ClosestMatchURL string
	Analysis        string
	Priority        string
}

func (g *Gap) validate() error {
	if strings.TrimSpace(g.CompetitorURL) == "" {
		return &ValidationError{Field: "competitor_url", Reason: "must not be empty"}
	}
	switch g.Type {
	case GapMissingContent, GapThinContent, GapMetadata, GapSchema:
	default:
		return &ValidationError{Field: "gap_type", Reason: fmt.Sprintf("unknown type %q", g.Type)}
	}
	if g.SimilarityScore != nil && (*g.SimilarityScore < -1 || *g.SimilarityScore > 1) {
		return &ValidationError{Field: "similarity_score", Reason: "must be within [-1, 1]"}
	}
	return nil
}
