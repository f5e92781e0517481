// Package search implements the retrieval pipeline: query parsing,
// vocabulary expansion, vector recall, adaptive score cutoff, attribute
// and phrase filtering, per-article deduplication, multi-signal
// reranking, pagination, content hydration, and excerpting.
package search

import (
	"context"
	"time"

	"github.com/domwxyz/marxist-search/internal/store"
)

// Request is one search call.
type Request struct {
	Query   string  `json:"query"`
	Filters Filters `json:"filters"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// ParsedQuery is the structured plan extracted from the raw query.
type ParsedQuery struct {
	SemanticTerms []string `json:"semantic_terms"`
	ExactPhrases  []string `json:"exact_phrases"`
	TitlePhrases  []string `json:"title_phrases"`
	AuthorFilter  string   `json:"author_filter,omitempty"`
}

// HasContent reports whether the query carries anything searchable.
func (p ParsedQuery) HasContent() bool {
	return len(p.SemanticTerms) > 0 || len(p.ExactPhrases) > 0 ||
		len(p.TitlePhrases) > 0 || p.AuthorFilter != ""
}

// DebugSignals records the per-signal score components of one result.
type DebugSignals struct {
	BaseScore      float64 `json:"base_score"`
	TitleBoost     float64 `json:"title_boost"`
	PhraseBoost    float64 `json:"phrase_boost"`
	KeywordBoost   float64 `json:"keyword_boost"`
	DiscoveryBoost float64 `json:"discovery_boost"`
	RecencyBoost   float64 `json:"recency_boost"`
}

// Result is one search hit, at most one per article.
type Result struct {
	ID              string        `json:"id"`
	ArticleID       int           `json:"article_id"`
	Title           string        `json:"title"`
	URL             string        `json:"url"`
	Source          string        `json:"source"`
	Author          string        `json:"author"`
	PublishedDate   string        `json:"published_date,omitempty"`
	Excerpt         string        `json:"excerpt"`
	MatchedPhrase   *string       `json:"matched_phrase"`
	Score           float64       `json:"score"`
	MatchedSections int           `json:"matched_sections"`
	WordCount       int           `json:"word_count"`
	Tags            []string      `json:"tags"`
	Terms           []string      `json:"terms"`
	Debug           *DebugSignals `json:"debug,omitempty"`
}

// Response is the full search response. Total counts deduplicated
// results before pagination.
type Response struct {
	Results     []Result    `json:"results"`
	Total       int         `json:"total"`
	Page        int         `json:"page"`
	Limit       int         `json:"limit"`
	Offset      int         `json:"offset"`
	QueryTimeMS int64       `json:"query_time_ms"`
	Query       string      `json:"query"`
	ParsedQuery ParsedQuery `json:"parsed_query"`
	Filters     Filters     `json:"filters"`
	Error       string      `json:"error,omitempty"`
}

// ReloadResult reports an index reload.
type ReloadResult struct {
	OldCount       int    `json:"old_count"`
	NewCount       int    `json:"new_count"`
	DocumentsAdded int    `json:"documents_added"`
	IndexPath      string `json:"index_path"`
}

// MetadataReader is the slice of the metadata store the pipeline needs.
type MetadataReader interface {
	LookupByIDs(ctx context.Context, ids []string) ([]store.UnitRow, error)
	FetchContent(ctx context.Context, ids []string) (map[string]string, error)
	FilterByBodyLike(ctx context.Context, ids []string, terms []string) (map[string]bool, error)
	SearchByContent(ctx context.Context, q store.ContentQuery) ([]store.UnitRow, error)
	Sources(ctx context.Context) ([]store.SourceInfo, error)
	TopAuthors(ctx context.Context, minArticles, limit int) ([]store.AuthorInfo, error)
	Stats(ctx context.Context) (store.CorpusStats, error)
	LogSearch(ctx context.Context, query string, resultCount int, duration time.Duration) error
}

// VectorReader is the slice of the vector searcher the pipeline needs.
type VectorReader interface {
	Search(ctx context.Context, queryText string, k int) ([]store.VectorResult, error)
	Count() int
	Loaded() bool
	Reload() (oldCount, newCount int, err error)
	IndexDir() string
}

var _ MetadataReader = (*store.SQLiteStore)(nil)
var _ VectorReader = (*store.VectorSearcher)(nil)

// candidate is the pipeline's working element: the filter projection
// plus the evolving score and any body content fetched along the way.
type candidate struct {
	row             store.UnitRow
	score           float64
	matchedSections int
	signals         DebugSignals
	content         string
	hasContent      bool
}
