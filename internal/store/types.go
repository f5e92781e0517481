// Package store provides the two persistence layers behind the search
// engine: a SQLite metadata store that owns article and chunk rows, and
// an HNSW vector index that owns embeddings keyed by unit id strings.
//
// The retrieval pipeline holds read-only handles to both. Writes come
// from the ingestion side only.
package store

import (
	"fmt"
	"time"
)

// Article is the canonical metadata row for one ingested article.
type Article struct {
	ID            int
	URL           string
	GUID          string
	Title         string
	Content       string
	Summary       string
	Source        string
	Author        string
	PublishedDate time.Time
	FetchedDate   time.Time
	WordCount     int
	Chunked       bool
	Indexed       bool
	Tags          []string
	Terms         []string
}

// Chunk is one length-bounded segment of a long article.
// (ArticleID, Index) is unique; indices are contiguous from 0.
type Chunk struct {
	ArticleID int
	Index     int
	Content   string
	WordCount int
	StartPos  int
}

// UnitRow is the filter projection of one indexed unit: every field the
// pipeline needs for filtering and ranking, and no body text. Body is
// fetched separately and only for the rows that survive pagination.
type UnitRow struct {
	ID             string
	ArticleID      int
	Title          string
	URL            string
	Source         string
	Author         string
	PublishedDate  time.Time
	PublishedYear  int
	PublishedMonth int
	WordCount      int
	IsChunk        bool
	ChunkIndex     int
	Tags           []string
	Terms          []string
}

// ContentQuery drives SearchByContent for queries with no semantic terms.
// Phrase fields are matched with escaped LIKE patterns; attribute fields
// become SQL predicates.
type ContentQuery struct {
	ExactPhrases []string
	TitlePhrases []string
	Source       string
	AuthorTokens []string
	Year         int
	MinWordCount int
	StartDate    time.Time
	EndDate      time.Time
	Limit        int
}

// SourceInfo is one row of the sources aggregate.
type SourceInfo struct {
	Name         string    `json:"name"`
	ArticleCount int       `json:"article_count"`
	Earliest     time.Time `json:"earliest"`
	Latest       time.Time `json:"latest"`
}

// AuthorInfo is one row of the top-authors aggregate.
type AuthorInfo struct {
	Author       string    `json:"author"`
	ArticleCount int       `json:"article_count"`
	Latest       time.Time `json:"latest"`
}

// CorpusStats summarizes the indexed corpus.
type CorpusStats struct {
	TotalArticles   int       `json:"total_articles"`
	IndexedArticles int       `json:"indexed_articles"`
	TotalChunks     int       `json:"total_chunks"`
	SourceCount     int       `json:"source_count"`
	EarliestArticle time.Time `json:"earliest_article"`
	LatestArticle   time.Time `json:"latest_article"`
	IndexedVectors  int       `json:"indexed_vectors"`
	TotalSearches   int       `json:"total_searches"`
}

// Feed is one RSS feed registration.
type Feed struct {
	ID                  int
	URL                 string
	Name                string
	ETag                string
	LastModified        string
	LastFetched         time.Time
	ConsecutiveFailures int
	Status              string
}

// Feed status values. A feed degrades at 3 consecutive failures and is
// marked failing at 10; ingestion keeps polling degraded feeds but skips
// failing ones until an operator intervenes.
const (
	FeedStatusActive   = "active"
	FeedStatusDegraded = "degraded"
	FeedStatusFailing  = "failing"

	feedDegradedAfter = 3
	feedFailingAfter  = 10
)

// VectorResult is one hit from the vector index.
type VectorResult struct {
	ID    string
	Score float64
}

// ErrDimensionMismatch reports an embedding of the wrong width.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
