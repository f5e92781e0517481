// Package embed provides embedding generation for indexed units and
// search queries.
//
// The production backend is an Ollama server running a prefix-tagged
// sentence embedder (nomic-embed-text, 768 dims). Documents must be
// embedded with the document prefix and queries with the query prefix;
// the two halves of that contract live in the indexer and the vector
// searcher respectively. A deterministic static embedder backs tests
// and offline use.
package embed

import (
	"context"
	"math"
	"time"
)

// Task prefixes required by the embedding model. Mismatched prefixes
// degrade retrieval quality silently, so both sides use these constants.
const (
	DocumentPrefix = "search_document: "
	QueryPrefix    = "search_query: "
)

// Default configuration values.
const (
	DefaultOllamaHost = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultDimensions = 768
	DefaultBatchSize  = 32
	DefaultTimeout    = 60 * time.Second
)

// Embedder generates dense vectors for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The result is index-aligned with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dims returns the embedding dimensionality.
	Dims() int

	// Close releases resources held by the embedder.
	Close() error
}

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	Host      string
	Model     string
	Dims      int
	BatchSize int
	Timeout   time.Duration
	PoolSize  int
	// SkipHealthCheck bypasses the startup connectivity probe (tests).
	SkipHealthCheck bool
}

// normalizeVector scales a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
