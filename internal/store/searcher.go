package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/domwxyz/marxist-search/internal/embed"
	"github.com/domwxyz/marxist-search/internal/errors"
)

// VectorSearcher is the retrieval core's handle on the vector index:
// it embeds query text with the query task prefix and searches the
// currently loaded index.
//
// Reload swaps the index pointer under a write lock. Readers take the
// pointer under a read lock and then search without holding the lock,
// so in-flight queries finish against the index they started with even
// if a reload lands mid-query. A failed reload keeps the old index.
type VectorSearcher struct {
	embedder embed.Embedder
	indexDir string

	mu    sync.RWMutex
	index *HNSWIndex
}

// NewVectorSearcher creates a searcher that loads from indexDir.
// Call Load before the first Search.
func NewVectorSearcher(embedder embed.Embedder, indexDir string) *VectorSearcher {
	return &VectorSearcher{embedder: embedder, indexDir: indexDir}
}

// Load reads the index from disk. Safe to call once at startup.
func (s *VectorSearcher) Load() error {
	index, err := LoadHNSWIndex(s.indexDir)
	if err != nil {
		return errors.New(errors.ErrCodeIndexNotLoaded, "vector index load failed", err).
			WithDetail("index_dir", s.indexDir)
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

// Reload loads a fresh copy of the index and swaps it in atomically.
// Returns the old and new vector counts. On failure the old index stays
// in place and the error is returned.
func (s *VectorSearcher) Reload() (oldCount, newCount int, err error) {
	fresh, err := LoadHNSWIndex(s.indexDir)
	if err != nil {
		s.mu.RLock()
		if s.index != nil {
			oldCount = s.index.Count()
		}
		s.mu.RUnlock()
		return oldCount, oldCount, errors.New(errors.ErrCodeVectorStoreUnavailable,
			"vector index reload failed, keeping previous index", err).
			WithDetail("index_dir", s.indexDir)
	}

	s.mu.Lock()
	old := s.index
	s.index = fresh
	s.mu.Unlock()

	if old != nil {
		oldCount = old.Count()
	}
	newCount = fresh.Count()
	slog.Info("vector index reloaded",
		slog.Int("old_count", oldCount),
		slog.Int("new_count", newCount))
	return oldCount, newCount, nil
}

// current returns the bound index for one query.
func (s *VectorSearcher) current() *HNSWIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Loaded reports whether an index is available.
func (s *VectorSearcher) Loaded() bool {
	return s.current() != nil
}

// Count returns the live vector count, 0 when not loaded.
func (s *VectorSearcher) Count() int {
	index := s.current()
	if index == nil {
		return 0
	}
	return index.Count()
}

// IndexDir returns the directory the searcher loads from.
func (s *VectorSearcher) IndexDir() string {
	return s.indexDir
}

// Search embeds the query text (query prefix applied here; documents get
// theirs at index time) and returns the top-k unit hits.
func (s *VectorSearcher) Search(ctx context.Context, queryText string, k int) ([]VectorResult, error) {
	index := s.current()
	if index == nil {
		return nil, errors.New(errors.ErrCodeIndexNotLoaded, "search before index load", nil)
	}

	vec, err := s.embedder.Embed(ctx, embed.QueryPrefix+queryText)
	if err != nil {
		return nil, errors.New(errors.ErrCodeVectorStoreUnavailable, "query embedding failed", err)
	}

	results, err := index.Search(ctx, vec, k)
	if err != nil {
		return nil, errors.New(errors.ErrCodeVectorStoreUnavailable, "vector search failed", err)
	}
	return results, nil
}

// Close closes the bound index.
func (s *VectorSearcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}
