package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/internal/embed"
	"github.com/domwxyz/marxist-search/internal/errors"
)

func buildIndexOnDisk(t *testing.T, dir string, docs map[string]string) {
	t.Helper()
	ctx := context.Background()
	e := embed.NewStaticEmbedder(64)
	defer e.Close()

	x := NewHNSWIndex(VectorIndexConfig{Dims: 64})
	defer x.Close()

	for id, text := range docs {
		v, err := e.Embed(ctx, embed.DocumentPrefix+text)
		require.NoError(t, err)
		require.NoError(t, x.Upsert(ctx, []string{id}, [][]float32{v}))
	}
	require.NoError(t, x.Save(dir))
}

func TestSearcherLoadAndSearch(t *testing.T) {
	dir := t.TempDir()
	buildIndexOnDisk(t, dir, map[string]string{
		"a_1": "permanent revolution theory",
		"a_2": "quarterly budget spreadsheet",
	})

	s := NewVectorSearcher(embed.NewStaticEmbedder(64), dir)
	require.NoError(t, s.Load())
	defer s.Close()

	assert.True(t, s.Loaded())
	assert.Equal(t, 2, s.Count())

	results, err := s.Search(context.Background(), "permanent revolution", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a_1", results[0].ID)
}

func TestSearcherSearchBeforeLoad(t *testing.T) {
	s := NewVectorSearcher(embed.NewStaticEmbedder(64), t.TempDir())

	_, err := s.Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIndexNotLoaded, errors.GetCode(err))
}

func TestReloadSwapsIndex(t *testing.T) {
	dir := t.TempDir()
	buildIndexOnDisk(t, dir, map[string]string{"a_1": "one"})

	s := NewVectorSearcher(embed.NewStaticEmbedder(64), dir)
	require.NoError(t, s.Load())
	defer s.Close()
	require.Equal(t, 1, s.Count())

	// Grow the on-disk index, then reload.
	buildIndexOnDisk(t, dir, map[string]string{"a_1": "one", "a_2": "two", "a_3": "three"})

	oldCount, newCount, err := s.Reload()
	require.NoError(t, err)
	assert.Equal(t, 1, oldCount)
	assert.Equal(t, 3, newCount)
	assert.Equal(t, 3, s.Count())
}

func TestReloadFailureKeepsOldIndex(t *testing.T) {
	dir := t.TempDir()
	buildIndexOnDisk(t, dir, map[string]string{"a_1": "one", "a_2": "two"})

	s := NewVectorSearcher(embed.NewStaticEmbedder(64), dir)
	require.NoError(t, s.Load())
	defer s.Close()

	// Corrupt the on-disk metadata so the next load fails.
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName+".meta"), []byte("junk"), 0o644))

	oldCount, newCount, err := s.Reload()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeVectorStoreUnavailable, errors.GetCode(err))
	assert.Equal(t, 2, oldCount)
	assert.Equal(t, 2, newCount)

	// Old index still serves queries.
	results, searchErr := s.Search(context.Background(), "one", 1)
	require.NoError(t, searchErr)
	assert.NotEmpty(t, results)
}

func TestReloadIdempotentWithoutIngestion(t *testing.T) {
	dir := t.TempDir()
	buildIndexOnDisk(t, dir, map[string]string{"a_1": "one", "a_2": "two"})

	s := NewVectorSearcher(embed.NewStaticEmbedder(64), dir)
	require.NoError(t, s.Load())
	defer s.Close()

	old1, new1, err := s.Reload()
	require.NoError(t, err)
	old2, new2, err := s.Reload()
	require.NoError(t, err)

	assert.Equal(t, old1, new1)
	assert.Equal(t, old2, new2)
	assert.Equal(t, new1, new2)
}
