package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndexConfig configures the HNSW index.
type VectorIndexConfig struct {
	Dims     int
	M        int
	EfSearch int
}

// HNSWIndex is a dense-vector index over unit ids, backed by a pure Go
// HNSW graph. Cosine distance over normalized vectors.
//
// Upserts use lazy deletion: the old graph node is orphaned rather than
// removed (deleting nodes can corrupt the graph), and orphans are simply
// never returned because their key has no id mapping. A periodic rebuild
// from the metadata store reclaims the space.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig

	idMap   map[string]uint64 // unit id -> internal key
	keyMap  map[uint64]string // internal key -> unit id
	nextKey uint64

	closed bool
}

// hnswMetadata stores id mappings for persistence.
type hnswMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  VectorIndexConfig
}

// IndexFileName is the graph file inside the index directory; id
// mappings live next to it in IndexFileName + ".meta".
const IndexFileName = "articles.hnsw"

// NewHNSWIndex creates an empty index.
func NewHNSWIndex(cfg VectorIndexConfig) *HNSWIndex {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Upsert inserts or replaces vectors by unit id.
func (x *HNSWIndex) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, v := range vectors {
		if x.config.Dims > 0 && len(v) != x.config.Dims {
			return ErrDimensionMismatch{Expected: x.config.Dims, Got: len(v)}
		}
	}

	for i, id := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if existingKey, exists := x.idMap[id]; exists {
			delete(x.keyMap, existingKey)
			delete(x.idMap, id)
		}

		key := x.nextKey
		x.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		x.graph.Add(hnsw.MakeNode(key, vec))
		x.idMap[id] = key
		x.keyMap[key] = id
	}

	return nil
}

// Search returns the k nearest unit ids with similarity scores in [0, 1].
func (x *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if x.config.Dims > 0 && len(query) != x.config.Dims {
		return nil, ErrDimensionMismatch{Expected: x.config.Dims, Got: len(query)}
	}
	if x.graph.Len() == 0 || k <= 0 {
		return []VectorResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	// Over-fetch to cover lazily deleted nodes that still sit in the graph.
	orphans := x.graph.Len() - len(x.idMap)
	nodes := x.graph.Search(normalized, k+orphans)

	results := make([]VectorResult, 0, min(k, len(nodes)))
	for _, node := range nodes {
		id, exists := x.keyMap[node.Key]
		if !exists {
			continue
		}
		distance := x.graph.Distance(normalized, node.Value)
		results = append(results, VectorResult{
			ID:    id,
			Score: distanceToScore(distance),
		})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

// Contains reports whether a unit id is indexed.
func (x *HNSWIndex) Contains(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.idMap[id]
	return ok
}

// Count returns the number of live vectors.
func (x *HNSWIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return 0
	}
	return len(x.idMap)
}

// Dims returns the configured dimensionality.
func (x *HNSWIndex) Dims() int {
	return x.config.Dims
}

// Save persists the graph and id mappings into dir, atomically
// (temp file + rename).
func (x *HNSWIndex) Save(dir string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	path := filepath.Join(dir, IndexFileName)
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := x.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return x.saveMetadata(path + ".meta")
}

func (x *HNSWIndex) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	meta := hnswMetadata{IDMap: x.idMap, NextKey: x.nextKey, Config: x.config}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode index metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// LoadHNSWIndex reads a saved index from dir.
func LoadHNSWIndex(dir string) (*HNSWIndex, error) {
	path := filepath.Join(dir, IndexFileName)

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return nil, fmt.Errorf("open index metadata: %w", err)
	}
	defer func() { _ = metaFile.Close() }()

	var meta hnswMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode index metadata: %w", err)
	}

	x := NewHNSWIndex(meta.Config)
	x.idMap = meta.IDMap
	x.nextKey = meta.NextKey
	for id, key := range x.idMap {
		x.keyMap[key] = id
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// bufio because Import needs an io.ByteReader.
	if err := x.graph.Import(bufio.NewReader(file)); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}

	return x, nil
}

// Close releases the graph.
func (x *HNSWIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	x.graph = nil
	return nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore converts cosine distance (0..2) to similarity (0..1).
func distanceToScore(distance float32) float64 {
	return float64(1.0 - distance/2.0)
}
