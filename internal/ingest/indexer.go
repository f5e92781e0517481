package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/domwxyz/marxist-search/internal/embed"
	"github.com/domwxyz/marxist-search/internal/errors"
	"github.com/domwxyz/marxist-search/internal/ident"
	"github.com/domwxyz/marxist-search/internal/store"
)

// indexBatchSize is how many articles are embedded per store round trip.
const indexBatchSize = 64

// Indexer embeds un-indexed units and writes them to the vector index.
type Indexer struct {
	store    *store.SQLiteStore
	embedder embed.Embedder
	indexDir string

	// TitleMultiplier prepends the title this many times to whole
	// articles and to chunk 0, weighting title matches in the embedding.
	TitleMultiplier int

	logger *slog.Logger
}

// NewIndexer wires an indexer over the metadata store and an embedder.
func NewIndexer(st *store.SQLiteStore, embedder embed.Embedder, indexDir string, titleMultiplier int, logger *slog.Logger) *Indexer {
	if titleMultiplier <= 0 {
		titleMultiplier = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:           st,
		embedder:        embedder,
		indexDir:        indexDir,
		TitleMultiplier: titleMultiplier,
		logger:          logger,
	}
}

// Run embeds every un-indexed article and saves the index. The index on
// disk is loaded first so repeated runs are incremental. Returns the
// number of articles indexed.
func (ix *Indexer) Run(ctx context.Context) (int, error) {
	index, err := store.LoadHNSWIndex(ix.indexDir)
	if err != nil {
		ix.logger.Info("starting fresh vector index", slog.String("dir", ix.indexDir))
		index = store.NewHNSWIndex(store.VectorIndexConfig{Dims: ix.embedder.Dims()})
	}
	defer index.Close()

	total := 0
	for {
		articles, err := ix.store.ListUnindexed(ctx, indexBatchSize)
		if err != nil {
			return total, err
		}
		if len(articles) == 0 {
			break
		}

		if err := ix.indexBatch(ctx, index, articles); err != nil {
			return total, err
		}
		total += len(articles)
	}

	if total > 0 {
		if err := index.Save(ix.indexDir); err != nil {
			return total, err
		}
		ix.logger.Info("vector index saved",
			slog.String("dir", ix.indexDir),
			slog.Int("articles", total),
			slog.Int("vectors", index.Count()))
	}
	return total, nil
}

// indexBatch embeds one batch of articles and marks them indexed.
func (ix *Indexer) indexBatch(ctx context.Context, index *store.HNSWIndex, articles []store.Article) error {
	var ids []string
	var texts []string
	var articleIDs []int

	for _, a := range articles {
		units, err := ix.unitTexts(ctx, a)
		if err != nil {
			return err
		}
		for _, u := range units {
			ids = append(ids, u.id)
			texts = append(texts, embed.DocumentPrefix+u.text)
		}
		articleIDs = append(articleIDs, a.ID)
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return errors.New(errors.ErrCodeEmbeddingFailed, "embed article batch", err)
	}
	if err := index.Upsert(ctx, ids, vectors); err != nil {
		return err
	}
	return ix.store.MarkIndexed(ctx, articleIDs)
}

type unitText struct {
	id   string
	text string
}

// unitTexts builds the embedding inputs for one article: the whole body
// for short articles, per-chunk texts otherwise. The title is prepended
// TitleMultiplier times to whole articles and to chunk 0 only.
func (ix *Indexer) unitTexts(ctx context.Context, a store.Article) ([]unitText, error) {
	titlePrefix := strings.TrimSpace(strings.Repeat(a.Title+" ", ix.TitleMultiplier))

	if !a.Chunked {
		return []unitText{{
			id:   ident.MakeArticleID(a.ID),
			text: titlePrefix + " " + a.Content,
		}}, nil
	}

	chunks, err := ix.store.GetChunks(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	units := make([]unitText, 0, len(chunks))
	for _, ch := range chunks {
		text := ch.Content
		if ch.Index == 0 {
			text = titlePrefix + " " + text
		}
		units = append(units, unitText{
			id:   ident.MakeChunkID(a.ID, ch.Index),
			text: text,
		})
	}
	return units, nil
}

// Reindex rebuilds the vector index from scratch: every article is
// re-embedded, replacing whatever was on disk. Returns the number of
// articles indexed.
func (ix *Indexer) Reindex(ctx context.Context) (int, error) {
	if err := ix.store.MarkAllUnindexed(ctx); err != nil {
		return 0, err
	}

	index := store.NewHNSWIndex(store.VectorIndexConfig{Dims: ix.embedder.Dims()})
	defer index.Close()

	total := 0
	for {
		articles, err := ix.store.ListUnindexed(ctx, indexBatchSize)
		if err != nil {
			return total, err
		}
		if len(articles) == 0 {
			break
		}
		if err := ix.indexBatch(ctx, index, articles); err != nil {
			return total, err
		}
		total += len(articles)
	}

	if err := index.Save(ix.indexDir); err != nil {
		return total, err
	}
	ix.logger.Info("vector index rebuilt",
		slog.String("dir", ix.indexDir),
		slog.Int("articles", total))
	return total, nil
}

// Pipeline runs fetch and index as one locked pass, so overlapping cron
// invocations and manual runs cannot interleave writes.
type Pipeline struct {
	Fetcher *Fetcher
	Indexer *Indexer
	DataDir string
}

// Run acquires the ingest lock, polls feeds, and indexes new content.
func (p *Pipeline) Run(ctx context.Context) (FetchStats, int, error) {
	lock := flock.New(filepath.Join(p.DataDir, "ingest.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return FetchStats{}, 0, errors.New(errors.ErrCodeStorage, "acquire ingest lock", err)
	}
	if !locked {
		return FetchStats{}, 0, errors.New(errors.ErrCodeStorage,
			"another ingest run holds the lock", nil)
	}
	defer lock.Unlock()

	stats, err := p.Fetcher.FetchAll(ctx)
	if err != nil {
		return stats, 0, err
	}

	indexed, err := p.Indexer.Run(ctx)
	return stats, indexed, err
}
