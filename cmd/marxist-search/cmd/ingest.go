package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/embed"
	"github.com/domwxyz/marxist-search/internal/ingest"
	"github.com/domwxyz/marxist-search/internal/store"
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Poll feeds and index new articles",
		Long: `Run one ingestion pass: poll every registered feed, store new
articles, and embed them into the vector index.

A file lock under the data directory keeps concurrent ingest runs
from corrupting the index; a second invocation fails fast.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg)
		},
	}
	return cmd
}

func runIngest(ctx context.Context, cfg *config.Config) error {
	logger, cleanup, err := setupLogging(cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	p, st, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, indexed, err := p.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("ingest complete",
		slog.Int("feeds_polled", stats.FeedsPolled),
		slog.Int("feeds_skipped", stats.FeedsSkipped),
		slog.Int("feeds_failed", stats.FeedsFailed),
		slog.Int("new_articles", stats.NewArticles),
		slog.Int("not_modified", stats.NotModified),
		slog.Int("indexed", indexed))

	fmt.Printf("Polled %d feeds (%d unchanged, %d failed): %d new articles, %d indexed\n",
		stats.FeedsPolled, stats.NotModified, stats.FeedsFailed, stats.NewArticles, indexed)
	return nil
}

// newPipeline assembles the ingestion pipeline from configuration. The
// caller owns the returned store.
func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ingest.Pipeline, *store.SQLiteStore, error) {
	st, err := store.OpenSQLite(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embed.NewFromConfig(ctx, cfg.Embed)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	v := loadVocabulary(cfg, logger)
	chunker := ingest.NewChunker(
		cfg.Ingest.ChunkThresholdWords,
		cfg.Ingest.ChunkSizeWords,
		cfg.Ingest.ChunkOverlapWords,
	)

	p := &ingest.Pipeline{
		Fetcher: ingest.NewFetcher(st, v, chunker, cfg.Ingest.FeedConcurrency, cfg.Ingest.FeedTimeout, logger),
		Indexer: ingest.NewIndexer(st, embedder, cfg.Storage.IndexDir, cfg.Ingest.TitleWeightMultiplier, logger),
		DataDir: cfg.DataDir,
	}
	return p, st, nil
}
