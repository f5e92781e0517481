package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/embed"
	"github.com/domwxyz/marxist-search/internal/httpapi"
	"github.com/domwxyz/marxist-search/internal/search"
	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/vocab"
)

// reloadDebounce coalesces the burst of file events an index save produces
// into a single engine reload.
const reloadDebounce = 2 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP search API",
		Long: `Start the search server.

Loads the vector index and metadata database, then serves the search
API until interrupted. The index directory is watched: when an ingest
run saves a new index, the server reloads it without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, cleanup, err := setupLogging(cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.OpenSQLite(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := embed.NewFromConfig(ctx, cfg.Embed)
	if err != nil {
		return err
	}

	vectors := store.NewVectorSearcher(embedder, cfg.Storage.IndexDir)
	if err := vectors.Load(); err != nil {
		// Serve degraded: metadata-only queries still work, and the
		// watcher picks the index up once an ingest run produces one.
		logger.Warn("vector index unavailable, serving without semantic search",
			slog.String("index_dir", cfg.Storage.IndexDir),
			slog.String("error", err.Error()))
	}
	defer vectors.Close()

	v := loadVocabulary(cfg, logger)

	engine, err := search.NewEngine(st, vectors, v, cfg.Search, search.WithLogger(logger))
	if err != nil {
		return err
	}

	stopWatch, err := watchIndexDir(ctx, cfg.Storage.IndexDir, engine, logger)
	if err != nil {
		logger.Warn("index watcher unavailable", slog.String("error", err.Error()))
	} else {
		defer stopWatch()
	}

	srv := httpapi.New(engine, cfg.Server, logger)
	logger.Info("server starting",
		slog.String("addr", cfg.Server.Addr),
		slog.Int("vectors", vectors.Count()))
	return srv.Start(ctx)
}

// loadVocabulary reads the vocabulary file, falling back to an empty
// vocabulary when none is configured yet.
func loadVocabulary(cfg *config.Config, logger *slog.Logger) *vocab.Vocabulary {
	v, err := vocab.Load(cfg.Ingest.VocabPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("vocabulary load failed, expansion disabled",
				slog.String("path", cfg.Ingest.VocabPath),
				slog.String("error", err.Error()))
		}
		return vocab.Empty()
	}
	logger.Info("vocabulary loaded",
		slog.String("path", cfg.Ingest.VocabPath),
		slog.Int("terms", v.TermCount()))
	return v
}

// watchIndexDir reloads the engine when the index files change on disk.
func watchIndexDir(ctx context.Context, dir string, engine *search.Engine, logger *slog.Logger) (func(), error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	var mu sync.Mutex
	var pending *time.Timer

	reload := func() {
		res, err := engine.Reload()
		if err != nil {
			logger.Error("index reload failed", slog.String("error", err.Error()))
			return
		}
		logger.Info("index reloaded",
			slog.Int("old_count", res.OldCount),
			slog.Int("new_count", res.NewCount))
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				mu.Lock()
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(reloadDebounce, reload)
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("index watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
