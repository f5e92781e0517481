package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/embed"
	"github.com/domwxyz/marxist-search/internal/ingest"
	"github.com/domwxyz/marxist-search/internal/store"
)

func newReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index from stored articles",
		Long: `Re-embed every stored article and write a fresh vector index.

Use after changing the embedding model or the title weighting; normal
ingestion only embeds articles it has not seen before.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogging(cfg, true)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			st, err := store.OpenSQLite(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			embedder, err := embed.NewFromConfig(ctx, cfg.Embed)
			if err != nil {
				return err
			}

			ix := ingest.NewIndexer(st, embedder, cfg.Storage.IndexDir, cfg.Ingest.TitleWeightMultiplier, logger)
			n, err := ix.Reindex(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Reindexed %d articles\n", n)
			return nil
		},
	}
	return cmd
}
