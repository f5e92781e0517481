package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			_, cleanup, err := setupLogging(cfg, false)
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

			stats, err := st.Stats(ctx)
			if err != nil {
				return err
			}
			if index, err := store.LoadHNSWIndex(cfg.Storage.IndexDir); err == nil {
				stats.IndexedVectors = index.Count()
				index.Close()
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			styles := ui.StylesFor(os.Stdout)
			label := func(s string) string { return styles.Label.Render(s) }

			fmt.Printf("%s %d\n", label("Articles:"), stats.TotalArticles)
			fmt.Printf("%s %d\n", label("Indexed:"), stats.IndexedArticles)
			fmt.Printf("%s %d\n", label("Chunks:"), stats.TotalChunks)
			fmt.Printf("%s %d\n", label("Vectors:"), stats.IndexedVectors)
			fmt.Printf("%s %d\n", label("Sources:"), stats.SourceCount)
			fmt.Printf("%s %d\n", label("Searches:"), stats.TotalSearches)
			if !stats.EarliestArticle.IsZero() {
				fmt.Printf("%s %s to %s\n", label("Range:"),
					stats.EarliestArticle.Format("2006-01-02"),
					stats.LatestArticle.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}
