package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/embed"
	"github.com/domwxyz/marxist-search/internal/search"
	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit     int
	offset    int
	source    string
	author    string
	dateRange string
	jsonOut   bool
	scores    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot search from the terminal",
		Long: `Search the corpus without going through the HTTP API.

Queries support quoted phrases and field prefixes:
  marxist-search search "permanent revolution"
  marxist-search search 'title:"state and revolution"'
  marxist-search search 'author:"Ted Grant" world economy' --date past_year`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runSearchCLI(cmd.Context(), cfg, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().StringVar(&opts.source, "source", "", "Filter by source name")
	cmd.Flags().StringVar(&opts.author, "author", "", "Filter by author")
	cmd.Flags().StringVar(&opts.dateRange, "date", "", "Date preset (past_week, past_month, 2010s, ...)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Emit the raw response as JSON")
	cmd.Flags().BoolVar(&opts.scores, "scores", false, "Show per-signal score breakdown")

	return cmd
}

func runSearchCLI(ctx context.Context, cfg *config.Config, query string, opts searchOptions) error {
	_, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

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
		return err
	}
	defer vectors.Close()

	engine, err := search.NewEngine(st, vectors, loadVocabulary(cfg, slog.Default()), cfg.Search)
	if err != nil {
		return err
	}

	resp, err := engine.Search(ctx, search.Request{
		Query: query,
		Filters: search.Filters{
			Source:    opts.source,
			Author:    opts.author,
			DateRange: opts.dateRange,
		},
		Limit:  opts.limit,
		Offset: opts.offset,
	})
	if err != nil {
		return err
	}

	if opts.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	renderResults(os.Stdout, resp, opts.scores)
	return nil
}

// renderResults prints the response in the terminal layout.
func renderResults(out *os.File, resp search.Response, showScores bool) {
	styles := ui.StylesFor(out)

	if resp.Error != "" {
		fmt.Fprintln(out, styles.Error.Render("Error: "+resp.Error))
		return
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, styles.Meta.Render("No results."))
		return
	}

	fmt.Fprintln(out, styles.Meta.Render(
		fmt.Sprintf("%d results (%d ms)", resp.Total, resp.QueryTimeMS)))
	fmt.Fprintln(out)

	for i, r := range resp.Results {
		rank := resp.Offset + i + 1
		fmt.Fprintf(out, "%s %s\n",
			styles.Score.Render(fmt.Sprintf("%2d.", rank)),
			styles.Title.Render(r.Title))

		meta := fmt.Sprintf("%s | %s", r.Author, r.Source)
		if r.PublishedDate != "" {
			meta += " | " + r.PublishedDate[:10]
		}
		meta += fmt.Sprintf(" | score %.4f", r.Score)
		if r.MatchedSections > 1 {
			meta += fmt.Sprintf(" | %d sections", r.MatchedSections)
		}
		fmt.Fprintf(out, "    %s\n", styles.Meta.Render(meta))

		if r.Excerpt != "" {
			fmt.Fprintf(out, "    %s\n", styles.Excerpt.Render(r.Excerpt))
		}
		if showScores && r.Debug != nil {
			d := r.Debug
			fmt.Fprintf(out, "    %s\n", styles.Meta.Render(fmt.Sprintf(
				"base %.4f  title +%.4f  phrase +%.4f  keyword +%.4f  discovery +%.4f  recency +%.4f",
				d.BaseScore, d.TitleBoost, d.PhraseBoost, d.KeywordBoost, d.DiscoveryBoost, d.RecencyBoost)))
		}
		fmt.Fprintf(out, "    %s\n\n", styles.Rule.Render(r.URL))
	}
}
