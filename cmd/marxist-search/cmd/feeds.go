package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/ui"
)

func newFeedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Manage RSS feed registrations",
	}

	cmd.AddCommand(newFeedsAddCmd())
	cmd.AddCommand(newFeedsListCmd())

	return cmd
}

func newFeedsAddCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Register a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := store.OpenSQLite(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.UpsertFeed(cmd.Context(), args[0], name); err != nil {
				return err
			}
			fmt.Printf("Registered %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Source name (defaults to the feed title)")

	return cmd
}

func newFeedsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := store.OpenSQLite(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			feeds, err := st.ListFeeds(cmd.Context(), true)
			if err != nil {
				return err
			}
			if len(feeds) == 0 {
				fmt.Println("No feeds registered.")
				return nil
			}

			styles := ui.StylesFor(os.Stdout)
			for _, f := range feeds {
				status := f.Status
				switch f.Status {
				case store.FeedStatusDegraded:
					status = styles.Warning.Render(f.Status)
				case store.FeedStatusFailing:
					status = styles.Error.Render(f.Status)
				}

				line := fmt.Sprintf("[%s] %s", status, f.URL)
				if f.Name != "" {
					line += "  (" + f.Name + ")"
				}
				if f.ConsecutiveFailures > 0 {
					line += fmt.Sprintf("  %d consecutive failures", f.ConsecutiveFailures)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	return cmd
}
