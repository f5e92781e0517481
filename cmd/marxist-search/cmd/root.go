// Package cmd provides the CLI commands for marxist-search.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/errors"
	"github.com/domwxyz/marxist-search/internal/logging"
	"github.com/domwxyz/marxist-search/pkg/version"
)

var (
	configPath string
	debugMode  bool
)

// NewRootCmd creates the root command for the marxist-search CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marxist-search",
		Short: "Semantic search over a Marxist article corpus",
		Long: `marxist-search ingests articles from RSS feeds, embeds them into a
vector index, and serves hybrid semantic search over the corpus.

Typical flow:
  marxist-search feeds add https://example.org/rss
  marxist-search ingest
  marxist-search serve`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("marxist-search version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default: <data_dir>/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newFeedsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		os.Stderr.WriteString(errors.FormatForCLI(err))
	}
	return err
}

// loadConfig builds the effective configuration for a command invocation.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// setupLogging wires the process logger. Long-running commands log to the
// configured file with a stderr mirror; one-shot commands log to stderr only.
func setupLogging(cfg *config.Config, toFile bool) (*slog.Logger, func(), error) {
	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: true,
	}
	if toFile {
		logCfg.FilePath = cfg.Logging.FilePath
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, cleanup, nil
}
