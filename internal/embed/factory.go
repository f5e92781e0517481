package embed

import (
	"context"
	"fmt"

	"github.com/domwxyz/marxist-search/internal/config"
)

// NewFromConfig builds the embedder named by the configuration.
func NewFromConfig(ctx context.Context, cfg config.EmbedConfig) (Embedder, error) {
	switch cfg.Provider {
	case "static":
		return NewStaticEmbedder(cfg.Dims), nil
	case "ollama", "":
		return NewOllamaEmbedder(ctx, OllamaConfig{
			Host:      cfg.OllamaURL,
			Model:     cfg.Model,
			Dims:      cfg.Dims,
			BatchSize: cfg.BatchSize,
			Timeout:   cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown embed provider %q", cfg.Provider)
	}
}
