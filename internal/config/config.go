// Package config loads and validates the service configuration.
//
// Precedence, lowest to highest: built-in defaults, YAML config file,
// environment variables. The resulting Config is treated as immutable
// after Validate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration record. All search tunables live here
// so a single immutable value can be handed to the engine at startup.
type Config struct {
	DataDir string        `yaml:"data_dir"`
	Storage StorageConfig `yaml:"storage"`
	Embed   EmbedConfig   `yaml:"embed"`
	Search  SearchConfig  `yaml:"search"`
	Server  ServerConfig  `yaml:"server"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig locates the metadata database and the vector index.
type StorageConfig struct {
	// DBPath is the SQLite metadata database. Defaults to <data_dir>/articles.db.
	DBPath string `yaml:"db_path"`
	// IndexDir holds the vector index shards. Defaults to <data_dir>/index.
	IndexDir string `yaml:"index_dir"`
}

// EmbedConfig configures the embedding backend.
type EmbedConfig struct {
	// Provider is "ollama" or "static" (deterministic vectors for tests).
	Provider string `yaml:"provider"`
	// OllamaURL is the base URL of the Ollama server.
	OllamaURL string `yaml:"ollama_url"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dims is the embedding dimensionality.
	Dims int `yaml:"dims"`
	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size"`
	// Timeout bounds a single embedding request.
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig carries every retrieval tunable.
type SearchConfig struct {
	// RecallLimit is the vector recall depth (candidates before filtering).
	RecallLimit int `yaml:"recall_limit"`
	// ExpansionEnabled toggles vocabulary-based query expansion.
	ExpansionEnabled bool `yaml:"expansion_enabled"`
	// MaxExpansionVariants caps synonym variants per token.
	MaxExpansionVariants int `yaml:"max_expansion_variants"`

	Cutoff  CutoffConfig  `yaml:"semantic_filter"`
	Boosts  BoostConfig   `yaml:"boosts"`
	Scaling ScalingConfig `yaml:"query_length_scaling"`
	Recency RecencyConfig `yaml:"recency_boost"`
}

// CutoffConfig controls the adaptive semantic score cutoff.
type CutoffConfig struct {
	// Strategy is hybrid, statistical, percentile, or fixed.
	Strategy string `yaml:"strategy"`
	// Center is mean or median.
	Center string `yaml:"center"`
	// MinAbsoluteThreshold is the floor for the hybrid strategy.
	MinAbsoluteThreshold float64 `yaml:"min_absolute_threshold"`
	// KeywordThreshold is the lower bound of the keyword-aware bypass band.
	KeywordThreshold float64 `yaml:"keyword_threshold"`
	// FixedThreshold is used by the fixed strategy.
	FixedThreshold float64 `yaml:"fixed_threshold"`
	// Percentile keeps the top N percent under the percentile strategy.
	Percentile float64 `yaml:"percentile"`
}

// BoostConfig caps and scales the reranking signals.
type BoostConfig struct {
	TitleBoostMax        float64 `yaml:"title_boost_max"`
	KeywordBoostMax      float64 `yaml:"keyword_boost_max"`
	KeywordBoostScale    float64 `yaml:"keyword_boost_scale"`
	KeywordRerankTopN    int     `yaml:"keyword_rerank_top_n"`
	KeywordMaxQueryTerms int     `yaml:"keyword_max_query_terms"`
	// LengthNormalization is linear or log.
	LengthNormalization string  `yaml:"keyword_length_normalization"`
	DensityScale        float64 `yaml:"density_scale"`
	DiscoveryBoost      float64 `yaml:"discovery_boost"`
	DiscoveryMinScore   float64 `yaml:"discovery_min_score"`
	DiscoveryEnabled    bool    `yaml:"discovery_enabled"`
}

// ScalingConfig holds the query-length multiplier tiers.
type ScalingConfig struct {
	ShortMultiplier  float64 `yaml:"short_multiplier"`
	MediumMultiplier float64 `yaml:"medium_multiplier"`
	LongMultiplier   float64 `yaml:"long_multiplier"`
}

// RecencyConfig holds the additive per-tier recency bumps.
type RecencyConfig struct {
	PastWeek    float64 `yaml:"past_week"`
	PastMonth   float64 `yaml:"past_month"`
	Past3Months float64 `yaml:"past_3months"`
	PastYear    float64 `yaml:"past_year"`
	Past3Years  float64 `yaml:"past_3years"`
}

// ServerConfig configures the HTTP facade.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Workers is the fixed search worker pool size.
	Workers int `yaml:"workers"`
	// MaxInFlight caps admitted concurrent queries.
	MaxInFlight int `yaml:"max_in_flight"`
	// RequestTimeout is the per-request deadline.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// MaxQueryLength is the HTTP-level query length cap.
	MaxQueryLength int `yaml:"max_query_length"`
	// MaxLimit caps the per-page result count.
	MaxLimit int `yaml:"max_limit"`
}

// IngestConfig configures the ingestion side.
type IngestConfig struct {
	// ChunkThresholdWords: articles longer than this are chunked.
	ChunkThresholdWords int `yaml:"chunk_threshold_words"`
	// ChunkSizeWords is the target chunk size.
	ChunkSizeWords int `yaml:"chunk_size_words"`
	// ChunkOverlapWords is the overlap carried between adjacent chunks.
	ChunkOverlapWords int `yaml:"chunk_overlap_words"`
	// TitleWeightMultiplier: how many times the title is prepended at index time.
	TitleWeightMultiplier int `yaml:"title_weight_multiplier"`
	// VocabPath is the synonyms/terms/aliases YAML file.
	VocabPath string `yaml:"vocab_path"`
	// FeedConcurrency bounds parallel feed fetches.
	FeedConcurrency int `yaml:"feed_concurrency"`
	// FeedTimeout bounds a single feed fetch.
	FeedTimeout time.Duration `yaml:"feed_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	FilePath  string `yaml:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Storage: StorageConfig{},
		Embed: EmbedConfig{
			Provider:  "ollama",
			OllamaURL: "http://localhost:11434",
			Model:     "nomic-embed-text",
			Dims:      768,
			BatchSize: 32,
			Timeout:   60 * time.Second,
		},
		Search: SearchConfig{
			RecallLimit:          8000,
			ExpansionEnabled:     true,
			MaxExpansionVariants: 5,
			Cutoff: CutoffConfig{
				Strategy:             "hybrid",
				Center:               "mean",
				MinAbsoluteThreshold: 0.35,
				KeywordThreshold:     0.40,
				FixedThreshold:       0.50,
				Percentile:           50,
			},
			Boosts: BoostConfig{
				TitleBoostMax:        0.08,
				KeywordBoostMax:      0.06,
				KeywordBoostScale:    0.02,
				KeywordRerankTopN:    150,
				KeywordMaxQueryTerms: 5,
				LengthNormalization:  "linear",
				DensityScale:         1000,
				DiscoveryBoost:       0.025,
				DiscoveryMinScore:    0.70,
				DiscoveryEnabled:     true,
			},
			Scaling: ScalingConfig{
				ShortMultiplier:  1.0,
				MediumMultiplier: 0.5,
				LongMultiplier:   0.25,
			},
			Recency: RecencyConfig{
				PastWeek:    0.07,
				PastMonth:   0.05,
				Past3Months: 0.03,
				PastYear:    0.02,
				Past3Years:  0.01,
			},
		},
		Server: ServerConfig{
			Addr:           ":8000",
			Workers:        4,
			MaxInFlight:    24,
			RequestTimeout: 5 * time.Second,
			MaxQueryLength: 500,
			MaxLimit:       100,
		},
		Ingest: IngestConfig{
			ChunkThresholdWords:   5500,
			ChunkSizeWords:        2000,
			ChunkOverlapWords:     300,
			TitleWeightMultiplier: 5,
			FeedConcurrency:       4,
			FeedTimeout:           30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty and no default file exists), then
// environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidate := filepath.Join(cfg.DataDir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies SEARCH_* environment variables on top of the
// file-derived configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SEARCH_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SEARCH_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("SEARCH_INDEX_DIR"); v != "" {
		c.Storage.IndexDir = v
	}
	if v := os.Getenv("SEARCH_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SEARCH_OLLAMA_URL"); v != "" {
		c.Embed.OllamaURL = v
	}
	if v := os.Getenv("SEARCH_EMBED_PROVIDER"); v != "" {
		c.Embed.Provider = v
	}
	if v := os.Getenv("SEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SEARCH_RECALL_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RecallLimit = n
		}
	}
	if v := os.Getenv("SEARCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Workers = n
		}
	}
}

// applyDerivedDefaults fills paths that default relative to the data dir.
func (c *Config) applyDerivedDefaults() {
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = filepath.Join(c.DataDir, "articles.db")
	}
	if c.Storage.IndexDir == "" {
		c.Storage.IndexDir = filepath.Join(c.DataDir, "index")
	}
	if c.Ingest.VocabPath == "" {
		c.Ingest.VocabPath = filepath.Join(c.DataDir, "vocabulary.yaml")
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.DataDir, "logs", "server.log")
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Embed.Dims <= 0 {
		return fmt.Errorf("embed.dims must be positive, got %d", c.Embed.Dims)
	}
	switch c.Embed.Provider {
	case "ollama", "static":
	default:
		return fmt.Errorf("embed.provider must be ollama or static, got %q", c.Embed.Provider)
	}
	if c.Search.RecallLimit <= 0 {
		return fmt.Errorf("search.recall_limit must be positive, got %d", c.Search.RecallLimit)
	}
	switch c.Search.Cutoff.Strategy {
	case "hybrid", "statistical", "percentile", "fixed":
	default:
		return fmt.Errorf("semantic_filter.strategy must be hybrid, statistical, percentile, or fixed, got %q",
			c.Search.Cutoff.Strategy)
	}
	switch c.Search.Cutoff.Center {
	case "mean", "median":
	default:
		return fmt.Errorf("semantic_filter.center must be mean or median, got %q", c.Search.Cutoff.Center)
	}
	switch c.Search.Boosts.LengthNormalization {
	case "linear", "log":
	default:
		return fmt.Errorf("keyword_length_normalization must be linear or log, got %q",
			c.Search.Boosts.LengthNormalization)
	}
	if c.Server.Workers <= 0 {
		return fmt.Errorf("server.workers must be positive, got %d", c.Server.Workers)
	}
	if c.Server.MaxInFlight < c.Server.Workers {
		return fmt.Errorf("server.max_in_flight (%d) must be >= server.workers (%d)",
			c.Server.MaxInFlight, c.Server.Workers)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if c.Ingest.ChunkSizeWords <= c.Ingest.ChunkOverlapWords {
		return fmt.Errorf("ingest.chunk_size_words (%d) must exceed chunk_overlap_words (%d)",
			c.Ingest.ChunkSizeWords, c.Ingest.ChunkOverlapWords)
	}
	if c.Ingest.TitleWeightMultiplier < 0 {
		return fmt.Errorf("ingest.title_weight_multiplier must be >= 0")
	}
	return nil
}

// Multiplier returns the query-length multiplier m for a term count.
func (s ScalingConfig) Multiplier(queryTerms int) float64 {
	switch {
	case queryTerms <= 2:
		return s.ShortMultiplier
	case queryTerms == 3:
		return s.MediumMultiplier
	default:
		return s.LongMultiplier
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".marxist-search")
	}
	return filepath.Join(home, ".marxist-search")
}
