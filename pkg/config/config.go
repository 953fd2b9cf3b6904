// Package config loads service configuration from an optional YAML file and
// from environment variables. Environment variables always win, and secrets
// are accepted from the environment only.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config holds all tunables for the engine.
type Config struct {
	// DatabaseURL is the connection string of the target database.
	// Environment only; never read from YAML.
	DatabaseURL string `yaml:"-" env:"DATABASE_URL"`

	// Dialect overrides connection-string dialect detection when set.
	// One of: postgres, tsql, sqlite.
	Dialect string `yaml:"dialect" env:"QUERYLENS_DIALECT" env-default:""`

	Sampling  SamplingConfig  `yaml:"sampling"`
	Execution ExecutionConfig `yaml:"execution"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Startup   StartupConfig   `yaml:"startup"`

	// Debug enables verbose logging and the development log encoder.
	Debug bool `yaml:"debug" env:"QUERYLENS_DEBUG" env-default:"false"`
}

// SamplingConfig bounds the per-table profiling queries.
type SamplingConfig struct {
	Rows       int `yaml:"rows" env:"QUERYLENS_SAMPLE_ROWS" env-default:"100"`
	TimeoutSec int `yaml:"timeout_sec" env:"QUERYLENS_SAMPLE_TIMEOUT_SEC" env-default:"5"`

	// IncludeSchemas restricts reflection to these schemas when non-empty.
	IncludeSchemas []string `yaml:"include_schemas" env:"QUERYLENS_INCLUDE_SCHEMAS" env-separator:","`
	// ExcludeSchemas removes schemas on top of the built-in system list.
	ExcludeSchemas []string `yaml:"exclude_schemas" env:"QUERYLENS_EXCLUDE_SCHEMAS" env-separator:","`
}

// Timeout returns the sampling timeout as a duration.
func (s SamplingConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// ExecutionConfig bounds guarded query execution.
type ExecutionConfig struct {
	RowLimit     int `yaml:"row_limit" env:"QUERYLENS_ROW_LIMIT" env-default:"500"`
	MaxCellChars int `yaml:"max_cell_chars" env:"QUERYLENS_MAX_CELL_CHARS" env-default:"2000"`
	TimeoutSec   int `yaml:"timeout_sec" env:"QUERYLENS_QUERY_TIMEOUT_SEC" env-default:"30"`
}

// Timeout returns the execution timeout as a duration.
func (e ExecutionConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSec) * time.Second
}

// RetrievalConfig tunes table search and graph expansion.
type RetrievalConfig struct {
	TopK      int     `yaml:"top_k" env:"QUERYLENS_TOP_K" env-default:"8"`
	Alpha     float64 `yaml:"alpha" env:"QUERYLENS_ALPHA" env-default:"0.6"`
	MaxExpand int     `yaml:"max_expand" env:"QUERYLENS_MAX_EXPAND" env-default:"12"`
}

// EmbeddingConfig points at an OpenAI-compatible embeddings endpoint.
// Embeddings are optional; the engine degrades to lexical retrieval when
// no endpoint is configured.
type EmbeddingConfig struct {
	URL    string `yaml:"url" env:"QUERYLENS_EMBEDDING_URL" env-default:""`
	Model  string `yaml:"model" env:"QUERYLENS_EMBEDDING_MODEL" env-default:""`
	APIKey string `yaml:"-" env:"QUERYLENS_EMBEDDING_API_KEY"`

	// MaxColumnsPerTable caps how many column labels are embedded per table.
	MaxColumnsPerTable int `yaml:"max_columns_per_table" env:"QUERYLENS_EMBED_MAX_COLUMNS" env-default:"20"`
}

// Enabled reports whether the embedding capability is configured.
func (e EmbeddingConfig) Enabled() bool {
	return e.URL != "" && e.Model != ""
}

// StartupConfig bounds the fast-start pass and card caching.
type StartupConfig struct {
	// MaxTables caps how many tables the fast-start pass profiles before
	// declaring READY. The enrichment pass covers the remainder.
	MaxTables int `yaml:"max_tables" env:"QUERYLENS_MAX_TABLES_AT_STARTUP" env-default:"300"`

	// CardCacheDir persists built schema cards between runs. Empty disables
	// the cache.
	CardCacheDir string `yaml:"card_cache_dir" env:"QUERYLENS_CARD_CACHE_DIR" env-default:""`

	ReadyTimeoutSec int `yaml:"ready_timeout_sec" env:"QUERYLENS_READY_TIMEOUT_SEC" env-default:"120"`
}

// ReadyTimeout bounds the time allowed to reach READY. Zero disables the
// bound.
func (s StartupConfig) ReadyTimeout() time.Duration {
	return time.Duration(s.ReadyTimeoutSec) * time.Second
}

// Load reads the optional YAML file at path (when it exists) and then the
// environment on top of it. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
			return cfg, cfg.Validate()
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Redacted renders the effective configuration as YAML for startup logging.
// Secret fields carry a `yaml:"-"` tag and never appear in the output.
func (c *Config) Redacted() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("unrenderable config: %v", err)
	}
	return string(out)
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.Dialect {
	case "", "postgres", "tsql", "sqlite":
	default:
		return fmt.Errorf("unsupported dialect %q (expected postgres, tsql or sqlite)", c.Dialect)
	}
	if c.Sampling.Rows <= 0 {
		return fmt.Errorf("sampling.rows must be positive, got %d", c.Sampling.Rows)
	}
	if c.Execution.RowLimit <= 0 {
		return fmt.Errorf("execution.row_limit must be positive, got %d", c.Execution.RowLimit)
	}
	if c.Execution.MaxCellChars <= 0 {
		return fmt.Errorf("execution.max_cell_chars must be positive, got %d", c.Execution.MaxCellChars)
	}
	if c.Retrieval.Alpha < 0 || c.Retrieval.Alpha > 1 {
		return fmt.Errorf("retrieval.alpha must be in [0,1], got %g", c.Retrieval.Alpha)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	return nil
}
