package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app:pw@localhost:5432/sales")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Sampling.Rows)
	assert.Equal(t, 5, cfg.Sampling.TimeoutSec)
	assert.Equal(t, 500, cfg.Execution.RowLimit)
	assert.Equal(t, 2000, cfg.Execution.MaxCellChars)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.6, cfg.Retrieval.Alpha, 1e-9)
	assert.Equal(t, 300, cfg.Startup.MaxTables)
	assert.False(t, cfg.Embedding.Enabled())
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_SchemaLists(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sales")
	t.Setenv("QUERYLENS_INCLUDE_SCHEMAS", "sales,finance")
	t.Setenv("QUERYLENS_EXCLUDE_SCHEMAS", "staging")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"sales", "finance"}, cfg.Sampling.IncludeSchemas)
	assert.Equal(t, []string{"staging"}, cfg.Sampling.ExcludeSchemas)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DatabaseURL: "postgres://localhost/x",
			Sampling:    SamplingConfig{Rows: 100, TimeoutSec: 5},
			Execution:   ExecutionConfig{RowLimit: 500, MaxCellChars: 2000, TimeoutSec: 30},
			Retrieval:   RetrievalConfig{TopK: 8, Alpha: 0.6, MaxExpand: 12},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad dialect", func(c *Config) { c.Dialect = "oracle" }, "unsupported dialect"},
		{"zero row limit", func(c *Config) { c.Execution.RowLimit = 0 }, "row_limit"},
		{"alpha out of range", func(c *Config) { c.Retrieval.Alpha = 1.5 }, "alpha"},
		{"zero sample rows", func(c *Config) { c.Sampling.Rows = 0 }, "sampling.rows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEmbeddingConfig_Enabled(t *testing.T) {
	assert.False(t, EmbeddingConfig{URL: "http://x"}.Enabled())
	assert.False(t, EmbeddingConfig{Model: "m"}.Enabled())
	assert.True(t, EmbeddingConfig{URL: "http://x", Model: "m"}.Enabled())
}

func TestRedactedOmitsSecrets(t *testing.T) {
	cfg := &Config{
		DatabaseURL: "postgres://app:hunter2@db/sales",
		Sampling:    SamplingConfig{Rows: 100, TimeoutSec: 5},
		Embedding:   EmbeddingConfig{URL: "http://emb", Model: "m", APIKey: "sk-secret"},
	}

	dump := cfg.Redacted()
	assert.NotContains(t, dump, "hunter2")
	assert.NotContains(t, dump, "sk-secret")
	assert.Contains(t, dump, "rows: 100")
	assert.Contains(t, dump, "model: m")
}
