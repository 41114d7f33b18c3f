package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/felixgeelhaar/brainrot/internal/vector"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	v := New()
	v.Set("data_dir", dir)

	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Embedding.Enabled || cfg.Embedding.Dimensions != 384 || cfg.Embedding.Provider != "local" {
		t.Errorf("Unexpected embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Search.Limit != 10 || cfg.Search.Threshold != 0.5 {
		t.Errorf("Unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Metric() != vector.Cosine {
		t.Errorf("Expected cosine metric, got %s", cfg.Metric())
	}
	if cfg.DatabasePath() != filepath.Join(dir, DBName) {
		t.Errorf("Unexpected database path %s", cfg.DatabasePath())
	}
	if !slices.Equal(cfg.Policy.AllowedPriorities, []string{"low", "medium", "high"}) {
		t.Errorf("Unexpected policy %+v", cfg.Policy)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brainrot.yaml")
	os.WriteFile(path, []byte(`
embedding:
  provider: ollama
  dimensions: 768
  metric: l2
search:
  limit: 5
policy:
  max_tags: 3
`), 0600)

	t.Setenv("BRAINROT_EMBEDDING_ENABLED", "false")
	t.Setenv("BRAINROT_SEARCH_THRESHOLD", "1.2")

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Embedding.Enabled {
		t.Error("Expected env to disable embedding")
	}
	if cfg.Embedding.Provider != "ollama" || cfg.Embedding.Dimensions != 768 || cfg.Metric() != vector.L2 {
		t.Errorf("Unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Search.Limit != 5 || cfg.Search.Threshold != 1.2 {
		t.Errorf("Unexpected search config: %+v", cfg.Search)
	}
	if cfg.Policy.MaxTags != 3 || cfg.Policy.MaxKeyLength != 200 {
		t.Errorf("Unexpected policy: %+v", cfg.Policy)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Log:       LogConfig{Format: "console"},
			Embedding: EmbeddingConfig{Enabled: true, Provider: "local", Dimensions: 8, Metric: "cosine"},
			Search:    SearchConfig{Limit: 10, Threshold: 0.5},
			Reindex:   ReindexConfig{Concurrency: 2},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }, "embedding.dimensions"},
		{"zero dimensions disabled", func(c *Config) { c.Embedding.Dimensions = 0; c.Embedding.Enabled = false }, ""},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "anthropic" }, "embedding.provider"},
		{"unknown metric", func(c *Config) { c.Embedding.Metric = "dot" }, "embedding.metric"},
		{"threshold too high", func(c *Config) { c.Search.Threshold = 3 }, "search.threshold"},
		{"no concurrency", func(c *Config) { c.Reindex.Concurrency = 0 }, "reindex.concurrency"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestAPIKeyName(t *testing.T) {
	cfg := Config{Embedding: EmbeddingConfig{Provider: "openai"}}
	if key, env := cfg.APIKeyName(); key != "openai_api_key" || env != "OPENAI_API_KEY" {
		t.Errorf("Unexpected key names %s, %s", key, env)
	}
	cfg.Embedding.Provider = "local"
	if key, _ := cfg.APIKeyName(); key != "" {
		t.Errorf("Local provider needs no key, got %s", key)
	}
}
