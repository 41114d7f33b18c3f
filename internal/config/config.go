// Package config resolves brainrot settings from defaults, an optional YAML
// file and BRAINROT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/felixgeelhaar/brainrot/internal/embed"
	"github.com/felixgeelhaar/brainrot/internal/guard"
	"github.com/felixgeelhaar/brainrot/internal/memory"
	"github.com/felixgeelhaar/brainrot/internal/vector"
)

const (
	EnvPrefix = "BRAINROT"
	DirName   = ".brainrot"
	DBName    = "brainrot.db"
)

var providers = []string{"local", "openai", "ollama", "gemini", "stub"}

type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Database  string          `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Search    SearchConfig    `mapstructure:"search"`
	Reindex   ReindexConfig   `mapstructure:"reindex"`
	Policy    guard.Policy    `mapstructure:"policy"`
}

type LogConfig struct {
	Verbose bool   `mapstructure:"verbose"`
	Format  string `mapstructure:"format"`
}

type EmbeddingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	Metric     string `mapstructure:"metric"`
	BaseURL    string `mapstructure:"base_url"`
}

type SearchConfig struct {
	Limit     int     `mapstructure:"limit"`
	Threshold float64 `mapstructure:"threshold"`
}

type ReindexConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func SetDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("data_dir", filepath.Join(home, DirName))
	v.SetDefault("database", "")
	v.SetDefault("log.verbose", false)
	v.SetDefault("log.format", "console")

	v.SetDefault("embedding.enabled", true)
	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.metric", string(vector.Cosine))
	v.SetDefault("embedding.base_url", "")

	v.SetDefault("search.limit", memory.DefaultLimit)
	v.SetDefault("search.threshold", memory.DefaultThreshold)
	v.SetDefault("reindex.concurrency", 4)

	p := guard.DefaultPolicy
	v.SetDefault("policy.max_key_length", p.MaxKeyLength)
	v.SetDefault("policy.max_content_bytes", p.MaxContentBytes)
	v.SetDefault("policy.max_tags", p.MaxTags)
	v.SetDefault("policy.allowed_key_globs", p.AllowedKeyGlobs)
	v.SetDefault("policy.blocked_key_globs", p.BlockedKeyGlobs)
	v.SetDefault("policy.allowed_priorities", p.AllowedPriorities)
}

// Load reads file, or <data_dir>/config.yaml when file is empty and that
// exists, and returns the validated result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.AddConfigPath(v.GetString("data_dir"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the stores cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Embedding.Enabled {
		if c.Embedding.Dimensions <= 0 {
			errs = append(errs, fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions))
		}
		if !slices.Contains(providers, strings.ToLower(c.Embedding.Provider)) {
			errs = append(errs, fmt.Errorf("embedding.provider must be one of %s, got %q", strings.Join(providers, ", "), c.Embedding.Provider))
		}
	}
	if _, err := vector.ParseMetric(c.Embedding.Metric); err != nil {
		errs = append(errs, fmt.Errorf("embedding.metric: %w", err))
	}
	if c.Search.Limit <= 0 {
		errs = append(errs, fmt.Errorf("search.limit must be positive, got %d", c.Search.Limit))
	}
	if c.Search.Threshold < 0 || c.Search.Threshold > vector.MaxScore {
		errs = append(errs, fmt.Errorf("search.threshold must be within [0, %g], got %g", vector.MaxScore, c.Search.Threshold))
	}
	if c.Reindex.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("reindex.concurrency must be positive, got %d", c.Reindex.Concurrency))
	}
	if f := c.Log.Format; f != "console" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", f))
	}
	return errors.Join(errs...)
}

// DatabasePath is the SQLite file holding contexts and vectors.
func (c *Config) DatabasePath() string {
	if c.Database != "" {
		return c.Database
	}
	return filepath.Join(c.DataDir, DBName)
}

func (c *Config) Metric() vector.Metric {
	m, _ := vector.ParseMetric(c.Embedding.Metric)
	return m
}

// EmbedConfig is the embedder factory input; apiKey comes from the
// credential vault.
func (c *Config) EmbedConfig(apiKey string) embed.Config {
	return embed.Config{
		Enabled:    c.Embedding.Enabled,
		Provider:   c.Embedding.Provider,
		Model:      c.Embedding.Model,
		Dimensions: c.Embedding.Dimensions,
		BaseURL:    c.Embedding.BaseURL,
		APIKey:     apiKey,
	}
}

// APIKeyName is the vault key and environment fallback of the configured
// provider's credential. Providers without one return empty strings.
func (c *Config) APIKeyName() (key, env string) {
	switch strings.ToLower(c.Embedding.Provider) {
	case "openai":
		return "openai_api_key", "OPENAI_API_KEY"
	case "gemini":
		return "gemini_api_key", "GEMINI_API_KEY"
	}
	return "", ""
}
