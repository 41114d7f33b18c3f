// Package embed turns context text into vectors.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDisabled is returned by New when embedding is switched off.
var ErrDisabled = errors.New("embedding disabled")

// Embedder defines the interface for embedding models.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensionality is the length of every vector Embed returns.
	Dimensionality() int

	// Name returns the provider identifier (e.g., "local", "openai").
	Name() string
}

// Compose builds the text embedded for a record: the summary, when present,
// followed by the content.
func Compose(content, summary string) string {
	content = strings.TrimSpace(content)
	summary = strings.TrimSpace(summary)
	switch {
	case summary == "":
		return content
	case content == "" || summary == content:
		return summary
	default:
		return summary + "\n\n" + content
	}
}

// Config selects and configures an embedder.
type Config struct {
	Enabled    bool
	Provider   string
	Model      string
	Dimensions int
	BaseURL    string
	APIKey     string
}

// New builds the embedder described by cfg. It returns ErrDisabled when
// cfg.Enabled is false; callers treat that as "no embedder".
func New(ctx context.Context, cfg Config) (Embedder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", cfg.Dimensions)
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "local":
		return NewHashEmbedder(cfg.Dimensions), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "ollama":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.Dimensions)
	case "stub":
		return NewStubEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
