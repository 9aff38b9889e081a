// Package embed maps text to embedding vectors through a pluggable backend.
// The Service wrapper makes embedding a soft capability: any failure yields a
// nil vector and callers fall back to lexical scoring.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docdots/internal/config"
)

// ErrUnavailable is returned by New when no embedding provider is configured.
var ErrUnavailable = errors.New("embedding capability unavailable")

// Embedder is an embedding backend.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider names accepted by New.
const (
	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config selects and configures a backend.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// New builds the backend named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", ProviderNone:
		return nil, ErrUnavailable
	case ProviderOllama:
		return NewOllama(cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Open builds the shared Service from configuration. Provider "none" yields a
// Service with no backend, so every query is scored lexically.
func Open(ctx context.Context, cfg config.Embedding, log *slog.Logger) (*Service, error) {
	backend, err := New(ctx, Config{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Timeout:  cfg.Timeout,
	})
	switch {
	case errors.Is(err, ErrUnavailable):
		log.Info("embedding disabled, using lexical scoring")
		backend = nil
	case err != nil:
		return nil, fmt.Errorf("embedding provider %s: %w", cfg.Provider, err)
	}
	return NewService(backend, ServiceOptions{
		Provider:      cfg.Provider,
		RatePerSecond: cfg.RateLimit,
		StatsWindow:   time.Hour,
	}, log), nil
}
