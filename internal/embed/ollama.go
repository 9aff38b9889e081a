package embed

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	defaultOllamaModel = "nomic-embed-text:latest"
	defaultOllamaURL   = "http://localhost:11434"
)

// Ollama embeds through a local Ollama server.
type Ollama struct {
	llm *ollama.LLM
}

func NewOllama(cfg Config) (*Ollama, error) {
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}

	llm, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("init ollama: %w", err)
	}
	return &Ollama{llm: llm}, nil
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama embedding: %w", err)
	}
	if len(vecs) == 0 {
		return nil, errEmptyVector
	}
	return vecs[0], nil
}
