package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "text-embedding-004"

// Gemini embeds with the Google Generative AI embedding models.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini embedding requires an api key")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := g.client.EmbeddingModel(g.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500) {
			return nil, &RetryableError{StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errEmptyVector
	}
	return res.Embedding.Values, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}
