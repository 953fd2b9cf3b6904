// Package retrieval ranks schema card tables against natural-language query
// text, with optional embedding support and FK-graph expansion.
package retrieval

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/config"
)

// Embedder is the optional text-encoding capability. A disabled embedder
// still satisfies the interface; callers fall back to lexical ranking.
type Embedder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Enabled() bool
}

// NewEmbedder builds an embedder from configuration. Without an endpoint it
// returns the disabled implementation.
func NewEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled() {
		logger.Info("embeddings disabled, retrieval is lexical only")
		return disabledEmbedder{}
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.URL
	logger.Info("embeddings enabled",
		zap.String("url", cfg.URL), zap.String("model", cfg.Model))
	return &openAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

type disabledEmbedder struct{}

func (disabledEmbedder) Encode(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedder not configured")
}

func (disabledEmbedder) Enabled() bool { return false }

// openAIEmbedder calls any OpenAI-compatible embeddings endpoint.
type openAIEmbedder struct {
	client *openai.Client
	model  string
}

func (e *openAIEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (e *openAIEmbedder) Enabled() bool { return true }
