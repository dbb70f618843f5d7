package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider using OpenAI's embedding models, for
// deployments that opt into a hosted embedder instead of the LocalProvider
// fallback.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	dim    int
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAI creates an OpenAI embedding provider.
func NewOpenAI(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embeddings: openai api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		dim:    dimensionFor(model),
	}, nil
}

func dimensionFor(model string) int {
	switch model {
	case string(openai.LargeEmbedding3):
		return 3072
	default:
		return 1536
	}
}

func (p *OpenAIProvider) Name() string      { return "openai" }
func (p *OpenAIProvider) Dimension() int    { return p.dim }
func (p *OpenAIProvider) MaxBatchSize() int { return 256 }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: openai request failed: %w", err)
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
