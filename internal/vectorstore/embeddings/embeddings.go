// Package embeddings provides the pluggable embedding Provider interface
// consumed by the vector store. Embedding models themselves are treated as
// an opaque dependency ("no
// embedding-model implementation"), the vector store treats embeddings as a
// black box; this package only defines the contract plus a local provider
// that needs no external model so Archon runs fully offline by default.
package embeddings

import "context"

// Provider generates vector embeddings for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
	MaxBatchSize() int
}

// Config contains common embedding provider configuration.
type Config struct {
	Provider string `yaml:"provider"` // local, openai
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}
