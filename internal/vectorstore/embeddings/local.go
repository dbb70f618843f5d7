package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// LocalProvider is a deterministic, dependency-free embedding provider: it
// hashes lowercased whitespace-separated tokens into a fixed-size
// bag-of-words vector and L2-
// normalizes it. It needs no API key and no network access, which keeps
// VectorStore usable the moment no external embedding provider is
// configured — a deterministic in-process fallback.
type LocalProvider struct {
	dimension int
}

var _ Provider = (*LocalProvider)(nil)

// NewLocal creates a local hashing embedding provider with the given
// dimension (default 256 if zero).
func NewLocal(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = 256
	}
	return &LocalProvider{dimension: dimension}
}

func (p *LocalProvider) Name() string      { return "local" }
func (p *LocalProvider) Dimension() int    { return p.dimension }
func (p *LocalProvider) MaxBatchSize() int { return 512 }

func (p *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return p.embed(text), nil
}

func (p *LocalProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embed(t)
	}
	return out, nil
}

func (p *LocalProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimension)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		idx := int(h.Sum32()) % p.dimension
		if idx < 0 {
			idx += p.dimension
		}
		vec[idx]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
