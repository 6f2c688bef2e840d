package ai

import (
	"context"
	"hash/fnv"
	"math"
)

const defaultHashDim = 384

// HashEmbedder is the offline embedder used when no embedding model is
// configured: it derives a deterministic unit vector from an FNV hash of the
// text. The same text always maps to the same vector, so similarity search
// stays stable across runs, but scores carry no semantic meaning.
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = defaultHashDim
	}
	return &HashEmbedder{Dim: dim}
}

func (e *HashEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, e.Dim)
	for i := range vec {
		seed = seed*1664525 + 1013904223 // LCG step
		vec[i] = float32(seed%1000) / 1000.0
	}

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1.0 / math.Sqrt(sumSquares))
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec, nil
}
