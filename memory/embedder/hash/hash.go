// Package hash provides an offline embedder with no model files.
//
// Vectors are derived from an FNV hash of the text, so identical texts embed
// identically but there is no semantic similarity between different texts.
// It is the default embedder when nothing else is configured, and the one
// tests use.
package hash

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimensions matches all-MiniLM-L6-v2 so stores can switch embedders
// without changing vector size.
const DefaultDimensions = 384

// HashEmbedder generates deterministic embeddings based on text hash.
type HashEmbedder struct {
	dimensions int
}

// New creates a new hash embedder with DefaultDimensions.
func New() *HashEmbedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions creates a hash embedder producing vectors of size dims.
func NewWithDimensions(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dimensions: dims}
}

// Embed creates a deterministic unit vector from text.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := fnv.New64a()
	f.Write([]byte(text))
	seed := f.Sum64()

	embedding := make([]float32, h.dimensions)
	for i := range embedding {
		// Simple LCG (Linear Congruential Generator)
		seed = seed*6364136223846793005 + 1442695040888963407
		// Convert to [-1, 1] range
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (h *HashEmbedder) Dimensions() int {
	return h.dimensions
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
