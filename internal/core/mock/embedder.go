package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync/atomic"
)

// DefaultDimension is the length of vectors produced by the default embedder.
const DefaultDimension = 16

// MockEmbeddingProvider is a test double for core.EmbeddingProvider.
type MockEmbeddingProvider struct {
	// EmbedFunc is called by Embed if set.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// Dimension of default vectors; 0 means DefaultDimension.
	Dimension int

	calls atomic.Int64
}

func NewMockEmbeddingProvider() *MockEmbeddingProvider {
	return &MockEmbeddingProvider{}
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)

	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	dim := m.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}
	return DeterministicVector(text, dim), nil
}

// CallCount returns how many times Embed was called.
func (m *MockEmbeddingProvider) CallCount() int {
	return int(m.calls.Load())
}

// DeterministicVector returns a unit vector seeded from the FNV hash of text.
// The same text always yields the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, dim)
	var sum float64
	for i := range vec {
		seed = seed*1664525 + 1013904223 // LCG
		vec[i] = float32(seed%1000)/1000.0 + 0.001
		sum += float64(vec[i]) * float64(vec[i])
	}
	norm := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}
