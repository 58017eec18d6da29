package core

import "context"

// EmbeddingProvider turns one piece of text into a vector.
// Implementations must be safe for concurrent use.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
