// Package mock provides test doubles for the core interfaces.
//
// Each mock takes an optional function field that replaces its default
// behavior, and records how it was called. All mocks are safe for use from
// the pipeline's concurrent stages.
//
//	provider := mock.NewMockEmbeddingProvider()
//	provider.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("quota exceeded")
//	}
//
// Defaults:
//
//   - MockEmbeddingProvider: deterministic vectors derived from an FNV hash of the text
//   - MockObjectClient: resolves every key to the same path
//   - MockParser: returns a fixed list of pages
//   - MockIndex: keeps upserted records in memory, keyed by namespace and ID
package mock
