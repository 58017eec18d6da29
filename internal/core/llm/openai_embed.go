package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/markdave123-py/docuquery/internal/core"
)

const defaultOpenAIEmbedModel = "text-embedding-3-small"

// OpenAIEmbedder talks to any OpenAI-compatible embeddings endpoint
// (OpenAI itself, Ollama, vLLM, OpenRouter, ...).
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
}

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(apiKey, baseURL, modelName string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		// local servers ignore the token but the client insists on one
		apiKey = "none"
	}
	if modelName == "" {
		modelName = defaultOpenAIEmbedModel
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(modelName),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	// Newlines are already gone by the time text gets here; stripping is off
	// so the vector matches the exact content that is hashed into the ID.
	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{embedder: emb}, nil
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := o.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	return vec, nil
}
