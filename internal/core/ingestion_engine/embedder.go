package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/markdave123-py/docuquery/internal/core"
	"github.com/markdave123-py/docuquery/internal/models"
)

// EmbedderConfig tunes calls to the embedding provider.
//
// Timeout:    bound on a single provider call (0 = no per-call bound).
// MaxRetries: extra attempts after a failed call (0 = fail on first error).
// RetryDelay: first backoff interval; doubles on each retry.
// Dimension:  expected vector length (0 = accept any non-empty vector).
type EmbedderConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Dimension  int
}

// Embedder turns one chunk into one record. Each call is independent, so a
// failing chunk never touches the result of another.
type Embedder struct {
	provider core.EmbeddingProvider
	cfg      EmbedderConfig
	logger   zerolog.Logger
}

func NewEmbedder(provider core.EmbeddingProvider, cfg EmbedderConfig, logger zerolog.Logger) (*Embedder, error) {
	if provider == nil {
		return nil, ErrEmbeddingProviderRequired
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Embedder{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With().Str("component", "embedder").Logger(),
	}, nil
}

// Embed embeds chunk.Content and addresses the record by its content hash.
// Any failure comes back as *EmbeddingError; no fallback vector is made up.
func (e *Embedder) Embed(ctx context.Context, chunk models.Chunk) (models.EmbeddedRecord, error) {
	id := ContentID(chunk.Content)

	fail := func(err error) (models.EmbeddedRecord, error) {
		return models.EmbeddedRecord{}, &EmbeddingError{
			ChunkID:    id,
			PageNumber: chunk.PageNumber,
			Index:      chunk.Index,
			Err:        err,
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	var (
		vec      []float32
		attempts int
	)
	op := func() error {
		attempts++
		v, err := e.call(ctx, chunk.Content)
		if err != nil {
			// The caller gave up or the answer is unusable; retrying won't help.
			if ctx.Err() != nil || errors.Is(err, ErrMalformedEmbedding) {
				return backoff.Permanent(err)
			}
			e.logger.Debug().Err(err).Str("chunk_id", id).Int("attempt", attempts).Msg("embedding attempt failed")
			return err
		}
		vec = v
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.RetryDelay
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(e.cfg.MaxRetries)), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return fail(err)
	}

	return models.EmbeddedRecord{
		ID:     id,
		Values: vec,
		Metadata: models.RecordMetadata{
			Text:       chunk.TruncatedText,
			PageNumber: chunk.PageNumber,
		},
	}, nil
}

func (e *Embedder) call(ctx context.Context, text string) ([]float32, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	vec, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrMalformedEmbedding)
	}
	if e.cfg.Dimension > 0 && len(vec) != e.cfg.Dimension {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrMalformedEmbedding, len(vec), e.cfg.Dimension)
	}
	return vec, nil
}
