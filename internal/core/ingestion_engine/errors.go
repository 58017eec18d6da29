package ingestion_engine

import (
	"errors"
	"fmt"
)

var (
	ErrObjectClientRequired      = errors.New("object client required")
	ErrParserRequired            = errors.New("document parser required")
	ErrEmbeddingProviderRequired = errors.New("embedding provider required")
	ErrIndexRequired             = errors.New("vector index required")

	// ErrEmptyKey is returned when Ingest or Enqueue get a blank storage key.
	ErrEmptyKey = errors.New("storage key is empty")

	// ErrMalformedEmbedding is returned when the provider answers with an
	// empty vector or a vector of the wrong dimension.
	ErrMalformedEmbedding = errors.New("malformed embedding")

	ErrInvalidChunkSize    = errors.New("chunk size must be positive")
	ErrInvalidChunkOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")
)

// Stage names a step of the ingestion pipeline.
type Stage string

const (
	StageUnknown Stage = ""
	StageFetch   Stage = "fetch"
	StageParse   Stage = "parse"
	StageSplit   Stage = "split"
	StageEmbed   Stage = "embed"
	StageUpsert  Stage = "upsert"
)

// FetchError means the storage key could not be resolved to a local file.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means the downloaded document could not be decoded.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SplitError means splitting one page failed. Splitting is a pure text
// transform, so this only shows up on cancellation or a bug.
type SplitError struct {
	PageNumber int
	Err        error
}

func (e *SplitError) Error() string {
	return fmt.Sprintf("split page %d: %v", e.PageNumber, e.Err)
}

func (e *SplitError) Unwrap() error { return e.Err }

// EmbeddingError identifies the chunk whose embedding failed.
type EmbeddingError struct {
	ChunkID    string
	PageNumber int
	Index      int
	Err        error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed chunk %s (page %d, #%d): %v", e.ChunkID, e.PageNumber, e.Index, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// UpsertError reports how many records became visible before the index
// write failed.
type UpsertError struct {
	Upserted int
	Total    int
	Err      error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert: %d of %d records written: %v", e.Upserted, e.Total, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

// StageOf returns the pipeline stage an error came from, or StageUnknown.
func StageOf(err error) Stage {
	var (
		fetchErr  *FetchError
		parseErr  *ParseError
		splitErr  *SplitError
		embedErr  *EmbeddingError
		upsertErr *UpsertError
	)
	switch {
	case errors.As(err, &fetchErr):
		return StageFetch
	case errors.As(err, &parseErr):
		return StageParse
	case errors.As(err, &splitErr):
		return StageSplit
	case errors.As(err, &embedErr):
		return StageEmbed
	case errors.As(err, &upsertErr):
		return StageUpsert
	default:
		return StageUnknown
	}
}
