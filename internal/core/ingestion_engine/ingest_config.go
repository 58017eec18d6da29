package ingestion_engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/docuquery/internal/core"
)

// IngestConfig tunes the pipeline.
//
// ChunkSize:        maximum characters per chunk (e.g. 1000).
// ChunkOverlap:     characters shared between consecutive chunks (e.g. 200).
// TruncateBytes:    byte budget of the page text stored as record metadata.
// EmbedConcurrency: embedding calls in flight per document.
// UpsertBatchSize:  records per index write; the index may cap batch size.
// UseNamespace:     upsert each document into a namespace derived from its key.
// EmbedDim:         expected embedding dimension (0 = trust the provider).
// EmbedMaxRetries:  retries per chunk after a failed embedding call.
// EmbedRetryDelay:  first backoff interval between embedding retries.
// *Timeout:         bounds on each external call.
// QueueSize:        capacity of the background job queue.
type IngestConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	TruncateBytes    int
	EmbedConcurrency int
	UpsertBatchSize  int
	UseNamespace     bool
	EmbedDim         int
	EmbedMaxRetries  int
	EmbedRetryDelay  time.Duration
	FetchTimeout     time.Duration
	ParseTimeout     time.Duration
	EmbedTimeout     time.Duration
	UpsertTimeout    time.Duration
	QueueSize        int
}

// DefaultIngestConfig returns the settings used when nothing is configured.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:        DefaultChunkSize,
		ChunkOverlap:     DefaultChunkOverlap,
		TruncateBytes:    DefaultTruncateBytes,
		EmbedConcurrency: 16,
		UpsertBatchSize:  100,
		EmbedMaxRetries:  2,
		EmbedRetryDelay:  500 * time.Millisecond,
		FetchTimeout:     2 * time.Minute,
		ParseTimeout:     2 * time.Minute,
		EmbedTimeout:     30 * time.Second,
		UpsertTimeout:    time.Minute,
		QueueSize:        64,
	}
}

// DocumentIngestor runs the ingestion pipeline:
//
// obj:      object storage the documents are fetched from.
// parser:   turns the downloaded file into pages.
// splitter: cuts pages into chunks.
// embedder: embeds chunks one by one.
// index:    vector index the records are upserted into.
// cfg:      runtime tuning knobs.
// jobs:     in-memory queue of storage keys for background ingestion.
type DocumentIngestor struct {
	obj      core.ObjectClient
	parser   core.DocumentParser
	splitter *TextSplitter
	embedder *Embedder
	index    core.VectorIndex
	cfg      IngestConfig
	jobs     chan string
	logger   zerolog.Logger
}
