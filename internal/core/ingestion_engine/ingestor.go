package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/docuquery/internal/models"
)

type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(ctx context.Context, key string) error
	Ingest(ctx context.Context, key string) ([]models.Chunk, error)
}

var _ Ingestor = (*DocumentIngestor)(nil)
