// Package chromemdb is an embedded vector index backed by chromem-go, for
// running without Postgres.
package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"

	"github.com/markdave123-py/docuquery/internal/core"
	"github.com/markdave123-py/docuquery/internal/models"
)

const (
	metaText       = "text"
	metaPageNumber = "page_number"
)

// errNoEmbedFunc is returned if chromem ever tries to embed on its own.
// Records always arrive with vectors.
var errNoEmbedFunc = errors.New("chromemdb: records must carry their embedding")

// Index keeps one chromem collection per namespace. The default namespace
// uses the bare index name; others are "<index>-<namespace>".
type Index struct {
	db     *chromem.DB
	name   string
	logger zerolog.Logger
}

var _ core.VectorIndex = (*Index)(nil)

// NewIndex opens an index. An empty path keeps everything in memory,
// otherwise collections are persisted under path.
func NewIndex(name, path string, logger zerolog.Logger) (*Index, error) {
	if name == "" {
		return nil, fmt.Errorf("chromemdb: index name required")
	}

	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	idx := &Index{
		db:     db,
		name:   name,
		logger: logger.With().Str("component", "chromem").Str("index", name).Logger(),
	}
	idx.logger.Info().Bool("persistent", path != "").Msg("vector index ready")
	return idx, nil
}

func (i *Index) collectionName(namespace string) string {
	if namespace == "" {
		return i.name
	}
	return i.name + "-" + namespace
}

func (i *Index) collection(namespace string) (*chromem.Collection, error) {
	c, err := i.db.GetOrCreateCollection(i.collectionName(namespace), nil, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	return c, nil
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedFunc
}

// Upsert adds or replaces records by ID.
func (i *Index) Upsert(ctx context.Context, namespace string, records []models.EmbeddedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	c, err := i.collection(namespace)
	if err != nil {
		return 0, err
	}

	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		if len(rec.Values) == 0 {
			return 0, fmt.Errorf("record %s: %w", rec.ID, errNoEmbedFunc)
		}
		docs = append(docs, chromem.Document{
			ID:        rec.ID,
			Content:   rec.Metadata.Text,
			Embedding: rec.Values,
			Metadata: map[string]string{
				metaText:       rec.Metadata.Text,
				metaPageNumber: strconv.Itoa(rec.Metadata.PageNumber),
			},
		})
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("failed to add documents: %w", err)
	}
	i.logger.Debug().Str("namespace", namespace).Int("records", len(docs)).Msg("records upserted")
	return len(docs), nil
}

// Count returns how many records a namespace holds.
func (i *Index) Count(namespace string) int {
	c := i.db.GetCollection(i.collectionName(namespace), refuseEmbedding)
	if c == nil {
		return 0
	}
	return c.Count()
}

// Get returns a stored record. Stored vectors are normalized by chromem, so
// Values may differ in scale from what was upserted.
func (i *Index) Get(ctx context.Context, namespace, id string) (models.EmbeddedRecord, bool, error) {
	c := i.db.GetCollection(i.collectionName(namespace), refuseEmbedding)
	if c == nil {
		return models.EmbeddedRecord{}, false, nil
	}
	doc, err := c.GetByID(ctx, id)
	if err != nil {
		// chromem reports a missing ID as an error
		return models.EmbeddedRecord{}, false, nil
	}
	page, err := strconv.Atoi(doc.Metadata[metaPageNumber])
	if err != nil {
		return models.EmbeddedRecord{}, false, fmt.Errorf("record %s: bad page number: %w", id, err)
	}
	return models.EmbeddedRecord{
		ID:     doc.ID,
		Values: doc.Embedding,
		Metadata: models.RecordMetadata{
			Text:       doc.Metadata[metaText],
			PageNumber: page,
		},
	}, true, nil
}
