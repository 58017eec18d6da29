package ingestion_engine

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/docuquery/internal/core"
	"github.com/markdave123-py/docuquery/internal/models"
)

// Option configures a DocumentIngestor.
type Option func(*DocumentIngestor)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(i *DocumentIngestor) {
		i.logger = logger
	}
}

// NewDocumentIngestor wires the collaborators into a pipeline.
func NewDocumentIngestor(
	obj core.ObjectClient,
	parser core.DocumentParser,
	emb core.EmbeddingProvider,
	index core.VectorIndex,
	cfg IngestConfig,
	opts ...Option,
) (*DocumentIngestor, error) {
	if obj == nil {
		return nil, ErrObjectClientRequired
	}
	if parser == nil {
		return nil, ErrParserRequired
	}
	if emb == nil {
		return nil, ErrEmbeddingProviderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 1
	}
	if cfg.UpsertBatchSize <= 0 {
		cfg.UpsertBatchSize = DefaultIngestConfig().UpsertBatchSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultIngestConfig().QueueSize
	}

	i := &DocumentIngestor{
		obj:    obj,
		parser: parser,
		index:  index,
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With().Str("component", "ingestor").Logger()

	splitter, err := NewTextSplitter(SplitterConfig{
		ChunkSize:     cfg.ChunkSize,
		ChunkOverlap:  cfg.ChunkOverlap,
		TruncateBytes: cfg.TruncateBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("text splitter: %w", err)
	}

	embedder, err := NewEmbedder(emb, EmbedderConfig{
		Timeout:    cfg.EmbedTimeout,
		MaxRetries: cfg.EmbedMaxRetries,
		RetryDelay: cfg.EmbedRetryDelay,
		Dimension:  cfg.EmbedDim,
	}, i.logger)
	if err != nil {
		return nil, err
	}

	i.splitter = splitter
	i.embedder = embedder
	i.jobs = make(chan string, cfg.QueueSize)
	return i, nil
}

// Start runs numWorkers goroutines that ingest queued keys until ctx ends.
// Outcomes are only logged; use Ingest when the caller needs the result.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			log := i.logger.With().Int("worker", w).Logger()
			for {
				select {
				case <-ctx.Done():
					log.Debug().Msg("worker shutting down")
					return
				case key := <-i.jobs:
					log.Info().Str("key", key).Msg("processing queued document")
					if _, err := i.Ingest(ctx, key); err != nil {
						log.Error().Err(err).Str("key", key).Str("stage", string(StageOf(err))).Msg("queued ingestion failed")
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a storage key for background ingestion.
// If the queue is full, this call blocks until space frees up or ctx ends.
func (i *DocumentIngestor) Enqueue(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	select {
	case i.jobs <- key:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ingest fetches, parses, splits, embeds and upserts one document. Each stage
// finishes completely before the next starts, and any failure aborts the run
// with the stage's typed error. It returns the chunks of the first page.
func (i *DocumentIngestor) Ingest(ctx context.Context, key string) ([]models.Chunk, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}
	started := time.Now()
	log := i.logger.With().Str("key", key).Logger()

	pages, err := i.fetchAndParse(ctx, key)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("pages", len(pages)).Msg("document parsed")

	perPage, err := i.splitPages(ctx, pages)
	if err != nil {
		return nil, err
	}
	chunks := slices.Concat(perPage...)
	log.Debug().Int("chunks", len(chunks)).Msg("pages split")

	records, err := i.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("records", len(records)).Msg("chunks embedded")

	namespace := ""
	if i.cfg.UseNamespace {
		namespace = NamespaceFor(key)
	}
	written, err := i.upsert(ctx, namespace, records)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Int("upserted", written).
		Str("namespace", namespace).
		Dur("took", time.Since(started)).
		Msg("document ingested")

	if len(perPage) == 0 {
		return nil, nil
	}
	return perPage[0], nil
}

func (i *DocumentIngestor) fetchAndParse(ctx context.Context, key string) ([]models.RawPage, error) {
	fctx, cancel := withTimeout(ctx, i.cfg.FetchTimeout)
	file, err := i.obj.Download(fctx, key)
	cancel()
	if err != nil {
		return nil, &FetchError{Key: key, Err: err}
	}
	if file == nil {
		return nil, &FetchError{Key: key, Err: core.ErrObjectNotFound}
	}
	defer func() {
		if err := file.Close(); err != nil {
			i.logger.Warn().Err(err).Str("path", file.Path).Msg("couldn't release downloaded file")
		}
	}()

	pctx, cancel := withTimeout(ctx, i.cfg.ParseTimeout)
	defer cancel()
	pages, err := i.parser.Parse(pctx, file.Path)
	if err != nil {
		return nil, &ParseError{Key: key, Err: err}
	}
	return pages, nil
}

// splitPages splits every page concurrently. Each goroutine writes only its
// own slot, so the result keeps page order.
func (i *DocumentIngestor) splitPages(ctx context.Context, pages []models.RawPage) ([][]models.Chunk, error) {
	perPage := make([][]models.Chunk, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for idx, page := range pages {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &SplitError{PageNumber: page.PageNumber, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			if err := gctx.Err(); err != nil {
				return &SplitError{PageNumber: page.PageNumber, Err: err}
			}
			perPage[idx] = slices.Collect(i.splitter.Split(page))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return perPage, nil
}

// embedChunks embeds all chunks concurrently. The first failure cancels the
// rest and nothing is returned, so a half-embedded document never reaches
// the index.
func (i *DocumentIngestor) embedChunks(ctx context.Context, chunks []models.Chunk) ([]models.EmbeddedRecord, error) {
	records := make([]models.EmbeddedRecord, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.EmbedConcurrency)
	for idx, ch := range chunks {
		g.Go(func() error {
			rec, err := i.embedder.Embed(gctx, ch)
			if err != nil {
				return err
			}
			records[idx] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// upsert writes records in batches of UpsertBatchSize. On failure the error
// says how many records were already written.
func (i *DocumentIngestor) upsert(ctx context.Context, namespace string, records []models.EmbeddedRecord) (int, error) {
	records = dedupeByID(records)
	total := len(records)

	written := 0
	for start := 0; start < total; start += i.cfg.UpsertBatchSize {
		batch := records[start:min(start+i.cfg.UpsertBatchSize, total)]

		uctx, cancel := withTimeout(ctx, i.cfg.UpsertTimeout)
		n, err := i.index.Upsert(uctx, namespace, batch)
		cancel()
		written += n
		if err != nil {
			return written, &UpsertError{Upserted: written, Total: total, Err: err}
		}
	}
	return written, nil
}

// dedupeByID collapses records sharing an ID. The last one wins, the same
// outcome as writing them to the index one after another.
func dedupeByID(records []models.EmbeddedRecord) []models.EmbeddedRecord {
	pos := make(map[string]int, len(records))
	out := make([]models.EmbeddedRecord, 0, len(records))
	for _, rec := range records {
		if p, ok := pos[rec.ID]; ok {
			out[p] = rec
			continue
		}
		pos[rec.ID] = len(out)
		out = append(out, rec)
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
