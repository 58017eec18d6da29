package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/docuquery/internal/config"
	"github.com/markdave123-py/docuquery/internal/core"
	"github.com/markdave123-py/docuquery/internal/core/chromemdb"
	db "github.com/markdave123-py/docuquery/internal/core/database"
	"github.com/markdave123-py/docuquery/internal/core/ingestion_engine"
	"github.com/markdave123-py/docuquery/internal/core/llm"
	objectclient "github.com/markdave123-py/docuquery/internal/core/object-client"
	"github.com/markdave123-py/docuquery/internal/core/parser"
)

type App struct {
	Ingestor *ingestion_engine.DocumentIngestor
	Server   *Server

	cfg     *config.Config
	logger  zerolog.Logger
	closers []io.Closer
}

// NewApp builds every backend the config selects and wires them into the
// ingestion pipeline and HTTP server.
func NewApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	objClient, err := newObjectClient(appCtx, cfg, logger)
	if err != nil {
		return nil, err
	}

	embedder, err := a.newEmbeddingProvider(appCtx)
	if err != nil {
		a.Close()
		return nil, err
	}

	index, err := a.newVectorIndex(appCtx)
	if err != nil {
		a.Close()
		return nil, err
	}

	ing, err := ingestion_engine.NewDocumentIngestor(
		objClient,
		parser.NewParser(cfg.UseReadability, logger),
		embedder,
		index,
		IngestConfig(cfg),
		ingestion_engine.WithLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the ingestor: %w", err)
	}

	a.Ingestor = ing
	a.Server = NewServer(cfg, ing, logger)
	return a, nil
}

// IngestConfig translates environment settings into pipeline settings.
func IngestConfig(cfg *config.Config) ingestion_engine.IngestConfig {
	ic := ingestion_engine.DefaultIngestConfig()
	ic.ChunkSize = cfg.ChunkSize
	ic.ChunkOverlap = cfg.ChunkOverlap
	ic.TruncateBytes = cfg.TruncateBytes
	ic.UseNamespace = cfg.UseNamespace
	ic.EmbedDim = cfg.EmbedDim
	ic.EmbedConcurrency = cfg.EmbedConcurrency
	ic.UpsertBatchSize = cfg.UpsertBatchSize
	ic.EmbedMaxRetries = cfg.EmbedMaxRetries
	ic.EmbedRetryDelay = cfg.EmbedRetryDelay
	ic.FetchTimeout = cfg.FetchTimeout
	ic.ParseTimeout = cfg.ParseTimeout
	ic.EmbedTimeout = cfg.EmbedTimeout
	ic.UpsertTimeout = cfg.UpsertTimeout
	return ic
}

func newObjectClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (core.ObjectClient, error) {
	switch cfg.ObjectStore {
	case config.ObjectStoreLocal:
		c, err := objectclient.NewLocalClient(cfg.LocalStoreDir)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("dir", cfg.LocalStoreDir).Msg("local object client ready")
		return c, nil
	default:
		return objectclient.NewS3Client(ctx, cfg, logger)
	}
}

func (a *App) newEmbeddingProvider(ctx context.Context) (core.EmbeddingProvider, error) {
	switch a.cfg.EmbedProvider {
	case config.EmbedProviderOpenAI:
		e, err := llm.NewOpenAIEmbedder(a.cfg.OpenAIAPIKey, a.cfg.OpenAIBaseURL, a.cfg.EmbedModel)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
		}
		return e, nil
	default:
		e, err := llm.NewGeminiEmbedder(ctx, a.cfg.GeminiAPIKey, a.cfg.EmbedModel)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
		}
		a.closers = append(a.closers, e)
		return e, nil
	}
}

func (a *App) newVectorIndex(ctx context.Context) (core.VectorIndex, error) {
	switch a.cfg.VectorStore {
	case config.VectorStoreChromem:
		return chromemdb.NewIndex(a.cfg.IndexName, a.cfg.ChromemPath, a.logger)
	default:
		idx, err := db.NewPgVectorIndex(ctx, a.cfg, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, idx)
		return idx, nil
	}
}

// Start launches the background ingestion workers.
func (a *App) Start(ctx context.Context) {
	a.Ingestor.Start(ctx, a.cfg.IngestWorkers)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
