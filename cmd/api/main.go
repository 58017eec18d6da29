package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/docuquery/internal/app"
	"github.com/markdave123-py/docuquery/internal/config"
	"github.com/markdave123-py/docuquery/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	application, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer application.Close()

	application.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Server.Start()
	}()

	logger.Info().
		Str("object_store", cfg.ObjectStore).
		Str("embed_provider", cfg.EmbedProvider).
		Str("vector_store", cfg.VectorStore).
		Str("index", cfg.IndexName).
		Msg("docuquery is running")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	logger.Info().Msg("shut down cleanly")
}
