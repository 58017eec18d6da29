package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	middleware "github.com/markdave123-py/docuquery/internal/api/middlewares"
	"github.com/markdave123-py/docuquery/internal/core"
	"github.com/markdave123-py/docuquery/internal/core/ingestion_engine"
	"github.com/markdave123-py/docuquery/internal/models"
)

const (
	maxRequestBody = 1 << 20 // 1 MB
	enqueueWait    = 5 * time.Second
)

type DocumentHandler struct {
	ingestor ingestion_engine.Ingestor
	logger   zerolog.Logger
}

func NewDocumentHandler(ing ingestion_engine.Ingestor, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{ingestor: ing, logger: logger.With().Str("component", "document_handler").Logger()}
}

type ingestRequest struct {
	FileKey string `json:"file_key"`
}

type ingestResponse struct {
	FileKey string         `json:"file_key"`
	Chunks  []models.Chunk `json:"chunks"`
}

type queuedResponse struct {
	FileKey string `json:"file_key"`
	Status  string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// IngestDocument runs the whole pipeline for one key and answers with the
// chunks of the document's first page.
func (h *DocumentHandler) IngestDocument(w http.ResponseWriter, r *http.Request) {
	key, ok := h.decodeKey(w, r)
	if !ok {
		return
	}

	log := h.requestLogger(r, key)
	chunks, err := h.ingestor.Ingest(r.Context(), key)
	if err != nil {
		status, stage := statusFor(err)
		log.Error().Err(err).Str("stage", string(stage)).Int("status", status).Msg("ingestion failed")
		writeJSON(w, status, errorResponse{Error: err.Error(), Stage: string(stage)})
		return
	}
	if chunks == nil {
		chunks = []models.Chunk{}
	}

	log.Info().Int("chunks", len(chunks)).Msg("document ingested")
	writeJSON(w, http.StatusOK, ingestResponse{FileKey: key, Chunks: chunks})
}

// EnqueueDocument hands the key to the background workers. A full queue is
// reported as 503 after a short wait.
func (h *DocumentHandler) EnqueueDocument(w http.ResponseWriter, r *http.Request) {
	key, ok := h.decodeKey(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), enqueueWait)
	defer cancel()
	if err := h.ingestor.Enqueue(ctx, key); err != nil {
		h.requestLogger(r, key).Warn().Err(err).Msg("enqueue failed")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "ingestion queue is full"})
		return
	}

	h.requestLogger(r, key).Info().Msg("document queued")
	writeJSON(w, http.StatusAccepted, queuedResponse{FileKey: key, Status: "queued"})
}

func (h *DocumentHandler) decodeKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return "", false
	}
	key := strings.TrimSpace(req.FileKey)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file_key is required"})
		return "", false
	}
	return key, true
}

func (h *DocumentHandler) requestLogger(r *http.Request, key string) *zerolog.Logger {
	ctx := h.logger.With().Str("key", key)
	if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
		ctx = ctx.Str("user_id", userID)
	}
	l := ctx.Logger()
	return &l
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) (int, ingestion_engine.Stage) {
	stage := ingestion_engine.StageOf(err)
	switch stage {
	case ingestion_engine.StageFetch:
		if errors.Is(err, core.ErrObjectNotFound) {
			return http.StatusNotFound, stage
		}
		return http.StatusBadGateway, stage
	case ingestion_engine.StageParse:
		return http.StatusUnprocessableEntity, stage
	case ingestion_engine.StageSplit:
		return http.StatusInternalServerError, stage
	case ingestion_engine.StageEmbed, ingestion_engine.StageUpsert:
		return http.StatusBadGateway, stage
	}

	switch {
	case errors.Is(err, ingestion_engine.ErrEmptyKey):
		return http.StatusBadRequest, stage
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, stage
	default:
		return http.StatusInternalServerError, stage
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
