package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"vaultindex/internal/contextutil"
	"vaultindex/internal/indexer"
)

// IndexHandler handles HTTP requests for triggering re-indexing.
type IndexHandler struct {
	pipeline *indexer.Pipeline
	logger   *slog.Logger
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(pipeline *indexer.Pipeline, logger *slog.Logger) *IndexHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexHandler{pipeline: pipeline, logger: logger}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ServeHTTP handles POST /api/index?force=true.
//
// Indexing runs in the background so the response returns immediately.
// A second request while a run is active gets 409 Conflict.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	force := r.URL.Query().Get("force") == "true"

	// The writer slot is claimed before the response, so two concurrent
	// triggers cannot both be accepted. Background context lets the run
	// outlive the HTTP request; the pipeline logs the outcome.
	runCtx := contextutil.WithLogger(context.Background(), h.logger)
	if err := h.pipeline.StartRun(runCtx, force); err != nil {
		writeError(w, http.StatusConflict, "an indexing run is already in progress")
		return
	}

	logger.InfoContext(ctx, "indexing triggered via API", "force", force)

	message := "Indexing started. Check server logs for progress."
	if force {
		message = "Force re-indexing started. Check server logs for progress."
	}
	writeJSON(w, http.StatusAccepted, IndexResponse{Message: message, Status: "accepted"})
}
