package handlers

import (
	"net/http"

	"vaultindex/internal/contextutil"
	"vaultindex/internal/indexer"
	"vaultindex/internal/rag"
)

// StatusHandler handles HTTP requests for index diagnostics.
type StatusHandler struct {
	ragEngine *rag.Engine
	pipeline  *indexer.Pipeline
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(ragEngine *rag.Engine, pipeline *indexer.Pipeline) *StatusHandler {
	return &StatusHandler{ragEngine: ragEngine, pipeline: pipeline}
}

// StatusResponse represents the response from the status endpoint.
type StatusResponse struct {
	rag.Status
	IndexingInProgress bool `json:"indexing_in_progress"`
}

// ServeHTTP handles GET /api/status.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	status, err := h.ragEngine.Status(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "status check failed", "error", err)
		writeError(w, statusForError(err), "status check failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:             *status,
		IndexingInProgress: h.pipeline.Running(),
	})
}
