package handlers

import (
	"net/http"

	"vaultindex/internal/contextutil"
	"vaultindex/internal/indexer"
)

// ClearHandler handles HTTP requests for wiping the index.
type ClearHandler struct {
	pipeline *indexer.Pipeline
}

// NewClearHandler creates a new ClearHandler.
func NewClearHandler(pipeline *indexer.Pipeline) *ClearHandler {
	return &ClearHandler{pipeline: pipeline}
}

// ClearResponse represents the response from the clear endpoint.
type ClearResponse struct {
	Message string `json:"message"`
}

// ServeHTTP handles POST /api/clear.
func (h *ClearHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if err := h.pipeline.Clear(ctx); err != nil {
		logger.ErrorContext(ctx, "clearing index failed", "error", err)
		writeError(w, statusForError(err), "clearing index failed: "+err.Error())
		return
	}

	logger.InfoContext(ctx, "index cleared via API")
	writeJSON(w, http.StatusOK, ClearResponse{Message: "Index cleared."})
}
