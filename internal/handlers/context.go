package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"vaultindex/internal/contextutil"
	"vaultindex/internal/rag"
)

// ContextHandler handles HTTP requests for bounded context assembly.
type ContextHandler struct {
	ragEngine *rag.Engine
}

// NewContextHandler creates a new ContextHandler.
func NewContextHandler(ragEngine *rag.Engine) *ContextHandler {
	return &ContextHandler{ragEngine: ragEngine}
}

// ContextRequest represents the request payload for context assembly.
type ContextRequest struct {
	Query            string   `json:"query"`
	MaxChars         int      `json:"max_chars,omitempty"`
	TopK             int      `json:"top_k,omitempty"`
	MinScore         *float32 `json:"min_score,omitempty"`
	DiversifySources bool     `json:"diversify_sources,omitempty"`
}

// ServeHTTP handles POST /api/context.
func (h *ContextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.MaxChars < 0 {
		writeError(w, http.StatusBadRequest, "max_chars must not be negative")
		return
	}
	if req.MinScore != nil && (*req.MinScore < -1 || *req.MinScore > 1) {
		writeError(w, http.StatusBadRequest, "min_score must be in [-1, 1]")
		return
	}

	result, err := h.ragEngine.BuildContext(ctx, req.Query, rag.ContextOptions{
		SearchOptions: rag.SearchOptions{
			TopK:     req.TopK,
			MinScore: req.MinScore,
		},
		MaxChars:         req.MaxChars,
		DiversifySources: req.DiversifySources,
	})
	if err != nil {
		logger.ErrorContext(ctx, "context assembly failed", "error", err)
		writeError(w, statusForError(err), "context assembly failed: "+err.Error())
		return
	}

	if result.Sources == nil {
		result.Sources = []rag.Provenance{}
	}
	writeJSON(w, http.StatusOK, result)
}
