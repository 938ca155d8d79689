package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"vaultindex/internal/contextutil"
	"vaultindex/internal/rag"
)

// SearchHandler handles HTTP requests for semantic search.
type SearchHandler struct {
	ragEngine *rag.Engine
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(ragEngine *rag.Engine) *SearchHandler {
	return &SearchHandler{ragEngine: ragEngine}
}

// SearchResponse represents the response from the search endpoint.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []rag.SearchResult `json:"results"`
}

// ServeHTTP handles GET /api/search?q=...&top_k=...&min_score=...
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	opts, err := searchOptionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.ragEngine.Search(ctx, query, opts)
	if err != nil {
		logger.ErrorContext(ctx, "search failed", "error", err)
		writeError(w, statusForError(err), "search failed: "+err.Error())
		return
	}

	if results == nil {
		results = []rag.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: query, Results: results})
}

// searchOptionsFromQuery parses the shared top_k and min_score parameters.
func searchOptionsFromQuery(r *http.Request) (rag.SearchOptions, error) {
	var opts rag.SearchOptions
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k <= 0 {
			return opts, errors.New("top_k must be a positive integer")
		}
		opts.TopK = k
	}
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		s, err := strconv.ParseFloat(raw, 32)
		if err != nil || s < -1 || s > 1 {
			return opts, errors.New("min_score must be a number in [-1, 1]")
		}
		score := float32(s)
		opts.MinScore = &score
	}
	return opts, nil
}
