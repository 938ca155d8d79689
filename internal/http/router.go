package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vaultindex/internal/embedding"
	"vaultindex/internal/handlers"
	"vaultindex/internal/indexer"
	"vaultindex/internal/rag"
	"vaultindex/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	RAGEngine *rag.Engine
	Pipeline  *indexer.Pipeline
	Store     vectorstore.Store
	Embedder  embedding.Provider
	Logger    *slog.Logger
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORS)

	searchHandler := handlers.NewSearchHandler(deps.RAGEngine)
	contextHandler := handlers.NewContextHandler(deps.RAGEngine)
	indexHandler := handlers.NewIndexHandler(deps.Pipeline, deps.Logger)
	statusHandler := handlers.NewStatusHandler(deps.RAGEngine, deps.Pipeline)
	clearHandler := handlers.NewClearHandler(deps.Pipeline)
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Embedder)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/search", searchHandler)
		r.Method(http.MethodPost, "/context", contextHandler)
		r.Method(http.MethodPost, "/index", indexHandler)
		r.Method(http.MethodGet, "/status", statusHandler)
		r.Method(http.MethodPost, "/clear", clearHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	return r
}
