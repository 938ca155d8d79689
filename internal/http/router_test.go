package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"vaultindex/internal/embedding"
	"vaultindex/internal/indexer"
	"vaultindex/internal/rag"
	"vaultindex/internal/storage"
	"vaultindex/internal/vault"
	"vaultindex/internal/vectorstore"
)

type emptySource struct{}

func (emptySource) Enumerate(ctx context.Context) ([]vault.NoteRef, error) { return nil, nil }
func (emptySource) Read(ctx context.Context, path string) (string, error)  { return "", nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.New(filepath.Join(dir, "manifest.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	manifest := storage.NewManifestRepo(db)

	store, err := vectorstore.NewSQLiteStore(filepath.Join(dir, "vectors.db"), 4)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	embedder := embedding.NewDisabled("test")
	pipeline := indexer.NewPipeline(emptySource{}, manifest, embedder, store, 100, 20)
	engine := rag.NewEngine(embedder, store, manifest, 5, 0.25)

	return NewRouter(&Deps{
		RAGEngine: engine,
		Pipeline:  pipeline,
		Store:     store,
		Embedder:  embedder,
		Logger:    slog.Default(),
	})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK},
		{"status", http.MethodGet, "/api/status", http.StatusOK},
		{"search without query", http.MethodGet, "/api/search", http.StatusBadRequest},
		{"clear", http.MethodPost, "/api/clear", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/search", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
