package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"vaultindex/internal/embedding"
	embedding_mocks "vaultindex/internal/embedding/mocks"
	"vaultindex/internal/indexer"
	"vaultindex/internal/rag"
	"vaultindex/internal/storage"
	"vaultindex/internal/vault"
	"vaultindex/internal/vectorstore"
	vectorstore_mocks "vaultindex/internal/vectorstore/mocks"
)

type staticSource struct {
	notes map[string]string
}

func (s *staticSource) Enumerate(ctx context.Context) ([]vault.NoteRef, error) {
	var refs []vault.NoteRef
	for path := range s.notes {
		refs = append(refs, vault.NoteRef{Path: path, Fingerprint: "fp-" + path})
	}
	return refs, nil
}

func (s *staticSource) Read(ctx context.Context, path string) (string, error) {
	return s.notes[path], nil
}

func newTestManifest(t *testing.T) storage.ManifestStore {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "manifest.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	return storage.NewManifestRepo(db)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestSearchHandler(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockEmbedder := embedding_mocks.NewMockProvider(ctrl)
	mockStore := vectorstore_mocks.NewMockStore(ctrl)
	engine := rag.NewEngine(mockEmbedder, mockStore, newTestManifest(t), 5, 0.25)
	handler := NewSearchHandler(engine)

	t.Run("missing query parameter", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("invalid top_k", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=x&top_k=-1", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("invalid min_score", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=x&min_score=2", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("successful search", func(t *testing.T) {
		mockEmbedder.EXPECT().Available().Return(true)
		mockEmbedder.EXPECT().Embed(gomock.Any(), []string{"chunking"}).Return([][]float32{{1}}, nil)
		mockStore.EXPECT().Query(gomock.Any(), gomock.Any(), 5, float32(0.25)).Return([]vectorstore.Result{
			{ID: "a", Score: 0.9, Payload: vectorstore.Payload{SourcePath: "notes/a.md", Text: "hit"}},
		}, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=chunking", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var resp SearchResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Query != "chunking" || len(resp.Results) != 1 || resp.Results[0].ChunkID != "a" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("empty results is an empty array", func(t *testing.T) {
		mockEmbedder.EXPECT().Available().Return(true)
		mockEmbedder.EXPECT().Embed(gomock.Any(), gomock.Any()).Return([][]float32{{1}}, nil)
		mockStore.EXPECT().Query(gomock.Any(), gomock.Any(), 5, float32(0.25)).Return(nil, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=nothing", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"results":[]`) {
			t.Errorf("expected empty results array, got %s", rec.Body.String())
		}
	})
}

func TestSearchHandler_EmbedderUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockStore := vectorstore_mocks.NewMockStore(ctrl)
	engine := rag.NewEngine(embedding.NewDisabled("not configured"), mockStore, newTestManifest(t), 5, 0.25)
	handler := NewSearchHandler(engine)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error == "" {
		t.Error("expected error message in response")
	}
}

func TestContextHandler(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockEmbedder := embedding_mocks.NewMockProvider(ctrl)
	mockStore := vectorstore_mocks.NewMockStore(ctrl)
	engine := rag.NewEngine(mockEmbedder, mockStore, newTestManifest(t), 5, 0.25)
	handler := NewContextHandler(engine)

	t.Run("invalid body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/context", strings.NewReader("{not json"))
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/context", strings.NewReader(`{"max_chars": 100}`))
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("successful assembly", func(t *testing.T) {
		mockEmbedder.EXPECT().Available().Return(true)
		mockEmbedder.EXPECT().Embed(gomock.Any(), gomock.Any()).Return([][]float32{{1}}, nil)
		mockStore.EXPECT().Query(gomock.Any(), gomock.Any(), 5, float32(0.25)).Return([]vectorstore.Result{
			{ID: "a", Score: 0.9, Payload: vectorstore.Payload{SourcePath: "notes/a.md", Text: "relevant text"}},
		}, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/context", strings.NewReader(`{"query": "topic"}`))
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var resp rag.ContextResult
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !strings.Contains(resp.Text, "relevant text") || len(resp.Sources) != 1 {
			t.Errorf("unexpected response: %+v", resp)
		}
	})
}

func newTestPipeline(t *testing.T, embedder embedding.Provider) *indexer.Pipeline {
	t.Helper()
	store, err := vectorstore.NewSQLiteStore(filepath.Join(t.TempDir(), "vectors.db"), 1)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	source := &staticSource{notes: map[string]string{"a.md": "content"}}
	return indexer.NewPipeline(source, newTestManifest(t), embedder, store, 100, 20)
}

func TestIndexHandler_Accepts(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockEmbedder := embedding_mocks.NewMockProvider(ctrl)
	mockEmbedder.EXPECT().Available().Return(true).AnyTimes()
	mockEmbedder.EXPECT().Embed(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, texts []string) ([][]float32, error) {
			vectors := make([][]float32, len(texts))
			for i := range vectors {
				vectors[i] = []float32{1}
			}
			return vectors, nil
		}).AnyTimes()

	pipeline := newTestPipeline(t, mockEmbedder)
	handler := NewIndexHandler(pipeline, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/index", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var resp IndexResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "accepted" {
		t.Errorf("status field = %q, want accepted", resp.Status)
	}

	// Wait for the background run to settle before test cleanup
	for pipeline.Running() {
		time.Sleep(time.Millisecond)
	}
}

func TestIndexHandler_ConflictWhileRunning(t *testing.T) {
	ctrl := gomock.NewController(t)

	release := make(chan struct{})

	mockEmbedder := embedding_mocks.NewMockProvider(ctrl)
	mockEmbedder.EXPECT().Available().Return(true).AnyTimes()
	mockEmbedder.EXPECT().Embed(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, texts []string) ([][]float32, error) {
			<-release
			vectors := make([][]float32, len(texts))
			for i := range vectors {
				vectors[i] = []float32{1}
			}
			return vectors, nil
		}).AnyTimes()

	pipeline := newTestPipeline(t, mockEmbedder)
	handler := NewIndexHandler(pipeline, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/index", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first request status = %d, want 202", rec.Code)
	}

	// The writer slot is claimed before the 202 is written, so a second
	// trigger conflicts immediately even if the run has made no progress.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/index", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("second request status = %d, want 409", rec.Code)
	}

	close(release)
	for pipeline.Running() {
		time.Sleep(time.Millisecond)
	}
}

func TestStatusHandler(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockEmbedder := embedding_mocks.NewMockProvider(ctrl)
	mockStore := vectorstore_mocks.NewMockStore(ctrl)
	engine := rag.NewEngine(mockEmbedder, mockStore, newTestManifest(t), 5, 0.25)
	pipeline := newTestPipeline(t, mockEmbedder)
	handler := NewStatusHandler(engine, pipeline)

	mockStore.EXPECT().Count(gomock.Any()).Return(42, nil)
	mockStore.EXPECT().Name().Return("sqlite")
	mockEmbedder.EXPECT().Available().Return(true)
	mockEmbedder.EXPECT().ModelInfo().Return("test-model")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Chunks != 42 || resp.Backend != "sqlite" || !resp.EmbeddingAvailable {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.IndexingInProgress {
		t.Error("IndexingInProgress = true with idle pipeline")
	}
}

func TestClearHandler(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockEmbedder := embedding_mocks.NewMockProvider(ctrl)
	pipeline := newTestPipeline(t, mockEmbedder)
	handler := NewClearHandler(pipeline)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clear", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("healthy", func(t *testing.T) {
		mockEmbedder := embedding_mocks.NewMockProvider(ctrl)
		mockStore := vectorstore_mocks.NewMockStore(ctrl)
		mockStore.EXPECT().Count(gomock.Any()).Return(0, nil)
		mockEmbedder.EXPECT().Available().Return(true)

		handler := NewHealthHandler(mockStore, mockEmbedder)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		var resp HealthResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Status != "healthy" {
			t.Errorf("health status = %q, want healthy", resp.Status)
		}
	})

	t.Run("degraded when embedding unavailable", func(t *testing.T) {
		mockStore := vectorstore_mocks.NewMockStore(ctrl)
		mockStore.EXPECT().Count(gomock.Any()).Return(0, nil)

		handler := NewHealthHandler(mockStore, embedding.NewDisabled("off"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		var resp HealthResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Status != "degraded" {
			t.Errorf("health status = %q, want degraded", resp.Status)
		}
	})
}
