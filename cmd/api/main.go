package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"strings"

	"vaultindex/internal/config"
	"vaultindex/internal/contextutil"
	"vaultindex/internal/embedding"
	"vaultindex/internal/http"
	"vaultindex/internal/indexer"
	"vaultindex/internal/rag"
	"vaultindex/internal/storage"
	"vaultindex/internal/vault"
	"vaultindex/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize the manifest database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	manifest := storage.NewManifestRepo(db)

	ctx := context.Background()

	// Initialize the vault source
	source, err := vault.NewFSSource(cfg.VaultPath)
	if err != nil {
		log.Fatalf("Failed to open vault: %v", err)
	}
	slog.Info("Vault source initialized", "path", cfg.VaultPath)

	// Initialize the vector store backend
	var store vectorstore.Store
	switch cfg.VectorBackend {
	case config.BackendQdrant:
		store, err = vectorstore.NewQdrantStore(ctx, cfg.QdrantURL, cfg.QdrantCollection, cfg.VectorSize)
		if err != nil {
			log.Fatalf("Failed to create Qdrant store: %v", err)
		}
	default:
		vecPath := strings.TrimSuffix(cfg.DBPath, ".db") + "-vectors.db"
		store, err = vectorstore.NewSQLiteStore(vecPath, cfg.VectorSize)
		if err != nil {
			log.Fatalf("Failed to create SQLite vector store: %v", err)
		}
	}
	defer func() {
		_ = store.Close()
	}()
	slog.Info("Vector store ready", "backend", store.Name(), "vector_size", cfg.VectorSize)

	// Create the embedding provider. EMBEDDING_BASE_URL set to an empty
	// string disables indexing and search; the read-only endpoints keep
	// working.
	var embedder embedding.Provider
	if cfg.EmbeddingBaseURL == "" {
		embedder = embedding.NewDisabled("EMBEDDING_BASE_URL is empty")
		slog.Warn("Embedding provider disabled", "reason", "EMBEDDING_BASE_URL is empty")
	} else {
		embedder, err = embedding.NewOpenAIProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.VectorSize)
		if err != nil {
			log.Fatalf("Failed to create embedding provider: %v", err)
		}
		slog.Info("Embedding provider ready", "model", cfg.EmbeddingModel, "base_url", cfg.EmbeddingBaseURL)
	}

	// Create indexing pipeline and retrieval engine
	pipeline := indexer.NewPipeline(source, manifest, embedder, store, cfg.ChunkSize, cfg.ChunkOverlap)
	ragEngine := rag.NewEngine(embedder, store, manifest, cfg.TopK, cfg.MinScore)

	// Kick off an initial incremental index in the background so startup is
	// fast; the pipeline logs completion stats.
	runCtx := contextutil.WithLogger(context.Background(), logger)
	if err := pipeline.StartRun(runCtx, false); err != nil {
		slog.Error("Failed to start initial indexing", "error", err)
	}

	router := http.NewRouter(&http.Deps{
		RAGEngine: ragEngine,
		Pipeline:  pipeline,
		Store:     store,
		Embedder:  embedder,
		Logger:    logger,
	})

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
