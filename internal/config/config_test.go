package config

import (
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
)

// setBaseEnv sets the minimum valid environment for Load.
func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VAULT_PATH", t.TempDir())
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "data", "vaultindex.db"))
	t.Setenv("VECTOR_SIZE", "768")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ChunkSize != 500 || cfg.ChunkOverlap != 50 {
		t.Errorf("chunking defaults = %d/%d, want 500/50", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.TopK)
	}
	if cfg.MinScore != 0.25 {
		t.Errorf("MinScore = %f, want 0.25", cfg.MinScore)
	}
	if cfg.VectorBackend != BackendSQLite {
		t.Errorf("VectorBackend = %q, want %q", cfg.VectorBackend, BackendSQLite)
	}
	if cfg.APIPort != "9000" {
		t.Errorf("APIPort = %q, want 9000", cfg.APIPort)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
}

func TestLoad_MissingVaultPath(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VAULT_PATH", "")

	_, err := Load()
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Load() error = %v, want ErrInvalid", err)
	}
}

func TestLoad_MissingVectorSize(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VECTOR_SIZE", "")

	_, err := Load()
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Load() error = %v, want ErrInvalid", err)
	}
}

func TestLoad_ChunkOverlapValidation(t *testing.T) {
	tests := []struct {
		name    string
		size    string
		overlap string
		wantErr bool
	}{
		{"valid", "500", "50", false},
		{"overlap just below size", "100", "99", false},
		{"zero overlap", "500", "0", true},
		{"negative overlap", "500", "-1", true},
		{"overlap equals size", "100", "100", true},
		{"overlap exceeds size", "100", "150", true},
		{"zero size", "0", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("CHUNK_SIZE", tt.size)
			t.Setenv("CHUNK_OVERLAP", tt.overlap)

			_, err := Load()
			if tt.wantErr && !errors.Is(err, ErrInvalid) {
				t.Errorf("Load() error = %v, want ErrInvalid", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Load() error = %v", err)
			}
		})
	}
}

func TestLoad_MinScoreValidation(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"0.25", false},
		{"-1", false},
		{"1", false},
		{"1.5", true},
		{"-2", true},
		{"not-a-number", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("MIN_SCORE", tt.value)

			_, err := Load()
			if tt.wantErr && !errors.Is(err, ErrInvalid) {
				t.Errorf("Load() error = %v, want ErrInvalid", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Load() error = %v", err)
			}
		})
	}
}

func TestLoad_BackendValidation(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VECTOR_BACKEND", "pinecone")

	_, err := Load()
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Load() error = %v, want ErrInvalid", err)
	}

	t.Setenv("VECTOR_BACKEND", "qdrant")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.VectorBackend != BackendQdrant {
		t.Errorf("VectorBackend = %q, want qdrant", cfg.VectorBackend)
	}
}

func TestLoad_NonIntegerEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TOP_K", "five")

	_, err := Load()
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Load() error = %v, want ErrInvalid", err)
	}
}

func TestLoad_EmptyEmbeddingBaseURLStaysEmpty(t *testing.T) {
	setBaseEnv(t)
	// Explicitly empty disables embedding; the default must not leak in
	t.Setenv("EMBEDDING_BASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EmbeddingBaseURL != "" {
		t.Errorf("EmbeddingBaseURL = %q, want empty", cfg.EmbeddingBaseURL)
	}
}
