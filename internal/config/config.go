package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// ErrInvalid is returned when configuration validation fails. Invalid
// configuration is rejected at load time, before any indexing work begins.
var ErrInvalid = errors.New("invalid configuration")

// Supported vector index backends.
const (
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for the application.
type Config struct {
	VaultPath string
	DBPath    string

	ChunkSize    int
	ChunkOverlap int

	// EmbeddingBaseURL set to an empty string disables embedding; the
	// default is only applied when the variable is unset.
	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string
	VectorSize       int

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string

	TopK     int
	MinScore float32

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent directory, it is
// loaded automatically; real environment variables take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up a few levels looking for a .env at the project root
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		VaultPath:        getEnv("VAULT_PATH", ""),
		DBPath:           getEnv("DB_PATH", "./data/vaultindex.db"),
		EmbeddingBaseURL: getEnvAllowEmpty("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingAPIKey:  getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "granite-embedding-278m-multilingual"),
		VectorBackend:    getEnv("VECTOR_BACKEND", BackendSQLite),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "notes"),
		APIPort:          getEnv("API_PORT", "9000"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.ChunkSize, err = getEnvInt("CHUNK_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getEnvInt("CHUNK_OVERLAP", 50); err != nil {
		return nil, err
	}
	if cfg.TopK, err = getEnvInt("TOP_K", 5); err != nil {
		return nil, err
	}

	minScoreStr := getEnv("MIN_SCORE", "0.25")
	minScore, err := strconv.ParseFloat(minScoreStr, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: MIN_SCORE must be a number: %v", ErrInvalid, err)
	}
	cfg.MinScore = float32(minScore)

	// VECTOR_SIZE must match the output dimension of the embedding model.
	// If it changes, the vector index must be cleared and rebuilt.
	if cfg.VectorSize, err = getEnvInt("VECTOR_SIZE", 0); err != nil {
		return nil, err
	}

	cfg.LogLevel = parseLogLevel(getEnv("LOG_LEVEL", "info"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Create the data directory up front so the first index run can commit
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// validate checks cross-field constraints. Chunking constraints are enforced
// here so a bad overlap never reaches the indexing engine.
func (c *Config) validate() error {
	if c.VaultPath == "" {
		return fmt.Errorf("%w: VAULT_PATH is required", ErrInvalid)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be greater than 0", ErrInvalid)
	}
	if c.ChunkOverlap <= 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must satisfy 0 < overlap < chunk size (got overlap=%d, size=%d)",
			ErrInvalid, c.ChunkOverlap, c.ChunkSize)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: VECTOR_SIZE is required and must be greater than 0", ErrInvalid)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: TOP_K must be greater than 0", ErrInvalid)
	}
	if c.MinScore < -1 || c.MinScore > 1 {
		return fmt.Errorf("%w: MIN_SCORE must be within [-1, 1]", ErrInvalid)
	}
	if c.VectorBackend != BackendSQLite && c.VectorBackend != BackendQdrant {
		return fmt.Errorf("%w: VECTOR_BACKEND must be %q or %q (got %q)",
			ErrInvalid, BackendSQLite, BackendQdrant, c.VectorBackend)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes unset from explicitly empty: a variable set
// to "" is returned as-is so the feature it configures can be switched off.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a valid integer: %v", ErrInvalid, key, err)
	}
	return n, nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
