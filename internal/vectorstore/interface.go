package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks vaultindex/internal/vectorstore Store

import (
	"context"
	"errors"
)

// ErrCorrupt indicates the persisted index is unreadable or inconsistent.
// It is surfaced to the caller; the recommended recovery is an explicit
// clear followed by a full reindex.
var ErrCorrupt = errors.New("vector index corrupt")

// Payload is the metadata stored alongside each chunk vector. Retrieval
// reads only the vector index, so the chunk text travels in the payload.
type Payload struct {
	SourcePath  string `json:"source_path"`
	Seq         int    `json:"seq"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	ContentHash string `json:"content_hash"`
	Title       string `json:"title,omitempty"`
}

// Point represents a chunk vector with its metadata.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Result represents a single similarity search hit.
type Result struct {
	ID      string
	Score   float32
	Payload Payload
}

// Store is the persistent vector index. All mutating operations are durable
// before they return. Query results are ordered by descending cosine
// similarity with ascending chunk id breaking ties, include only entries
// scoring at least minScore, and contain at most topK entries.
type Store interface {
	// Upsert inserts or replaces points by id. Idempotent.
	Upsert(ctx context.Context, points []Point) error
	// Delete removes points by id. Missing ids are not an error.
	Delete(ctx context.Context, ids []string) error
	// DeleteBySource removes all points whose payload source path matches.
	DeleteBySource(ctx context.Context, sourcePath string) error
	// Replace swaps all points for a source with the given set, committing
	// the removal of stale points and the insert of new ones together.
	Replace(ctx context.Context, sourcePath string, points []Point) error
	// Query performs a cosine similarity search.
	Query(ctx context.Context, vector []float32, topK int, minScore float32) ([]Result, error)
	// Count returns the number of stored points.
	Count(ctx context.Context) (int, error)
	// Clear removes all points.
	Clear(ctx context.Context) error
	// Name identifies the backend for diagnostics.
	Name() string
	// Close releases backend resources.
	Close() error
}
