package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"vaultindex/internal/contextutil"
)

// SQLiteStore implements Store on an embedded SQLite database. Embeddings are
// stored as JSON-encoded float32 arrays and scored with in-process cosine
// similarity, which keeps the index durable and local without an external
// vector database. Each mutating call commits a single transaction, so a
// crash mid-batch leaves the previously committed state intact.
type SQLiteStore struct {
	db        *sql.DB
	dimension int
}

// NewSQLiteStore opens or creates a SQLite-backed vector index at the given
// path. dimension is validated against any dimension previously recorded in
// the database; a mismatch means the index was built for a different
// embedding model and is reported as corruption rather than silently
// repaired.
func NewSQLiteStore(path string, dimension int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}

	s := &SQLiteStore{db: db, dimension: dimension}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.checkDimension(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS vectors (
			id TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			embedding TEXT NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_vectors_source ON vectors(source_path);`,
		`CREATE TABLE IF NOT EXISTS vector_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run vector store migration: %w", err)
		}
	}
	return nil
}

// checkDimension records the vector dimension on first use and rejects a
// database built with a different one.
func (s *SQLiteStore) checkDimension() error {
	var stored string
	err := s.db.QueryRow("SELECT value FROM vector_meta WHERE key = 'dimension'").Scan(&stored)
	if err == sql.ErrNoRows {
		_, err := s.db.Exec(
			"INSERT INTO vector_meta (key, value) VALUES ('dimension', ?)",
			fmt.Sprintf("%d", s.dimension),
		)
		if err != nil {
			return fmt.Errorf("failed to record vector dimension: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read vector dimension: %w", err)
	}
	if stored != fmt.Sprintf("%d", s.dimension) {
		return fmt.Errorf("%w: stored dimension %s does not match configured %d (clear and reindex)",
			ErrCorrupt, stored, s.dimension)
	}
	return nil
}

// Upsert inserts or replaces points in a single transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vectors (id, source_path, embedding, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		 source_path = excluded.source_path, embedding = excluded.embedding, payload = excluded.payload`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("point %s has dimension %d, expected %d", p.ID, len(p.Vector), s.dimension)
		}
		embJSON, err := json.Marshal(p.Vector)
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		payloadJSON, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Payload.SourcePath, string(embJSON), string(payloadJSON)); err != nil {
			return fmt.Errorf("failed to upsert point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}

	logger.DebugContext(ctx, "upserted points", "count", len(points))
	return nil
}

// Delete removes points by id in a single transaction.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete point %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// DeleteBySource removes all points belonging to a source note.
func (s *SQLiteStore) DeleteBySource(ctx context.Context, sourcePath string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM vectors WHERE source_path = ?", sourcePath); err != nil {
		return fmt.Errorf("failed to delete points for %s: %w", sourcePath, err)
	}
	return nil
}

// Replace swaps all points for a source in a single transaction, so a
// concurrent reader sees either the old chunk set or the new one, never a
// mix.
func (s *SQLiteStore) Replace(ctx context.Context, sourcePath string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE source_path = ?", sourcePath); err != nil {
		return fmt.Errorf("failed to delete points for %s: %w", sourcePath, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO vectors (id, source_path, embedding, payload) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("point %s has dimension %d, expected %d", p.ID, len(p.Vector), s.dimension)
		}
		embJSON, err := json.Marshal(p.Vector)
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		payloadJSON, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Payload.SourcePath, string(embJSON), string(payloadJSON)); err != nil {
			return fmt.Errorf("failed to insert point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replace: %w", err)
	}

	logger.DebugContext(ctx, "replaced points", "source_path", sourcePath, "count", len(points))
	return nil
}

// Query scans all stored vectors and returns the topK nearest by cosine
// similarity with score >= minScore, ordered by descending score and
// ascending id on ties.
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, topK int, minScore float32) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be greater than 0")
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, expected %d", len(vector), s.dimension)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, embedding, payload FROM vectors")
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []Result
	for rows.Next() {
		var id, embJSON, payloadJSON string
		if err := rows.Scan(&id, &embJSON, &payloadJSON); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}

		var emb []float32
		if err := json.Unmarshal([]byte(embJSON), &emb); err != nil {
			return nil, fmt.Errorf("%w: undecodable embedding for %s: %v", ErrCorrupt, id, err)
		}
		if len(emb) != s.dimension {
			return nil, fmt.Errorf("%w: embedding for %s has dimension %d, expected %d",
				ErrCorrupt, id, len(emb), s.dimension)
		}

		score := CosineSimilarity(vector, emb)
		if score < minScore {
			continue
		}

		var payload Payload
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("%w: undecodable payload for %s: %v", ErrCorrupt, id, err)
		}

		results = append(results, Result{ID: id, Score: score, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	SortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of stored points.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return count, nil
}

// Clear removes all points.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM vectors"); err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}
	return nil
}

// Name identifies the backend.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SortResults orders results by descending score, breaking ties by ascending
// id so identical scores always rank deterministically.
func SortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
