package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
	// ErrCorrupt is returned when the manifest database is unreadable or
	// internally inconsistent. Recovery is an explicit clear and reindex.
	ErrCorrupt = errors.New("manifest corrupt")
)

// ManifestStore defines the sync manifest operations used by the indexing
// engine and status reporting. The indexing engine is the sole writer.
type ManifestStore interface {
	// Entries returns all manifest entries keyed by source path.
	Entries(ctx context.Context) (map[string]NoteEntry, error)
	// Get returns the entry for one source path, or ErrNotFound.
	Get(ctx context.Context, sourcePath string) (*NoteEntry, error)
	// ChunkIDs returns the chunk ids recorded for a note, ordered by sequence.
	ChunkIDs(ctx context.Context, sourcePath string) ([]string, error)
	// CommitNote atomically replaces a note's chunk rows, writes its
	// manifest entry, and bumps the index generation.
	CommitNote(ctx context.Context, entry NoteEntry, chunks []ChunkRecord) error
	// RemoveNote atomically deletes a note's chunk rows and manifest entry
	// and bumps the index generation.
	RemoveNote(ctx context.Context, sourcePath string) error
	// NoteCount returns the number of manifest entries.
	NoteCount(ctx context.Context) (int, error)
	// ChunkCount returns the number of chunk rows across all entries.
	ChunkCount(ctx context.Context) (int, error)
	// Generation returns the current index generation marker.
	Generation(ctx context.Context) (uint64, error)
	// ClearAll removes every entry and chunk row and resets the generation.
	ClearAll(ctx context.Context) error
}

// ManifestRepo implements ManifestStore on SQLite.
type ManifestRepo struct {
	db *sql.DB
}

// NewManifestRepo creates a new ManifestRepo.
func NewManifestRepo(db *sql.DB) *ManifestRepo {
	return &ManifestRepo{db: db}
}

// Entries returns all manifest entries keyed by source path.
func (r *ManifestRepo) Entries(ctx context.Context) (map[string]NoteEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT source_path, fingerprint, title, chunk_count, indexed_at FROM notes",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query manifest entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	entries := make(map[string]NoteEntry)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries[entry.SourcePath] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Get returns the entry for one source path, or ErrNotFound.
func (r *ManifestRepo) Get(ctx context.Context, sourcePath string) (*NoteEntry, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT source_path, fingerprint, title, chunk_count, indexed_at FROM notes WHERE source_path = ?",
		sourcePath,
	)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ChunkIDs returns the chunk ids recorded for a note, ordered by sequence.
// Returns an empty slice if no chunks exist (not an error).
func (r *ManifestRepo) ChunkIDs(ctx context.Context, sourcePath string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE source_path = ? ORDER BY seq",
		sourcePath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk ids: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// CommitNote replaces a note's chunk rows and manifest entry in a single
// transaction and bumps the generation. Readers never observe a partially
// replaced note.
func (r *ManifestRepo) CommitNote(ctx context.Context, entry NoteEntry, chunks []ChunkRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notes (source_path, fingerprint, title, chunk_count, indexed_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (source_path) DO UPDATE SET
		 fingerprint = excluded.fingerprint, title = excluded.title,
		 chunk_count = excluded.chunk_count, indexed_at = CURRENT_TIMESTAMP`,
		entry.SourcePath, entry.Fingerprint, entry.Title, len(chunks),
	); err != nil {
		return fmt.Errorf("failed to upsert manifest entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_path = ?", entry.SourcePath); err != nil {
		return fmt.Errorf("failed to delete old chunk rows: %w", err)
	}

	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (id, source_path, seq, start_off, end_off, content_hash) VALUES (?, ?, ?, ?, ?, ?)",
			c.ID, c.SourcePath, c.Seq, c.StartOffset, c.EndOffset, c.ContentHash,
		); err != nil {
			return fmt.Errorf("failed to insert chunk row: %w", err)
		}
	}

	if err := bumpGeneration(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit note: %w", err)
	}
	return nil
}

// RemoveNote deletes a note's chunk rows and manifest entry in a single
// transaction and bumps the generation.
func (r *ManifestRepo) RemoveNote(ctx context.Context, sourcePath string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_path = ?", sourcePath); err != nil {
		return fmt.Errorf("failed to delete chunk rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE source_path = ?", sourcePath); err != nil {
		return fmt.Errorf("failed to delete manifest entry: %w", err)
	}

	if err := bumpGeneration(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit removal: %w", err)
	}
	return nil
}

// NoteCount returns the number of manifest entries.
func (r *ManifestRepo) NoteCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

// ChunkCount returns the number of chunk rows across all entries.
func (r *ManifestRepo) ChunkCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Generation returns the current index generation marker.
func (r *ManifestRepo) Generation(ctx context.Context) (uint64, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'generation'").Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read generation: %w", err)
	}

	gen, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: generation marker %q is not a number", ErrCorrupt, value)
	}
	return gen, nil
}

// ClearAll removes every entry and chunk row and resets the generation to
// zero, all in one transaction.
func (r *ManifestRepo) ClearAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear chunk rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM notes"); err != nil {
		return fmt.Errorf("failed to clear manifest entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES ('generation', '0') ON CONFLICT (key) DO UPDATE SET value = '0'",
	); err != nil {
		return fmt.Errorf("failed to reset generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	return nil
}

// bumpGeneration increments the generation marker inside an open transaction
// so the marker moves only with committed writes.
func bumpGeneration(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('generation', '1')
		 ON CONFLICT (key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)`,
	); err != nil {
		return fmt.Errorf("failed to bump generation: %w", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanEntry.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (NoteEntry, error) {
	var entry NoteEntry
	var indexedAtStr string

	err := s.Scan(&entry.SourcePath, &entry.Fingerprint, &entry.Title, &entry.ChunkCount, &indexedAtStr)
	if err != nil {
		return NoteEntry{}, err
	}

	// SQLite DATETIME values come back as strings in one of two layouts
	entry.IndexedAt, err = time.Parse("2006-01-02 15:04:05", indexedAtStr)
	if err != nil {
		entry.IndexedAt, err = time.Parse(time.RFC3339, indexedAtStr)
		if err != nil {
			return NoteEntry{}, fmt.Errorf("failed to parse indexed_at timestamp: %w", err)
		}
	}

	return entry, nil
}
