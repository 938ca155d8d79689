package storage

import "time"

// NoteEntry is the sync manifest record for one indexed note. The manifest
// entry is written only after all of the note's chunks are durably stored,
// so the set of chunk rows across all entries always equals the vector
// index content.
type NoteEntry struct {
	SourcePath  string    // Relative path from vault root, forward slashes
	Fingerprint string    // SHA256 hex of note content at last index time
	Title       string    // Display title extracted by the vault source
	ChunkCount  int       // Number of chunks currently indexed for this note
	IndexedAt   time.Time // Timestamp of last successful index
}

// ChunkRecord is the bookkeeping row for one indexed chunk. Text and
// embeddings live in the vector index; this row records identity, ordering
// and offsets for manifest accounting.
type ChunkRecord struct {
	ID          string // Deterministic UUID of source_path + seq
	SourcePath  string
	Seq         int    // 0-based ordering within the note
	StartOffset int    // Rune offset into the source note at chunk time
	EndOffset   int
	ContentHash string // SHA256 hex of the chunk's own text
}
