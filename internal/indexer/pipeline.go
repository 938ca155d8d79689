package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vaultindex/internal/contextutil"
	"vaultindex/internal/embedding"
	"vaultindex/internal/storage"
	"vaultindex/internal/vault"
	"vaultindex/internal/vectorstore"
)

// ErrRunInProgress is returned when an index run is requested while another
// is still running. Runs are rejected rather than queued; the caller retries
// once the current run finishes.
var ErrRunInProgress = errors.New("index run already in progress")

// embedBatchSize bounds the number of texts per embedding call.
const embedBatchSize = 64

// chunkNamespace is the UUID namespace for deterministic chunk ids.
var chunkNamespace = uuid.MustParse("9a6edb46-5c44-4c3e-94c5-ab1c1e4d2a7f")

// ChunkID derives the deterministic chunk id for a source path and sequence
// number. Identical inputs always yield the same id.
func ChunkID(sourcePath string, seq int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(sourcePath+"#"+strconv.Itoa(seq))).String()
}

// Pipeline orchestrates incremental indexing: enumerate notes, diff against
// the sync manifest, chunk and embed what changed, and keep the manifest and
// the vector index consistent with each other. It is the sole writer to
// both; a single in-flight run is enforced.
type Pipeline struct {
	source   vault.Source
	manifest storage.ManifestStore
	embedder embedding.Provider
	store    vectorstore.Store

	chunkSize    int
	chunkOverlap int

	running atomic.Bool
}

// NewPipeline creates a new indexing pipeline. Chunking parameters are
// assumed validated by configuration.
func NewPipeline(
	source vault.Source,
	manifest storage.ManifestStore,
	embedder embedding.Provider,
	store vectorstore.Store,
	chunkSize, chunkOverlap int,
) *Pipeline {
	return &Pipeline{
		source:       source,
		manifest:     manifest,
		embedder:     embedder,
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Running reports whether an index run is currently in progress.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Run performs one incremental index pass over the vault. Each note is
// classified against the manifest (unseen, unchanged, changed, deleted) and
// processed independently; per-note read or embed failures are recorded as
// skips without aborting the run. force bypasses the fingerprint fast path
// and re-embeds every note. Cancellation is honored between notes, leaving
// the manifest consistent with whatever has been committed.
func (p *Pipeline) Run(ctx context.Context, force bool) (*Summary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	return p.run(ctx, force)
}

// StartRun claims the writer slot synchronously, then performs the pass on
// its own goroutine. Callers learn immediately whether the run was accepted;
// the outcome is logged through the logger carried in ctx.
func (p *Pipeline) StartRun(ctx context.Context, force bool) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	go func() {
		defer p.running.Store(false)
		if _, err := p.run(ctx, force); err != nil {
			contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "index run failed", "error", err)
		}
	}()
	return nil
}

func (p *Pipeline) run(ctx context.Context, force bool) (*Summary, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	if !p.embedder.Available() {
		return nil, fmt.Errorf("cannot index: %w", embedding.ErrUnavailable)
	}

	notes, err := p.source.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate notes: %w", err)
	}

	entries, err := p.manifest.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	logger.InfoContext(ctx, "index run started", "notes", len(notes), "manifest_entries", len(entries), "force", force)

	summary := &Summary{}
	seen := make(map[string]bool, len(notes))

	for _, note := range notes {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		seen[note.Path] = true
		prev, known := entries[note.Path]

		// An empty fingerprint means enumeration could not read the
		// note; the read is retried below and recorded as a skip.
		if known && !force && note.Fingerprint != "" && prev.Fingerprint == note.Fingerprint {
			summary.record(OutcomeUnchanged)
			continue
		}

		if err := p.indexNote(ctx, note); err != nil {
			if errors.Is(err, embedding.ErrUnavailable) {
				return summary, err
			}
			logger.WarnContext(ctx, "skipping note", "source_path", note.Path, "error", err)
			summary.record(OutcomeSkipped)
			summary.Skips = append(summary.Skips, Skip{SourcePath: note.Path, Reason: err.Error()})
			continue
		}

		if known {
			summary.record(OutcomeUpdated)
		} else {
			summary.record(OutcomeIndexed)
		}
	}

	// Deleted notes: manifest entries whose source is gone from the vault
	removed := make([]string, 0)
	for path := range entries {
		if !seen[path] {
			removed = append(removed, path)
		}
	}
	sort.Strings(removed)

	for _, path := range removed {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if err := p.removeNote(ctx, path); err != nil {
			logger.WarnContext(ctx, "failed to remove deleted note", "source_path", path, "error", err)
			summary.record(OutcomeSkipped)
			summary.Skips = append(summary.Skips, Skip{SourcePath: path, Reason: err.Error()})
			continue
		}
		summary.record(OutcomeDeleted)
	}

	gen, err := p.manifest.Generation(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to read generation: %w", err)
	}
	summary.Generation = gen
	summary.Duration = time.Since(start)

	logger.InfoContext(ctx, "index run completed",
		"indexed", summary.Indexed,
		"updated", summary.Updated,
		"deleted", summary.Deleted,
		"unchanged", summary.Unchanged,
		"skipped", summary.Skipped,
		"generation", summary.Generation,
		"duration", summary.Duration,
	)

	return summary, nil
}

// indexNote chunks, embeds and stores one note. Embedding happens before any
// write; the vector replace swaps the note's chunk set in one step and the
// manifest entry commits last, so readers observe either the old or the new
// chunk set.
func (p *Pipeline) indexNote(ctx context.Context, note vault.NoteRef) error {
	logger := contextutil.LoggerFromContext(ctx)

	content, err := p.source.Read(ctx, note.Path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	windows, err := ChunkText(content, p.chunkSize, p.chunkOverlap)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}

	title := vault.ExtractTitle([]byte(content), note.Path)

	// Embed in batches outside any write section; this is the dominant
	// latency cost and must not hold index locks.
	vectors := make([][]float32, 0, len(windows))
	for batchStart := 0; batchStart < len(windows); batchStart += embedBatchSize {
		batchEnd := batchStart + embedBatchSize
		if batchEnd > len(windows) {
			batchEnd = len(windows)
		}

		texts := make([]string, 0, batchEnd-batchStart)
		for _, w := range windows[batchStart:batchEnd] {
			texts = append(texts, w.Text)
		}

		batch, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		if len(batch) != len(texts) {
			return fmt.Errorf("embed: expected %d vectors, got %d", len(texts), len(batch))
		}
		vectors = append(vectors, batch...)
	}

	points := make([]vectorstore.Point, len(windows))
	records := make([]storage.ChunkRecord, len(windows))
	for i, w := range windows {
		id := ChunkID(note.Path, w.Seq)

		points[i] = vectorstore.Point{
			ID:     id,
			Vector: vectors[i],
			Payload: vectorstore.Payload{
				SourcePath:  note.Path,
				Seq:         w.Seq,
				Text:        w.Text,
				StartOffset: w.StartOffset,
				EndOffset:   w.EndOffset,
				ContentHash: w.ContentHash,
				Title:       title,
			},
		}
		records[i] = storage.ChunkRecord{
			ID:          id,
			SourcePath:  note.Path,
			Seq:         w.Seq,
			StartOffset: w.StartOffset,
			EndOffset:   w.EndOffset,
			ContentHash: w.ContentHash,
		}
	}

	// Replace commits the new chunk set and the removal of any stale tail
	// together, so readers never observe a partially replaced note.
	if err := p.store.Replace(ctx, note.Path, points); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}

	// Manifest entry commits only after the chunks are durably stored
	entry := storage.NoteEntry{
		SourcePath:  note.Path,
		Fingerprint: note.Fingerprint,
		Title:       title,
	}
	if err := p.manifest.CommitNote(ctx, entry, records); err != nil {
		return fmt.Errorf("commit manifest entry: %w", err)
	}

	logger.DebugContext(ctx, "indexed note", "source_path", note.Path, "chunks", len(windows), "title", title)
	return nil
}

// removeNote deletes a vanished note's chunks from the vector index and
// drops its manifest entry.
func (p *Pipeline) removeNote(ctx context.Context, sourcePath string) error {
	if err := p.store.DeleteBySource(ctx, sourcePath); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := p.manifest.RemoveNote(ctx, sourcePath); err != nil {
		return fmt.Errorf("remove manifest entry: %w", err)
	}
	return nil
}

// Clear empties the vector index and the sync manifest together and resets
// the generation. It takes the writer slot so a clear never interleaves with
// an index run.
func (p *Pipeline) Clear(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer p.running.Store(false)

	logger := contextutil.LoggerFromContext(ctx)

	if err := p.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear vector index: %w", err)
	}
	if err := p.manifest.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear manifest: %w", err)
	}

	logger.InfoContext(ctx, "index cleared")
	return nil
}
