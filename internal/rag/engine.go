package rag

import (
	"context"
	"fmt"
	"strings"

	"vaultindex/internal/contextutil"
	"vaultindex/internal/embedding"
	"vaultindex/internal/storage"
	"vaultindex/internal/vectorstore"
)

const defaultMaxContextChars = 4000

// Engine answers semantic queries against an indexed vault. It only reads;
// writes go through the indexer pipeline.
type Engine struct {
	embedder embedding.Provider
	store    vectorstore.Store
	manifest storage.ManifestStore

	defaultTopK     int
	defaultMinScore float32
}

// NewEngine wires a retrieval engine. defaultTopK and defaultMinScore apply
// when a request leaves the corresponding option unset.
func NewEngine(embedder embedding.Provider, store vectorstore.Store, manifest storage.ManifestStore, defaultTopK int, defaultMinScore float32) *Engine {
	return &Engine{
		embedder:        embedder,
		store:           store,
		manifest:        manifest,
		defaultTopK:     defaultTopK,
		defaultMinScore: defaultMinScore,
	}
}

// Search embeds the query and returns the closest chunks in descending score
// order. An empty or fully filtered index yields an empty slice, not an error.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if !e.embedder.Available() {
		return nil, fmt.Errorf("embedding query: %w", embedding.ErrUnavailable)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = e.defaultTopK
	}
	minScore := e.defaultMinScore
	if opts.MinScore != nil {
		minScore = *opts.MinScore
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := e.store.Query(ctx, vectors[0], topK, minScore)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	logger := contextutil.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "search complete", "hits", len(hits), "top_k", topK, "min_score", minScore)

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			ChunkID:     h.ID,
			SourcePath:  h.Payload.SourcePath,
			Seq:         h.Payload.Seq,
			Title:       h.Payload.Title,
			Text:        h.Payload.Text,
			Score:       h.Score,
			StartOffset: h.Payload.StartOffset,
			EndOffset:   h.Payload.EndOffset,
		})
	}
	return results, nil
}

// BuildContext assembles a bounded context string from the best matching
// chunks. Chunks are taken in rank order; one that would overflow the budget
// is skipped whole rather than truncated, and lower ranked chunks that still
// fit are considered after it.
func (e *Engine) BuildContext(ctx context.Context, query string, opts ContextOptions) (*ContextResult, error) {
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxContextChars
	}

	hits, err := e.Search(ctx, query, opts.SearchOptions)
	if err != nil {
		return nil, err
	}

	var (
		sections   []string
		sources    []Provenance
		used       int
		seenSource = make(map[string]bool)
	)
	for _, h := range hits {
		if opts.DiversifySources && seenSource[h.SourcePath] {
			continue
		}
		section := formatSection(h)
		n := len([]rune(section))
		if len(sections) > 0 {
			n += len("\n\n")
		}
		if used+n > maxChars {
			continue
		}
		sections = append(sections, section)
		sources = append(sources, Provenance{
			ChunkID:    h.ChunkID,
			SourcePath: h.SourcePath,
			Seq:        h.Seq,
			Score:      h.Score,
		})
		used += n
		seenSource[h.SourcePath] = true
	}

	return &ContextResult{
		Text:    strings.Join(sections, "\n\n"),
		Sources: sources,
	}, nil
}

func formatSection(r SearchResult) string {
	header := r.SourcePath
	if r.Title != "" {
		header = fmt.Sprintf("%s (%s)", r.Title, r.SourcePath)
	}
	return fmt.Sprintf("[%s]\n%s", header, r.Text)
}

// Status reports index health without touching the embedding service beyond
// its local availability check.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	chunks, err := e.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting vectors: %w", err)
	}
	notes, err := e.manifest.NoteCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting notes: %w", err)
	}
	generation, err := e.manifest.Generation(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading generation: %w", err)
	}
	return &Status{
		EmbeddingAvailable: e.embedder.Available(),
		EmbeddingModel:     e.embedder.ModelInfo(),
		Backend:            e.store.Name(),
		Chunks:             chunks,
		Notes:              notes,
		Generation:         generation,
	}, nil
}
