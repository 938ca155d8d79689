package rag

// SearchOptions tune a semantic search. Zero values fall back to the
// engine's configured defaults (documented on NewEngine).
type SearchOptions struct {
	// TopK is the maximum number of results. 0 means the default.
	TopK int
	// MinScore is the cosine similarity threshold. Nil means the default;
	// an explicit 0 is a valid threshold.
	MinScore *float32
}

// SearchResult is one ranked chunk hit.
type SearchResult struct {
	ChunkID     string  `json:"chunk_id"`
	SourcePath  string  `json:"source_path"`
	Seq         int     `json:"seq"`
	Title       string  `json:"title,omitempty"`
	Text        string  `json:"text"`
	Score       float32 `json:"score"`
	StartOffset int     `json:"start_offset"`
	EndOffset   int     `json:"end_offset"`
}

// ContextOptions tune context assembly.
type ContextOptions struct {
	SearchOptions
	// MaxChars bounds the assembled context size in runes. 0 means the
	// default (4000).
	MaxChars int
	// DiversifySources keeps at most one chunk per source note.
	DiversifySources bool
}

// Provenance identifies one chunk that contributed to an assembled context.
type Provenance struct {
	ChunkID    string  `json:"chunk_id"`
	SourcePath string  `json:"source_path"`
	Seq        int     `json:"seq"`
	Score      float32 `json:"score"`
}

// ContextResult is the assembled context plus the chunks it was built from.
type ContextResult struct {
	Text    string       `json:"text"`
	Sources []Provenance `json:"sources"`
}

// Status reports read-only diagnostics about the index.
type Status struct {
	EmbeddingAvailable bool   `json:"embedding_available"`
	EmbeddingModel     string `json:"embedding_model"`
	Backend            string `json:"backend"`
	Chunks             int    `json:"chunks"`
	Notes              int    `json:"notes"`
	Generation         uint64 `json:"generation"`
}
