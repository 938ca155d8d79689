package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Window is one chunk of note text produced by the chunker.
type Window struct {
	Seq         int    // 0-based ordering within the note
	Text        string
	StartOffset int    // Rune offset into the source text
	EndOffset   int
	ContentHash string // SHA256 hex of the window text
}

// ChunkText splits text into overlapping fixed-size windows. Sizes and
// offsets are measured in runes. The window advances by size-overlap each
// step; a window is emitted whenever its start offset lies within the text,
// so the final window may be shorter than size. Empty text produces zero
// windows. Chunking is a pure function of its inputs.
func ChunkText(text string, size, overlap int) ([]Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0 (got %d)", size)
	}
	if overlap <= 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must satisfy 0 < overlap < size (got overlap=%d, size=%d)", overlap, size)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	var windows []Window
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		windowText := string(runes[start:end])
		hash := sha256.Sum256([]byte(windowText))

		windows = append(windows, Window{
			Seq:         len(windows),
			Text:        windowText,
			StartOffset: start,
			EndOffset:   end,
			ContentHash: hex.EncodeToString(hash[:]),
		})
	}

	return windows, nil
}
