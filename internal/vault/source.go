package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vaultindex/internal/contextutil"
)

// NoteRef identifies a note in the vault at enumeration time. Fingerprint
// is empty when the note could not be read; the indexing engine re-reads it
// and records the failure as a skip.
type NoteRef struct {
	Path        string // Relative path from vault root, forward slashes
	Fingerprint string // SHA256 hex of the note content
}

// Source enumerates notes and reads their content. The indexing engine
// consumes this interface; FSSource is the filesystem implementation.
type Source interface {
	// Enumerate returns all notes currently in the vault with their
	// content fingerprints.
	Enumerate(ctx context.Context) ([]NoteRef, error)
	// Read returns the raw text content of a note by its relative path.
	Read(ctx context.Context, path string) (string, error)
}

// FSSource reads markdown notes from a directory tree.
type FSSource struct {
	root string
}

// NewFSSource creates a filesystem note source rooted at the given directory.
func NewFSSource(root string) (*FSSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root is not a directory: %s", root)
	}
	return &FSSource{root: root}, nil
}

// Enumerate walks the vault root and returns every markdown file with a
// content fingerprint. Hidden directories (including .obsidian) are skipped.
// Fingerprints are content hashes so touched-but-unedited files and
// identical-content moves are detected as unchanged. A single unreadable
// entry does not abort the scan.
func (s *FSSource) Enumerate(ctx context.Context) ([]NoteRef, error) {
	logger := contextutil.LoggerFromContext(ctx)
	var refs []NoteRef

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.WarnContext(ctx, "skipping inaccessible path", "path", path, "error", err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}

		if filepath.Ext(path) != ".md" {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		content, err := os.ReadFile(path)
		if err != nil {
			// Surface the note without a fingerprint so the indexing
			// engine records the read failure as a skip.
			logger.WarnContext(ctx, "cannot fingerprint note", "path", relPath, "error", err)
			refs = append(refs, NoteRef{Path: relPath})
			return nil
		}

		hash := sha256.Sum256(content)
		refs = append(refs, NoteRef{
			Path:        relPath,
			Fingerprint: hex.EncodeToString(hash[:]),
		})
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan vault: %w", err)
	}

	return refs, nil
}

// Read returns the content of the note at the given relative path.
func (s *FSSource) Read(ctx context.Context, path string) (string, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(path))

	// Reject paths escaping the vault root
	resolved, err := filepath.Abs(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve vault root: %w", err)
	}
	if resolved != rootAbs && !strings.HasPrefix(resolved, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside vault: %s", path)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("failed to read note %s: %w", path, err)
	}
	return string(content), nil
}
