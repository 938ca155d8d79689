package vault

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeNote(t *testing.T, root, relPath, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write note: %v", err)
	}
}

func TestNewFSSource(t *testing.T) {
	if _, err := NewFSSource(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing root")
	}

	file := filepath.Join(t.TempDir(), "file.md")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFSSource(file); err == nil {
		t.Error("expected error for non-directory root")
	}

	if _, err := NewFSSource(t.TempDir()); err != nil {
		t.Errorf("NewFSSource() on valid dir error = %v", err)
	}
}

func TestFSSource_Enumerate(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "a.md", "content a")
	writeNote(t, root, "sub/b.md", "content b")
	writeNote(t, root, "sub/deep/c.md", "content c")
	writeNote(t, root, "not-a-note.txt", "ignored")
	writeNote(t, root, ".obsidian/workspace.md", "ignored")
	writeNote(t, root, ".hidden/d.md", "ignored")

	source, err := NewFSSource(root)
	if err != nil {
		t.Fatalf("NewFSSource() error = %v", err)
	}

	refs, err := source.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}

	var paths []string
	for _, ref := range refs {
		paths = append(paths, ref.Path)
		if ref.Fingerprint == "" {
			t.Errorf("note %s has empty fingerprint", ref.Path)
		}
	}
	sort.Strings(paths)
	want := []string{"a.md", "sub/b.md", "sub/deep/c.md"}
	if len(paths) != len(want) {
		t.Fatalf("enumerated paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d = %s, want %s", i, paths[i], want[i])
		}
	}
}

func TestFSSource_FingerprintTracksContent(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "a.md", "original")

	source, err := NewFSSource(root)
	if err != nil {
		t.Fatalf("NewFSSource() error = %v", err)
	}
	ctx := context.Background()

	first, err := source.Enumerate(ctx)
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}

	// Rewriting identical content keeps the fingerprint stable
	writeNote(t, root, "a.md", "original")
	second, err := source.Enumerate(ctx)
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if first[0].Fingerprint != second[0].Fingerprint {
		t.Error("fingerprint changed for identical content")
	}

	// Editing content changes it
	writeNote(t, root, "a.md", "edited")
	third, err := source.Enumerate(ctx)
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if first[0].Fingerprint == third[0].Fingerprint {
		t.Error("fingerprint unchanged after content edit")
	}
}

func TestFSSource_Read(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "sub/a.md", "note content")

	source, err := NewFSSource(root)
	if err != nil {
		t.Fatalf("NewFSSource() error = %v", err)
	}
	ctx := context.Background()

	content, err := source.Read(ctx, "sub/a.md")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if content != "note content" {
		t.Errorf("Read() = %q, want %q", content, "note content")
	}

	if _, err := source.Read(ctx, "missing.md"); err == nil {
		t.Error("expected error for missing note")
	}

	if _, err := source.Read(ctx, "../outside.md"); err == nil {
		t.Error("expected error for path escaping the vault root")
	}
}

func TestFSSource_EnumerateToleratesUnreadableNote(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "good.md", "readable content")
	// Dangling symlink: stat succeeds, reading fails
	if err := os.Symlink(filepath.Join(root, "gone.md"), filepath.Join(root, "broken.md")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	source, err := NewFSSource(root)
	if err != nil {
		t.Fatalf("NewFSSource() error = %v", err)
	}

	refs, err := source.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("Enumerate() returned %d refs, want 2", len(refs))
	}

	byPath := make(map[string]NoteRef, len(refs))
	for _, ref := range refs {
		byPath[ref.Path] = ref
	}
	if byPath["good.md"].Fingerprint == "" {
		t.Error("readable note has empty fingerprint")
	}
	if byPath["broken.md"].Fingerprint != "" {
		t.Errorf("unreadable note fingerprint = %q, want empty", byPath["broken.md"].Fingerprint)
	}
}
