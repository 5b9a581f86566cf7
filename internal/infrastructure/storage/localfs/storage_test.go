package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestListReturnsSortedKeysWithoutHiddenEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "perfiles.md"), "A")
	writeFile(t, filepath.Join(dir, "anexos", "encuesta.csv"), "B")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(dir, ".DS_Store"), "x")

	storage, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	keys, err := storage.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "anexos/encuesta.csv" || keys[1] != "perfiles.md" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestOpenReadsFileAndRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "normas.txt"), "no culpabilizar")
	storage, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rc, err := storage.Open(context.Background(), "normas.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(raw) != "no culpabilizar" {
		t.Fatalf("unexpected content %q", raw)
	}

	if _, err := storage.Open(context.Background(), "../secret"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestNewRequiresDirectory(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
