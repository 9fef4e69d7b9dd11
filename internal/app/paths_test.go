package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveInputs_DirectoryOrderAndFilter(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.pdf"))
	touch(t, filepath.Join(dir, "A.PDF"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "c.pdf"))

	got, err := ResolveInputs(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{filepath.Join(dir, "A.PDF"), filepath.Join(dir, "b.pdf")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("inputs (-want +got):\n%s", diff)
	}
}

func TestResolveInputs_GlobListAndDedupe(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "x", "one.pdf"))
	touch(t, filepath.Join(dir, "x", "deep", "two.pdf"))
	touch(t, filepath.Join(dir, "x", "deep", "skip.txt"))
	single := filepath.Join(dir, "x", "one.pdf")

	got, err := ResolveInputs(single + ", " + filepath.Join(dir, "x", "**", "*"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 || got[0] != single || !strings.HasSuffix(got[1], "two.pdf") {
		t.Fatalf("unexpected inputs: %v", got)
	}
}

func TestResolveInputs_Errors(t *testing.T) {
	if _, err := ResolveInputs(t.TempDir()); !errors.Is(err, ErrNoInputs) {
		t.Fatalf("empty dir: expected ErrNoInputs, got %v", err)
	}
	if _, err := ResolveInputs(" , "); !errors.Is(err, ErrNoInputs) {
		t.Fatalf("blank input: expected ErrNoInputs, got %v", err)
	}
	if _, err := ResolveInputs(filepath.Join(t.TempDir(), "missing.pdf")); err == nil || errors.Is(err, ErrNoInputs) {
		t.Fatalf("missing file must be an input error, got %v", err)
	}
}

func TestLoadDocuments_NamesByBase(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Smith2019.pdf"))
	docs, err := LoadDocuments(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 1 || docs[0].Name != "Smith2019.pdf" || len(docs[0].Content) == 0 {
		t.Fatalf("unexpected docs: %+v", docs)
	}
}

func TestLoadDocuments_UnreadableFileFailsAlone(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Good.pdf"))
	// a directory matched by the glob resolves but cannot be read as a file
	if err := os.MkdirAll(filepath.Join(dir, "Folder.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}
	docs, err := LoadDocuments(filepath.Join(dir, "*.pdf"))
	if err != nil {
		t.Fatalf("load must not fail for one unreadable file: %v", err)
	}
	if len(docs) != 2 || docs[0].Name != "Folder.pdf" || docs[1].Name != "Good.pdf" {
		t.Fatalf("unexpected docs: %+v", docs)
	}
	if docs[0].Err == nil || docs[0].Content != nil {
		t.Fatalf("unreadable document must carry its error: %+v", docs[0])
	}
	if docs[1].Err != nil || len(docs[1].Content) == 0 {
		t.Fatalf("readable document: %+v", docs[1])
	}
}
