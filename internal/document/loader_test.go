package document_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"winnow/internal/document"
	"winnow/internal/logging"
	"winnow/internal/services"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDirOrdersAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zeta.txt", "last file")
	writeFile(t, dir, "alpha.md", "first file")
	writeFile(t, dir, "ignored.exe", "binary-ish")
	writeFile(t, dir, "notes.yaml", "key: value")
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	loader := document.NewLoader(nil, logging.NewNop())
	docs, report, err := loader.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	want := []string{"alpha.md", "notes.yaml", "zeta.txt"}
	if len(docs) != len(want) {
		t.Fatalf("loaded %d documents, want %d", len(docs), len(want))
	}
	for i, doc := range docs {
		if doc.ID != want[i] {
			t.Fatalf("document %d id %q, want %q", i, doc.ID, want[i])
		}
	}
	if report.Loaded != 3 || report.Skipped != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestLoadDirSkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blank.txt", "   \n\t\n")
	writeFile(t, dir, "real.txt", "content")

	loader := document.NewLoader([]string{".txt"}, logging.NewNop())
	docs, report, err := loader.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "real.txt" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if report.Skipped != 1 {
		t.Fatalf("expected 1 skipped file, got %d", report.Skipped)
	}
}

func TestLoadDirUnreadableFileIsSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are ignored when running as root")
	}
	dir := t.TempDir()
	writeFile(t, dir, "secret.txt", "cannot read me")
	writeFile(t, dir, "open.txt", "fine")
	if err := os.Chmod(filepath.Join(dir, "secret.txt"), 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chmod(filepath.Join(dir, "secret.txt"), 0o644)
	})

	loader := document.NewLoader([]string{".txt"}, logging.NewNop())
	docs, report, err := loader.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "open.txt" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if report.Skipped != 1 {
		t.Fatalf("expected 1 skipped file, got %d", report.Skipped)
	}
}

func TestLoadDirMissingDirectoryFails(t *testing.T) {
	loader := document.NewLoader(nil, logging.NewNop())
	_, _, err := loader.LoadDir(filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	if !errors.Is(err, services.ErrDocumentLoad) {
		t.Fatalf("expected document load marker, got %v", err)
	}
}

func TestLoadDirExtensionNormalization(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "upper.TXT", "shouting")

	loader := document.NewLoader([]string{"txt"}, logging.NewNop())
	docs, _, err := loader.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected dotted/uppercase extension to match, got %d documents", len(docs))
	}
}

func TestNormalize(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("line one\r\nline two\rend é")...)
	got := document.Normalize(raw)
	want := "line one\nline two\nend é"
	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}
