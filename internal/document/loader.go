package document

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"winnow/internal/logging"
	"winnow/internal/services"
)

// DefaultExtensions lists the file types loaded when the configuration does
// not override them.
var DefaultExtensions = []string{
	".txt", ".md", ".py", ".json", ".csv", ".log", ".yml", ".yaml", ".xml", ".html",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Document is one loaded corpus file. ID is the file's base name and stays
// stable across runs; Text is normalized and immutable once loaded.
type Document struct {
	ID   string
	Path string
	Text string
}

// Report summarizes a directory load.
type Report struct {
	Loaded  int
	Skipped int
}

// Loader reads supported files from a directory in deterministic order.
type Loader struct {
	extensions map[string]struct{}
	logger     *slog.Logger
}

// NewLoader builds a Loader for the given extension set. Extensions are
// matched case-insensitively; an empty list falls back to DefaultExtensions.
func NewLoader(extensions []string, logger *slog.Logger) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return &Loader{
		extensions: set,
		logger:     logging.NewComponentLogger(logger, "document-loader"),
	}
}

// LoadDir returns the supported documents under dir, ordered by file name.
// Unreadable or empty files are skipped with a warning; an unreadable
// directory is fatal.
func (l *Loader) LoadDir(dir string) ([]Document, Report, error) {
	var report Report
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, report, services.Wrap(services.ErrDocumentLoad, "load", "read directory", dir, err)
	}

	documents := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !l.supported(name) {
			continue
		}
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			report.Skipped++
			l.logger.Warn("skipping unreadable file",
				logging.String("file", name),
				logging.Error(err),
			)
			continue
		}
		text := Normalize(raw)
		if strings.TrimSpace(text) == "" {
			report.Skipped++
			l.logger.Debug("skipping empty file", logging.String("file", name))
			continue
		}
		documents = append(documents, Document{ID: name, Path: path, Text: text})
		report.Loaded++
	}
	return documents, report, nil
}

func (l *Loader) supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	_, ok := l.extensions[ext]
	return ok
}

// Normalize prepares raw file bytes for chunking: strips a UTF-8 BOM, folds
// CRLF and bare CR line endings to LF, and applies Unicode NFC so visually
// identical text always chunks identically.
func Normalize(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	raw = norm.NFC.Bytes(raw)
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
