package scancache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"winnow/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the cache file was written by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrBusy indicates another process holds the cache lock.
var ErrBusy = errors.New("scan cache locked by another process")

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store manages summary persistence backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// Stats describes the cache contents.
type Stats struct {
	Path    string
	Entries int64
}

// Hash derives the cache key for a chunk's text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Open initializes or connects to the cache database at path. It acquires
// an advisory lock next to the database; when another process holds it,
// Open fails with ErrBusy and callers should continue without a cache.
func Open(path string, logger *slog.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("scan cache: path required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "scancache")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return nil, ErrBusy
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, lock: lock, logger: logger}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close closes the database and releases the advisory lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	return err
}

// Path returns the database location, or empty for a disabled store.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Lookup returns the cached summary for (contentHash, model) if present.
func (s *Store) Lookup(ctx context.Context, contentHash, model string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, nil
	}
	var summary string
	err := s.db.QueryRowContext(ctx,
		"SELECT summary FROM scan_summaries WHERE content_hash = ? AND model = ?",
		contentHash, model,
	).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup summary: %w", err)
	}
	return summary, true, nil
}

// Put stores or replaces the summary for (contentHash, model).
func (s *Store) Put(ctx context.Context, contentHash, model, summary string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(contentHash) == "" || strings.TrimSpace(model) == "" {
		return errors.New("scan cache: content hash and model required")
	}
	createdAt := time.Now().UTC().Format(time.RFC3339)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO scan_summaries (content_hash, model, summary, created_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (content_hash, model) DO UPDATE SET
			   summary = excluded.summary,
			   created_at = excluded.created_at`,
			contentHash, model, summary, createdAt,
		)
		return err
	})
}

// ReadStats reports the entry count and location of the cache.
func (s *Store) ReadStats(ctx context.Context) (Stats, error) {
	if s == nil || s.db == nil {
		return Stats{}, nil
	}
	stats := Stats{Path: s.path}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM scan_summaries").Scan(&stats.Entries); err != nil {
		return Stats{}, fmt.Errorf("count summaries: %w", err)
	}
	return stats, nil
}

// Clear removes every cached summary and reports how many were dropped.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var dropped int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, "DELETE FROM scan_summaries")
		if execErr != nil {
			return execErr
		}
		dropped, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear summaries: %w", err)
	}
	s.logger.Debug("cleared scan cache", logging.Int64("entries", dropped))
	return dropped, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: cache has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
