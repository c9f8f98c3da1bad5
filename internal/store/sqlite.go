// Package store persists documents, labels and annotations in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

// DefaultLabelCacheSize bounds the number of cached label records.
const DefaultLabelCacheSize = 256

// Config configures the SQLite store.
type Config struct {
	// Path is the database file. Empty opens an in-memory database.
	Path string

	// BusyTimeoutMS is how long a writer waits for a competing lock.
	BusyTimeoutMS int

	// LabelCacheSize is the LRU capacity for label lookups.
	LabelCacheSize int

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.BusyTimeoutMS <= 0 {
		c.BusyTimeoutMS = 5000
	}
	if c.LabelCacheSize <= 0 {
		c.LabelCacheSize = DefaultLabelCacheSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// SQLiteStore is the durable annotation store shared by every document.
// It is safe for concurrent use; SQLite serializes writers through a single
// connection and WAL lets other processes read while we write.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
	labels *lru.Cache[int64, Label]
	logger *slog.Logger
}

// validateIntegrity checks an existing database before it is opened for
// writing. A missing file is fine; it will be created.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Open opens (creating if needed) the database at cfg.Path with the pure-Go
// driver. Unlike a derived index, annotations cannot be rebuilt, so a
// corrupted file is reported instead of cleared.
func Open(cfg Config) (*SQLiteStore, error) {
	cfg = cfg.withDefaults()

	dsn := ":memory:"
	if cfg.Path != "" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, spanerr.New(spanerr.ErrCodeStoreOpen,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}
		if err := validateIntegrity(cfg.Path); err != nil {
			return nil, spanerr.New(spanerr.ErrCodeStoreCorrupt,
				fmt.Sprintf("annotation database %s failed validation", cfg.Path), err).
				WithSuggestion("Restore the database from a backup or move it aside to start fresh")
		}
		dsn = cfg.Path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, spanerr.New(spanerr.ErrCodeStoreOpen, "failed to open database", err)
	}

	s, err := NewFromDB(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an already opened database handle, applying pragmas and
// creating the schema. Tests use it with other SQLite drivers; cfg.Path then
// only records where the handle points.
func NewFromDB(db *sql.DB, cfg Config) (*SQLiteStore, error) {
	cfg = cfg.withDefaults()

	// Single writer connection; pragmas below are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, spanerr.New(spanerr.ErrCodeStoreOpen, "failed to set pragma", err).
				WithDetail("pragma", pragma)
		}
	}

	if err := InitSchema(db); err != nil {
		return nil, spanerr.New(spanerr.ErrCodeStoreOpen, "failed to initialize schema", err)
	}

	labels, err := lru.New[int64, Label](cfg.LabelCacheSize)
	if err != nil {
		return nil, spanerr.InternalError("failed to create label cache", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   cfg.Path,
		labels: labels,
		logger: cfg.Logger,
	}, nil
}

// InitSchema creates the tables if they do not exist.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL UNIQUE,
		content    TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS labels (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		name  TEXT NOT NULL UNIQUE,
		color TEXT NOT NULL DEFAULT ''
	);

	-- AUTOINCREMENT keeps ids from being reused after deletes.
	CREATE TABLE IF NOT EXISTS annotations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		label_id    INTEGER NOT NULL REFERENCES labels(id) ON DELETE CASCADE,
		start_char  INTEGER NOT NULL,
		end_char    INTEGER NOT NULL,
		extra_data  TEXT NOT NULL DEFAULT '',
		UNIQUE (document_id, label_id, start_char, end_char)
	);

	CREATE INDEX IF NOT EXISTS idx_annotations_document
		ON annotations (document_id, start_char, id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path, or "" for in-memory stores.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the database. It is idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.labels.Purge()
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// read runs fn under the read lock after checking the store is open.
func (s *SQLiteStore) read(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed()
	}
	return fn()
}

// write runs fn inside a transaction under the write lock.
func (s *SQLiteStore) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("failed to commit transaction", err)
	}
	return nil
}

func errClosed() error {
	return spanerr.New(spanerr.ErrCodeStoreIO, "store is closed", nil)
}

// storeErr wraps a driver error. Busy/locked results become retryable.
func storeErr(message string, err error) error {
	if isBusy(err) {
		return spanerr.New(spanerr.ErrCodeStoreLocked, message, err)
	}
	return spanerr.New(spanerr.ErrCodeStoreIO, message, err)
}

// isUniqueViolation matches both the modernc and mattn driver messages.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func nowUnix() int64 {
	return time.Now().Unix()
}
