// Package storetest opens throwaway annotation stores for tests in other
// packages. It uses the cgo SQLite driver so the production driver and the
// schema are exercised through two implementations.
package storetest

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/spanlabel/internal/store"
)

// New returns an empty store in t.TempDir, closed on cleanup.
func New(t testing.TB) *store.SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "annotations.db")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	require.NoError(t, err)

	s, err := store.NewFromDB(db, store.Config{
		Path:   path,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Document adds a document and fails the test on error.
func Document(t testing.TB, s *store.SQLiteStore, name, content string) store.Document {
	t.Helper()
	doc, err := s.AddDocument(context.Background(), name, content)
	require.NoError(t, err)
	return doc
}

// Label adds a label and fails the test on error.
func Label(t testing.TB, s *store.SQLiteStore, name, color string) store.Label {
	t.Helper()
	lbl, err := s.AddLabel(context.Background(), name, color)
	require.NoError(t, err)
	return lbl
}

// Annotate adds [start, end) to doc and returns the new id.
func Annotate(t testing.TB, s *store.SQLiteStore, docID, labelID int64, start, end int) int64 {
	t.Helper()
	id, err := s.AddAnnotation(context.Background(), docID, labelID, start, end)
	require.NoError(t, err)
	return id
}
