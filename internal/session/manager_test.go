package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
	"github.com/Aman-CERP/spanlabel/internal/store"
	"github.com/Aman-CERP/spanlabel/internal/store/storetest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quickRetry() spanerr.RetryConfig {
	return spanerr.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, ShouldRetry: spanerr.IsRetryable}
}

func newManager(t *testing.T, st *store.SQLiteStore, cfg ManagerConfig) *Manager {
	t.Helper()
	if cfg.Project == "" {
		cfg.Project = "/projects/demo"
	}
	cfg.Logger = quietLogger()
	cfg.StrictInvariants = true
	m, err := NewManager(st, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_OpenLoadsEngine(t *testing.T) {
	// Given: a document with two overlapping annotations
	st := storetest.New(t)
	doc := storetest.Document(t, st, "news.txt", "Barack Obama visited Paris")
	lbl := storetest.Label(t, st, "PER", "")
	storetest.Annotate(t, st, doc.ID, lbl.ID, 0, 12)
	storetest.Annotate(t, st, doc.ID, lbl.ID, 7, 12)
	m := newManager(t, st, ManagerConfig{})

	// When: opening it by name
	s, err := m.Open(context.Background(), "news.txt")
	require.NoError(t, err)

	// Then: the engine holds one cluster of two
	assert.Equal(t, "news.txt", s.Document().Name)
	require.NoError(t, s.Do(func(e *annotation.Engine) error {
		assert.Equal(t, 2, e.Len())
		assert.Len(t, e.Clusters(), 1)
		return nil
	}))
	assert.False(t, s.Locked())

	again, err := m.Open(context.Background(), "news.txt")
	require.NoError(t, err)
	assert.Same(t, s, again)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Same(t, s, cur)
}

func TestManager_SwitchingDocumentsDiscardsEngine(t *testing.T) {
	st := storetest.New(t)
	storetest.Document(t, st, "a.txt", "alpha")
	storetest.Document(t, st, "b.txt", "beta")
	m := newManager(t, st, ManagerConfig{})
	ctx := context.Background()

	first, err := m.Open(ctx, "a.txt")
	require.NoError(t, err)
	second, err := m.Open(ctx, "b.txt")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	err = first.Do(func(*annotation.Engine) error { return nil })
	assert.Error(t, err, "closed session refuses work")
}

func TestManager_OpenMissingDocument(t *testing.T) {
	m := newManager(t, storetest.New(t), ManagerConfig{})

	_, err := m.Open(context.Background(), "nope.txt")
	assert.True(t, spanerr.HasCode(err, spanerr.ErrCodeDocumentNotFound))
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestManager_DocumentLockIsExclusive(t *testing.T) {
	// Given: two locking managers over the same data dir
	st := storetest.New(t)
	storetest.Document(t, st, "a.txt", "alpha")
	storetest.Document(t, st, "b.txt", "beta")
	lockDir := t.TempDir()
	ctx := context.Background()

	m1 := newManager(t, st, ManagerConfig{LockDir: lockDir, LockRetry: quickRetry()})
	m2 := newManager(t, st, ManagerConfig{LockDir: lockDir, LockRetry: quickRetry()})

	s1, err := m1.Open(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, s1.Locked())

	// When: the second opens the same document
	_, err = m2.Open(ctx, "a.txt")

	// Then: it is refused while other documents stay available
	assert.True(t, spanerr.HasCode(err, spanerr.ErrCodeStoreLocked))
	_, err = m2.Open(ctx, "b.txt")
	require.NoError(t, err)

	// And: switching away releases the lock
	_, err = m1.Open(ctx, "b.txt")
	assert.True(t, spanerr.HasCode(err, spanerr.ErrCodeStoreLocked), "b is held by m2")
	require.NoError(t, m2.Close())
	_, err = m1.Open(ctx, "b.txt")
	require.NoError(t, err)
	_, err = m2.Open(ctx, "a.txt")
	require.NoError(t, err)
}

func TestManager_ResumeRestoresDocumentAndCursor(t *testing.T) {
	st := storetest.New(t)
	storetest.Document(t, st, "a.txt", "alpha beta")
	storage := filepath.Join(t.TempDir(), "sessions")
	ctx := context.Background()

	// Given: no saved state yet
	m := newManager(t, st, ManagerConfig{StoragePath: storage})
	_, err := m.Resume(ctx)
	assert.True(t, spanerr.HasCode(err, spanerr.ErrCodeDocumentNotFound))

	// When: a session is closed with the cursor at 6
	s, err := m.Open(ctx, "a.txt")
	require.NoError(t, err)
	s.SetCursor(6)
	require.NoError(t, m.Close())

	// Then: a new manager for the same project resumes there
	m2 := newManager(t, st, ManagerConfig{StoragePath: storage})
	s2, err := m2.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", s2.Document().Name)
	assert.Equal(t, 6, s2.Cursor())

	st2, ok := m2.LastState()
	require.True(t, ok)
	assert.Equal(t, "/projects/demo", st2.Project)

	// And: a different project has no state
	m3 := newManager(t, st, ManagerConfig{StoragePath: storage, Project: "/projects/other"})
	_, ok = m3.LastState()
	assert.False(t, ok)
}

func TestManager_UseSerializesThroughSession(t *testing.T) {
	st := storetest.New(t)
	storetest.Document(t, st, "a.txt", "0123456789")
	lbl := storetest.Label(t, st, "LOC", "")
	m := newManager(t, st, ManagerConfig{})
	ctx := context.Background()

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		start := i * 2
		go func() {
			done <- m.Use(ctx, "a.txt", func(e *annotation.Engine) error {
				_, err := e.Add(ctx, lbl.ID, start, start+3)
				return err
			})
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}

	require.NoError(t, m.Use(ctx, "a.txt", func(e *annotation.Engine) error {
		assert.Equal(t, 4, e.Len())
		assert.Len(t, e.Clusters(), 1)
		assert.Empty(t, e.Verify())
		return nil
	}))
}

func TestSession_SyncPicksUpExternalChanges(t *testing.T) {
	// Given: an open session
	st := storetest.New(t)
	doc := storetest.Document(t, st, "a.txt", "0123456789")
	lbl := storetest.Label(t, st, "LOC", "")
	keep := storetest.Annotate(t, st, doc.ID, lbl.ID, 0, 4)
	gone := storetest.Annotate(t, st, doc.ID, lbl.ID, 2, 6)
	m := newManager(t, st, ManagerConfig{})
	ctx := context.Background()

	s, err := m.Open(ctx, "a.txt")
	require.NoError(t, err)
	_, err = s.Dispatch(ctx, annotation.Click{Pos: 3})
	require.NoError(t, err)

	// When: another process edits the document
	require.NoError(t, st.DeleteAnnotation(ctx, gone))
	require.NoError(t, st.UpdateExtraData(ctx, keep, "note"))
	storetest.Annotate(t, st, doc.ID, lbl.ID, 8, 10)

	res, err := s.Sync(ctx)
	require.NoError(t, err)

	// Then: every change is reflected
	assert.Equal(t, annotation.SyncResult{Added: 1, Removed: 1, Updated: 1}, res)
	require.NoError(t, s.Do(func(e *annotation.Engine) error {
		a, ok := e.Annotation(keep)
		require.True(t, ok)
		assert.Equal(t, "note", a.ExtraData)
		assert.Len(t, e.Clusters(), 2)
		return nil
	}))

	// When: the document itself is deleted
	require.NoError(t, st.DeleteDocument(ctx, doc.ID))
	_, err = s.Sync(ctx)

	// Then: the engine is emptied and the caller is told why
	assert.True(t, spanerr.HasCode(err, spanerr.ErrCodeDocumentNotFound))
	require.NoError(t, s.Do(func(e *annotation.Engine) error {
		assert.Zero(t, e.Len())
		return nil
	}))
}
