// Package session owns the open document: one annotation engine backed by
// the store, the document's edit lock, and the last-used state that lets
// `spanlabel annotate` resume where it left off.
package session

import (
	"context"
	"sync"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
	"github.com/Aman-CERP/spanlabel/internal/store"
)

// Session is one open document. The engine is single-threaded; every call
// into it goes through Do, which serializes callers.
type Session struct {
	mu     sync.Mutex
	docs   *store.DocumentStore
	engine *annotation.Engine
	lock   *store.DocumentLock
	cursor int
	closed bool
}

// Document returns the open document, including its content.
func (s *Session) Document() store.Document {
	return s.docs.Document()
}

// Do runs fn with exclusive access to the engine.
func (s *Session) Do(fn func(*annotation.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return spanerr.New(spanerr.ErrCodeStoreIO, "session is closed", nil)
	}
	return fn(s.engine)
}

// Dispatch applies one event under the session lock.
func (s *Session) Dispatch(ctx context.Context, ev annotation.Event) (annotation.Result, error) {
	var res annotation.Result
	err := s.Do(func(e *annotation.Engine) error {
		var err error
		res, err = e.Dispatch(ctx, ev)
		return err
	})
	return res, err
}

// Sync reconciles the engine with the store. A document deleted by another
// process is reported as ErrCodeDocumentNotFound after the engine is reset.
func (s *Session) Sync(ctx context.Context) (annotation.SyncResult, error) {
	var res annotation.SyncResult
	err := s.Do(func(e *annotation.Engine) error {
		if _, err := s.docs.Store().Document(ctx, s.docs.Document().ID); err != nil {
			if spanerr.HasCode(err, spanerr.ErrCodeDocumentNotFound) {
				e.Reset()
			}
			return err
		}
		var err error
		res, err = e.Sync(ctx)
		return err
	})
	return res, err
}

// SetCursor records the caret position saved with the last-used state.
func (s *Session) SetCursor(pos int) {
	s.mu.Lock()
	s.cursor = pos
	s.mu.Unlock()
}

// Cursor returns the recorded caret position.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Locked reports whether this session holds the document's edit lock.
func (s *Session) Locked() bool {
	return s.lock != nil && s.lock.IsLocked()
}

// close discards the engine and releases the lock. Safe to call twice.
func (s *Session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.engine.Reset()
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}
