package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

// DocumentLock is a cross-process lock that keeps two interactive annotators
// from editing the same document at once. Readers never take it.
type DocumentLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDocumentLock creates the lock for docID under <dir>/locks.
func NewDocumentLock(dir string, docID int64) *DocumentLock {
	lockPath := filepath.Join(dir, "locks", fmt.Sprintf("document-%d.lock", docID))
	return &DocumentLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking. A lock held
// elsewhere is reported as a retryable ErrCodeStoreLocked error.
func (l *DocumentLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return spanerr.New(spanerr.ErrCodeStoreIO, "failed to create lock directory", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return spanerr.New(spanerr.ErrCodeStoreIO, "failed to acquire document lock", err)
	}
	if !acquired {
		return spanerr.New(spanerr.ErrCodeStoreLocked, "document is open in another annotator", nil).
			WithDetail("lock", l.path)
	}
	l.locked = true
	return nil
}

// Acquire retries TryLock with backoff until it succeeds or cfg gives up.
func (l *DocumentLock) Acquire(ctx context.Context, cfg spanerr.RetryConfig) error {
	err := spanerr.Retry(ctx, cfg, l.TryLock)
	if err != nil && spanerr.HasCode(err, spanerr.ErrCodeStoreLocked) {
		return spanerr.New(spanerr.ErrCodeStoreLocked, "document is open in another annotator", err).
			WithSuggestion("Close the other 'spanlabel annotate' session for this document")
	}
	return err
}

// Unlock releases the lock. It is safe to call on an unlocked lock.
func (l *DocumentLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return spanerr.New(spanerr.ErrCodeStoreIO, "failed to release document lock", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DocumentLock) Path() string {
	return l.path
}

// IsLocked reports whether this handle holds the lock.
func (l *DocumentLock) IsLocked() bool {
	return l.locked
}
