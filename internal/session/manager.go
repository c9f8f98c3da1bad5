package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
	"github.com/Aman-CERP/spanlabel/internal/store"
)

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// Project is the absolute project root; last-used state is keyed by it.
	Project string

	// StoragePath holds last-used state. Empty disables it.
	StoragePath string

	// LockDir is where document edit locks live. Empty means sessions do
	// not lock, which suits one-shot CLI commands and the MCP server.
	LockDir string

	// LockRetry controls how long Open waits for a held document lock.
	LockRetry spanerr.RetryConfig

	StrictInvariants bool
	Logger           *slog.Logger
}

// Manager holds at most one open Session. Opening another document
// discards the current engine and builds a fresh one.
type Manager struct {
	store  *store.SQLiteStore
	cfg    ManagerConfig
	states *StateStore
	logger *slog.Logger

	mu      sync.Mutex
	current *Session
}

// NewManager creates a manager over an open store.
func NewManager(st *store.SQLiteStore, cfg ManagerConfig) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LockRetry.MaxRetries == 0 && cfg.LockRetry.InitialDelay == 0 {
		cfg.LockRetry = spanerr.DefaultRetryConfig()
	}

	m := &Manager{store: st, cfg: cfg, logger: cfg.Logger}
	if cfg.StoragePath != "" {
		states, err := NewStateStore(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		m.states = states
	}
	return m, nil
}

// Store returns the shared store.
func (m *Manager) Store() *store.SQLiteStore {
	return m.store
}

// Open makes the named document current. Re-opening the current document
// returns the existing session unchanged.
func (m *Manager) Open(ctx context.Context, name string) (*Session, error) {
	doc, err := m.store.DocumentByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.OpenID(ctx, doc.ID)
}

// OpenID is Open by document id.
func (m *Manager) OpenID(ctx context.Context, docID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.Document().ID == docID {
		return m.current, nil
	}
	if err := m.closeCurrent(); err != nil {
		m.logger.Warn("failed to close previous session", slog.String("error", err.Error()))
	}

	docs, err := m.store.ForDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	var lock *store.DocumentLock
	if m.cfg.LockDir != "" {
		lock = store.NewDocumentLock(m.cfg.LockDir, docID)
		if err := lock.Acquire(ctx, m.cfg.LockRetry); err != nil {
			return nil, err
		}
	}

	engine := annotation.New(docs,
		annotation.WithLogger(m.logger.With(slog.String("document", docs.Document().Name))),
		annotation.WithStrictInvariants(m.cfg.StrictInvariants))
	if err := engine.Load(ctx); err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}

	s := &Session{docs: docs, engine: engine, lock: lock}
	if st, ok := m.lastState(); ok && st.Document == docs.Document().Name {
		s.cursor = min(st.Cursor, docs.Document().Length)
	}
	m.current = s

	m.logger.Info("document opened",
		slog.String("document", docs.Document().Name),
		slog.Int("annotations", engine.Len()),
		slog.Bool("locked", lock != nil))

	m.saveStateLocked()
	return s, nil
}

// Resume opens the document used last in this project.
func (m *Manager) Resume(ctx context.Context) (*Session, error) {
	st, ok := m.lastState()
	if !ok || st.Document == "" {
		return nil, spanerr.New(spanerr.ErrCodeDocumentNotFound, "no previously opened document", nil).
			WithSuggestion("Pass a document name: spanlabel annotate <document>")
	}
	return m.Open(ctx, st.Document)
}

// Current returns the open session, if any.
func (m *Manager) Current() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

// Use opens the named document if needed and runs fn on its engine under
// the session lock.
func (m *Manager) Use(ctx context.Context, name string, fn func(*annotation.Engine) error) error {
	s, err := m.Open(ctx, name)
	if err != nil {
		return err
	}
	return s.Do(fn)
}

// SaveState persists the current document and cursor.
func (m *Manager) SaveState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveStateLocked()
}

// LastState returns the saved state for this project.
func (m *Manager) LastState() (State, bool) {
	return m.lastState()
}

// Close saves state and closes the current session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveStateLocked()
	return m.closeCurrent()
}

func (m *Manager) closeCurrent() error {
	if m.current == nil {
		return nil
	}
	s := m.current
	m.current = nil
	return s.close()
}

func (m *Manager) lastState() (State, bool) {
	if m.states == nil {
		return State{}, false
	}
	st, ok, err := m.states.Load(m.cfg.Project)
	if err != nil {
		m.logger.Warn("ignoring unreadable session state", slog.String("error", err.Error()))
		return State{}, false
	}
	return st, ok
}

func (m *Manager) saveStateLocked() {
	if m.states == nil || m.current == nil {
		return
	}
	st := State{
		Project:  m.cfg.Project,
		Document: m.current.Document().Name,
		Cursor:   m.current.Cursor(),
	}
	if err := m.states.Save(st); err != nil {
		m.logger.Warn("failed to save session state", slog.String("error", err.Error()))
	}
}
