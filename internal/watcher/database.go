package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
)

// Watcher watches one SQLite database and its sidecar files.
type Watcher struct {
	dbPath string
	files  map[string]bool
	opts   Options

	fsw       *fsnotify.Watcher
	poll      *poller
	debouncer *Debouncer

	events  chan []ChangeEvent
	errors  chan error
	stopCh  chan struct{}
	mu      sync.RWMutex
	stopped bool
	dropped atomic.Uint64
}

// New creates a watcher for dbPath. fsnotify is used unless it fails to
// initialize or opts.ForcePolling is set.
func New(dbPath string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	opts = opts.WithDefaults()

	w := &Watcher{
		dbPath:    abs,
		files:     make(map[string]bool, len(sidecars)),
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []ChangeEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
	var watched []string
	for _, suffix := range sidecars {
		w.files[abs+suffix] = true
		watched = append(watched, abs+suffix)
	}

	if !opts.ForcePolling {
		if fsw, err := fsnotify.NewWatcher(); err == nil {
			w.fsw = fsw
		} else {
			slog.Warn("fsnotify unavailable, polling database instead", slog.String("error", err.Error()))
		}
	}
	if w.fsw == nil {
		w.poll = newPoller(opts.PollInterval, watched)
	}
	return w, nil
}

// Start watches until ctx is done or Stop is called. It blocks.
func (w *Watcher) Start(ctx context.Context) error {
	go w.forward(ctx)

	if w.fsw == nil {
		err := w.poll.run(ctx, w.stopCh, w.add)
		if ctx.Err() != nil {
			_ = w.Stop()
		}
		return err
	}

	if err := w.fsw.Add(filepath.Dir(w.dbPath)); err != nil {
		return fmt.Errorf("watch database directory: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Clean(ev.Name)
	if !w.files[name] {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}
	w.add(name, op)
}

func (w *Watcher) add(file string, op Operation) {
	w.debouncer.Add(ChangeEvent{
		Database:  w.dbPath,
		File:      file,
		Operation: op,
		Timestamp: time.Now(),
	})
}

func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emit(batch)
		}
	}
}

func (w *Watcher) emit(batch []ChangeEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped || len(batch) == 0 {
		return
	}

	select {
	case w.events <- batch:
	default:
		n := w.dropped.Add(1)
		slog.Warn("watcher buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", n))
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop releases resources and closes Events and Errors. Safe to call twice.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
	close(w.events)
	close(w.errors)
	return nil
}

// Events returns debounced change batches.
func (w *Watcher) Events() <-chan []ChangeEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches counts batches lost to a full buffer.
func (w *Watcher) DroppedBatches() uint64 {
	return w.dropped.Load()
}

// WatcherType returns "fsnotify" or "polling".
func (w *Watcher) WatcherType() string {
	if w.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// Database returns the watched database path.
func (w *Watcher) Database() string {
	return w.dbPath
}

// Syncer reconciles an engine with the store; *session.Session is one.
type Syncer interface {
	Sync(ctx context.Context) (annotation.SyncResult, error)
}

// SyncOnChange calls s.Sync for every batch until ctx is done or the
// watcher stops. notify, if set, receives each outcome.
func SyncOnChange(ctx context.Context, w *Watcher, s Syncer, notify func(annotation.SyncResult, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			res, err := s.Sync(ctx)
			slog.Debug("database changed",
				slog.Int("events", len(batch)),
				slog.Bool("changed", res.Changed()))
			if notify != nil {
				notify(res, err)
			}
		}
	}
}
