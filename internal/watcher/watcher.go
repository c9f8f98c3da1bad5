package watcher

import (
	"time"
)

// Operation is the kind of change observed.
type Operation int

const (
	// OpCreate means the file appeared.
	OpCreate Operation = iota
	// OpModify means the file was written.
	OpModify
	// OpDelete means the file was removed or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ChangeEvent is one coalesced change to a watched database.
type ChangeEvent struct {
	// Database is the main database file the change belongs to.
	Database string

	// File is the file that actually changed: the database or a sidecar.
	File string

	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is how long events are collected before a batch is
	// emitted. Default: 200ms
	DebounceWindow time.Duration

	// PollInterval is the stat interval in polling mode. Default: 1s
	PollInterval time.Duration

	// ForcePolling skips fsnotify.
	ForcePolling bool

	// EventBufferSize is the number of batches buffered. Default: 16
	EventBufferSize int
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		PollInterval:    time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = d.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = d.EventBufferSize
	}
	return o
}

// sidecars are the files SQLite writes next to the database.
var sidecars = []string{"", "-wal", "-journal"}
