package watcher

import (
	"context"
	"os"
	"time"
)

// poller stats a fixed set of files on a ticker. It is the fallback when
// fsnotify is unavailable.
type poller struct {
	interval time.Duration
	files    []string
	state    map[string]fileSnapshot
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	exists  bool
}

func newPoller(interval time.Duration, files []string) *poller {
	p := &poller{interval: interval, files: files, state: make(map[string]fileSnapshot)}
	for _, f := range files {
		p.state[f] = snapshot(f)
	}
	return p
}

func snapshot(path string) fileSnapshot {
	info, err := os.Stat(path)
	if err != nil {
		return fileSnapshot{}
	}
	return fileSnapshot{modTime: info.ModTime(), size: info.Size(), exists: true}
}

// detect compares every file with its last snapshot.
func (p *poller) detect(emit func(file string, op Operation)) {
	for _, f := range p.files {
		prev, cur := p.state[f], snapshot(f)
		p.state[f] = cur
		switch {
		case !prev.exists && cur.exists:
			emit(f, OpCreate)
		case prev.exists && !cur.exists:
			emit(f, OpDelete)
		case cur.exists && (prev.modTime != cur.modTime || prev.size != cur.size):
			emit(f, OpModify)
		}
	}
}

func (p *poller) run(ctx context.Context, stop <-chan struct{}, emit func(file string, op Operation)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			p.detect(emit)
		}
	}
}
