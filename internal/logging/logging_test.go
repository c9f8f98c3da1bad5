package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath_HonorsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(LogDirEnv, dir)

	assert.Equal(t, dir, DefaultLogDir())
	assert.Equal(t, filepath.Join(dir, "spanlabel.log"), DefaultLogPath())
}

func TestDefaultLogDir_UnderHome(t *testing.T) {
	t.Setenv(LogDirEnv, "")
	assert.True(t, strings.HasSuffix(DefaultLogDir(), filepath.Join(".spanlabel", "logs")))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetup_WritesJSONAtLevel(t *testing.T) {
	// Given: a warn-level logger over a temp file
	path := filepath.Join(t.TempDir(), "nested", "test.log")
	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	require.NoError(t, err)

	// When: logging below and at the threshold
	logger.Info("dropped")
	logger.Warn("kept", slog.Int64("annotation_id", 7))
	cleanup()

	// Then: only the warning reaches the file, as JSON
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.Contains(t, string(data), `"annotation_id":7`)
}

func TestSetupMCPMode_FileOnly(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(LogDirEnv, dir)
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cleanup, err := SetupMCPMode("debug")
	require.NoError(t, err)
	slog.Debug("tool called", slog.String("tool", "list_documents"))
	cleanup()

	data, err := os.ReadFile(filepath.Join(dir, "spanlabel.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "mcp logging initialized")
	assert.Contains(t, string(data), "list_documents")
}

func TestFindLogFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(LogDirEnv, dir)

	_, err := FindLogFile("")
	assert.Error(t, err)
	_, err = FindLogFile(filepath.Join(dir, "missing.log"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(DefaultLogPath(), []byte("{}\n"), 0o644))
	got, err := FindLogFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLogPath(), got)
}

func TestRotatingWriter_Rotation(t *testing.T) {
	// Given: a 1MB writer keeping two rotated files
	path := filepath.Join(t.TempDir(), "r.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	w.SetImmediateSync(false)

	// When: writing well past four rotations
	chunk := []byte(strings.Repeat("x", 512*1024))
	for i := 0; i < 10; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	// Then: the live file and exactly two rotated files exist
	for _, p := range []string{path, path + ".1", path + ".2"} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.LessOrEqual(t, info.Size(), int64(1<<20))
	}
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.log")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o644))

	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")

	_, err = w.Write([]byte("late\n"))
	assert.ErrorIs(t, err, os.ErrClosed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.log")
	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = w.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 400, strings.Count(string(data), "line\n"))
}

const sampleLog = `{"time":"2026-01-02T10:00:00.5Z","level":"DEBUG","msg":"annotation activated","id":3}
{"time":"2026-01-02T10:00:01Z","level":"INFO","msg":"document opened","document":"news.txt"}
not json at all
{"time":"2026-01-02T10:00:02Z","level":"ERROR","msg":"annotation invariant violated","op":"cluster.remove"}
`

func TestViewer_Tail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))

	tests := []struct {
		name string
		cfg  ViewerConfig
		n    int
		want []string
	}{
		{"all", ViewerConfig{}, 0, []string{"annotation activated", "document opened", "", "annotation invariant violated"}},
		{"last two", ViewerConfig{}, 2, []string{"", "annotation invariant violated"}},
		{"level filter keeps raw lines", ViewerConfig{Level: "info"}, 0, []string{"document opened", "", "annotation invariant violated"}},
		{"pattern", ViewerConfig{Pattern: regexp.MustCompile("invariant")}, 0, []string{"annotation invariant violated"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := NewViewer(tt.cfg, nil).Tail(path, tt.n)
			require.NoError(t, err)
			var msgs []string
			for _, e := range entries {
				msgs = append(msgs, e.Msg)
			}
			assert.Equal(t, tt.want, msgs)
		})
	}

	_, err := NewViewer(ViewerConfig{}, nil).Tail(filepath.Join(t.TempDir(), "nope"), 1)
	assert.Error(t, err)
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, nil)

	e := v.parseLine(`{"time":"2026-01-02T10:00:00.5Z","level":"WARN","msg":"skipping","id":4,"annotation":"#4[1,3)"}`)
	assert.Equal(t, "10:00:00.500 WARN  skipping annotation=#4[1,3) id=4", v.FormatEntry(e))

	raw := v.parseLine("plain text")
	assert.False(t, raw.IsValid)
	assert.Equal(t, "plain text", v.FormatEntry(raw))
}

func TestViewer_Print(t *testing.T) {
	var buf strings.Builder
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)
	v.Print([]LogEntry{{Raw: "a"}, {Raw: "b"}})
	assert.Equal(t, "a\nb\n", buf.String())
}

func TestViewer_Follow(t *testing.T) {
	// Given: an existing log being followed
	path := filepath.Join(t.TempDir(), "f.log")
	require.NoError(t, os.WriteFile(path, []byte(`{"level":"INFO","msg":"old"}`+"\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- NewViewer(ViewerConfig{}, nil).Follow(ctx, path, entries) }()

	// When: a line is appended after following started
	var got LogEntry
	require.Eventually(t, func() bool {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return false
		}
		_, _ = f.WriteString(`{"level":"INFO","msg":"new"}` + "\n")
		_ = f.Close()
		select {
		case got = <-entries:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 4*time.Second, 10*time.Millisecond)

	// Then: only appended lines are delivered
	assert.Equal(t, "new", got.Msg)
	cancel()
	assert.NoError(t, <-done)
}
