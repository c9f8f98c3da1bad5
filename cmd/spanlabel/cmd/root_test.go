package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{
		"doc", "label", "add", "rm", "note", "relabel", "list", "show",
		"annotate", "find", "stats", "serve", "logs", "config", "version",
	}
	for _, name := range want {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCmd_Help(t *testing.T) {
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())

	assert.Contains(t, buf.String(), "Overlapping spans form clusters")
	assert.Contains(t, buf.String(), "--config-dir")
}

func TestRootCmd_ResetsFlagsBetweenRuns(t *testing.T) {
	project := testProject(t)
	mustRun(t, project, "--debug", "version", "--short")

	NewRootCmd()

	assert.False(t, debugMode)
}

func TestAnnotate_RequiresTerminal(t *testing.T) {
	// Given: output that is not a terminal
	project := seedNews(t)

	// When: starting the annotator
	_, err := runCLI(t, project, "", "annotate", "news")

	// Then: it points at the non-interactive alternative
	var se *spanerr.SpanError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, spanerr.ErrCodeInvalidInput, se.Code)
	assert.Contains(t, se.Suggestion, "spanlabel show")
}

func TestLogs_MissingFile(t *testing.T) {
	project := testProject(t)

	_, err := runCLI(t, project, "", "logs", "--file", filepath.Join(t.TempDir(), "none.log"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log file not found")
}

func TestLogs_TailsFile(t *testing.T) {
	project := testProject(t)
	file := filepath.Join(t.TempDir(), "server.log")
	lines := `{"time":"2026-10-19T10:00:00Z","level":"INFO","msg":"document opened","document":"news"}
{"time":"2026-10-19T10:00:01Z","level":"WARN","msg":"watcher buffer full"}
`
	require.NoError(t, os.WriteFile(file, []byte(lines), 0644))

	out := mustRun(t, project, "logs", "--file", file, "--no-color", "--level", "warn")

	assert.Contains(t, out, "watcher buffer full")
	assert.NotContains(t, out, "document opened")
}

func TestServe_UnknownTransport(t *testing.T) {
	project := testProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(project, ".spanlabel.yaml"),
		[]byte("server:\n  transport: sse\n"), 0644))

	_, err := runCLI(t, project, "", "serve")

	require.Error(t, err)
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	project := testProject(t)
	heap := filepath.Join(t.TempDir(), "heap.prof")

	mustRun(t, project, "--profile-mem", heap, "version", "--short")

	info, err := os.Stat(heap)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
