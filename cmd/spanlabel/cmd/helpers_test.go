package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testProject isolates HOME, the user config and the log directory, and
// returns an empty project directory.
func testProject(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("SPANLABEL_LOG_DIR", filepath.Join(home, "logs"))
	t.Setenv("SPANLABEL_DB", "")
	return t.TempDir()
}

// runCLI executes the root command against project and returns stdout.
func runCLI(t *testing.T, project string, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config-dir", project}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// mustRun is runCLI that fails the test on error.
func mustRun(t *testing.T, project string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, project, "", args...)
	require.NoError(t, err, "spanlabel %s", strings.Join(args, " "))
	return out
}

const newsText = "Barack Obama visited Paris"

// seedNews creates labels PER and LOC, the document "news" and three
// annotations: #1 PER [0,12), #2 LOC [21,26), #3 LOC [7,12).
func seedNews(t *testing.T) string {
	t.Helper()
	project := testProject(t)

	file := filepath.Join(t.TempDir(), "news.txt")
	require.NoError(t, os.WriteFile(file, []byte(newsText), 0644))

	mustRun(t, project, "label", "add", "PER")
	mustRun(t, project, "label", "add", "LOC", "--color", "#87d787")
	mustRun(t, project, "doc", "add", "news", file)
	mustRun(t, project, "add", "news", "PER", "0", "12")
	mustRun(t, project, "add", "news", "LOC", "21", "26")
	mustRun(t, project, "add", "news", "LOC", "7", "12")
	return project
}
