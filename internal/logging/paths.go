package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogDirEnv overrides the log directory.
const LogDirEnv = "SPANLABEL_LOG_DIR"

// DefaultLogDir returns $SPANLABEL_LOG_DIR or ~/.spanlabel/logs.
func DefaultLogDir() string {
	if dir := os.Getenv(LogDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".spanlabel", "logs")
	}
	return filepath.Join(home, ".spanlabel", "logs")
}

// DefaultLogPath returns the log file shared by the CLI, TUI and server.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "spanlabel.log")
}

// FindLogFile resolves the file to view: explicit if given, else the default.
func FindLogFile(explicit string) (string, error) {
	path := explicit
	if path == "" {
		path = DefaultLogPath()
	}
	if _, err := os.Stat(path); err != nil {
		if explicit != "" {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return "", fmt.Errorf("no log file found at %s; run a command with --debug first", path)
	}
	return path, nil
}
