package logging

import (
	"log/slog"
)

// SetupMCPMode installs a file-only default logger for the MCP server.
//
// stdout is reserved for JSON-RPC frames. Anything else written there, or to
// stderr by some clients, breaks the session.
func SetupMCPMode(level string) (func(), error) {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	slog.Info("mcp logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
