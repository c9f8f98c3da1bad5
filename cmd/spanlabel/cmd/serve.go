package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/spanlabel/internal/logging"
	"github.com/Aman-CERP/spanlabel/internal/mcp"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start a Model Context Protocol server on stdio so AI assistants can list,
add, delete and search annotations.

stdout carries JSON-RPC only; logs go to ~/.spanlabel/logs/spanlabel.log.`,
		Example: `  # Claude Desktop / Cursor config
  {"command": "spanlabel", "args": ["serve", "--config-dir", "/path/to/project"]}`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{ownLogging: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	return cmd
}

func runServe(ctx context.Context) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Server.LogLevel
	if debugMode {
		level = "debug"
	}
	cleanup, err := logging.SetupMCPMode(level)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	a, err := openApp()
	if err != nil {
		slog.Error("failed to open annotation database", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = a.Close() }()

	mgr, err := a.sessions("", false)
	if err != nil {
		return err
	}
	srv, err := mcp.NewServer(mgr, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	if err := srv.RegisterResources(ctx); err != nil {
		slog.Warn("resources unavailable", slog.String("error", err.Error()))
	}

	slog.Info("serving annotations", slog.String("project", root), slog.String("database", a.store.Path()))
	err = srv.Serve(ctx, cfg.Server.Transport)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
