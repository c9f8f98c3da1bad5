package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/spanlabel/internal/config"
	"github.com/Aman-CERP/spanlabel/internal/session"
	"github.com/Aman-CERP/spanlabel/internal/store"
)

// app is what every data command needs: the project, its configuration and
// the open annotation database.
type app struct {
	root  string
	cfg   *config.Config
	store *store.SQLiteStore
}

// resolveProject returns --config-dir or the nearest project root.
func resolveProject() (string, error) {
	if projectDir != "" {
		return projectDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.FindProjectRoot(cwd)
}

// loadConfig resolves the project and loads its configuration.
func loadConfig() (string, *config.Config, error) {
	root, err := resolveProject()
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// openApp loads the configuration and opens the annotation database.
// Callers must Close it.
func openApp() (*app, error) {
	root, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(store.Config{
		Path:           cfg.DatabasePath(root),
		BusyTimeoutMS:  cfg.Store.BusyTimeoutMS,
		LabelCacheSize: cfg.Store.LabelCacheSize,
		Logger:         slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("store opened", slog.String("path", st.Path()))
	return &app{root: root, cfg: cfg, store: st}, nil
}

// Close closes the database.
func (a *app) Close() error {
	return a.store.Close()
}

// sessions builds a session manager. lockDir "" opens documents unlocked;
// remember records the opened document as the project's last-used one.
func (a *app) sessions(lockDir string, remember bool) (*session.Manager, error) {
	storage := ""
	if remember {
		storage = a.cfg.Sessions.StoragePath
	}
	return session.NewManager(a.store, session.ManagerConfig{
		Project:          a.root,
		StoragePath:      storage,
		LockDir:          lockDir,
		StrictInvariants: a.cfg.Engine.StrictInvariants,
		Logger:           slog.Default(),
	})
}

// labelNames maps label ids to names.
func (a *app) labelNames(ctx context.Context) (func(int64) string, error) {
	labels, err := a.store.Labels(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(labels))
	for _, l := range labels {
		names[l.ID] = l.Name
	}
	return func(id int64) string {
		if n, ok := names[id]; ok {
			return n
		}
		return fmt.Sprintf("#%d", id)
	}, nil
}

// withApp runs fn with an open app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(cmd.Context(), a)
}
