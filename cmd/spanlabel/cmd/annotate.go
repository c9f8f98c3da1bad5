package cmd

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
	"github.com/Aman-CERP/spanlabel/internal/session"
	"github.com/Aman-CERP/spanlabel/internal/store"
	"github.com/Aman-CERP/spanlabel/internal/ui"
	"github.com/Aman-CERP/spanlabel/internal/watcher"
)

func newAnnotateCmd() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "annotate [document]",
		Short: "Annotate a document interactively",
		Long: `Open the terminal annotator. Without a document, the document used last in
this project is reopened at the same position.

Keys:
  arrows, home/end       move the cursor      shift+arrows  select
  enter / click          activate at cursor    tab/shift+tab next/previous annotation
  a                      label the selection   1-9           pick a label (relabels the active one)
  e                      edit extra data       x / delete    delete the active annotation
  esc                    clear selection, then deactivate   q  quit

Edits made by other spanlabel processes appear while the annotator runs.
A document can be open in only one annotator at a time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ui.Interactive(cmd.OutOrStdout()) {
				return spanerr.ValidationError("annotate needs an interactive terminal", nil).
					WithSuggestion("Use 'spanlabel show <document>' to print annotations instead")
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return runAnnotate(ctx, cmd, a, name, !noWatch && a.cfg.Watch.Enabled)
			})
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not pick up edits made by other processes")
	return cmd
}

func runAnnotate(ctx context.Context, cmd *cobra.Command, a *app, name string, watch bool) error {
	mgr, err := a.sessions(filepath.Join(a.cfg.DataDir(a.root), "locks"), true)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()

	var sess *session.Session
	if name == "" {
		sess, err = mgr.Resume(ctx)
	} else {
		sess, err = mgr.Open(ctx, name)
	}
	if err != nil {
		return err
	}

	labels, err := a.store.Labels(ctx)
	if err != nil {
		return err
	}
	noColor := a.cfg.UI.NoColor || ui.DetectNoColor()

	model := ui.NewAnnotator(ctx, ui.AnnotatorConfig{
		Session:   sess,
		Labels:    labels,
		Theme:     ui.NewTheme(noColor, a.cfg.UI.OverlapColor, labelColors(a, labels)),
		NoColor:   noColor,
		WrapWidth: a.cfg.UI.WrapWidth,
	})
	p := ui.NewProgram(ctx, model, cmd.InOrStdin(), cmd.OutOrStdout())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if watch {
		stop, err := startWatcher(runCtx, a, sess, ui.SyncNotifier(p))
		if err != nil {
			slog.Warn("not watching for external edits", slog.String("error", err.Error()))
		} else {
			defer stop()
		}
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	mgr.SaveState()
	return nil
}

// labelColors resolves a label's color: its own, else the palette's.
func labelColors(a *app, labels []store.Label) func(int64) string {
	own := make(map[int64]string, len(labels))
	for _, l := range labels {
		if l.Color != "" {
			own[l.ID] = l.Color
		}
	}
	return func(id int64) string {
		if c, ok := own[id]; ok {
			return c
		}
		return a.cfg.LabelColor(id)
	}
}

// startWatcher syncs sess whenever the database files change.
func startWatcher(ctx context.Context, a *app, sess *session.Session, notify func(annotation.SyncResult, error)) (func(), error) {
	debounce, err := a.cfg.WatchDebounce()
	if err != nil {
		return nil, err
	}
	w, err := watcher.New(a.store.Path(), watcher.Options{DebounceWindow: debounce})
	if err != nil {
		return nil, err
	}

	go func() {
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("database watcher stopped", slog.String("error", err.Error()))
		}
	}()
	go watcher.SyncOnChange(ctx, w, sess, notify)

	slog.Debug("watching database", slog.String("path", w.Database()), slog.String("type", w.WatcherType()))
	return func() { _ = w.Stop() }, nil
}
