package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/spanlabel/internal/stats"
	"github.com/Aman-CERP/spanlabel/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var (
		jsonOutput bool
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show annotation and overlap statistics",
		Long: `Show per-document annotation counts, cluster counts, how many clusters
contain overlapping annotations, and label usage. Documents are analyzed
concurrently (stats.workers).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if workers <= 0 {
					workers = a.cfg.Stats.Workers
				}
				rep, err := stats.Collect(ctx, a.store, stats.Options{
					Workers: workers,
					Logger:  slog.Default(),
				})
				if err != nil {
					return err
				}

				r := ui.NewStatsRenderer(cmd.OutOrStdout(), a.cfg.UI.NoColor || ui.DetectNoColor())
				if jsonOutput {
					return r.RenderJSON(rep)
				}
				return r.Render(rep)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&workers, "workers", 0, "Documents analyzed concurrently (default: stats.workers)")
	return cmd
}
