package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/spanlabel/internal/output"
)

func newLabelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Manage labels",
	}

	cmd.AddCommand(newLabelAddCmd())
	cmd.AddCommand(newLabelListCmd())

	return cmd
}

func newLabelAddCmd() *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a label",
		Long: `Create a label. Without --color the label is drawn with the
configured palette (ui.palette).`,
		Example: `  spanlabel label add PER
  spanlabel label add LOC --color "#87d787"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				lbl, err := a.store.AddLabel(ctx, args[0], color)
				if err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("Added label %q (id %d)", lbl.Name, lbl.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&color, "color", "", "Label color, e.g. \"#ff8787\" or an ANSI color number")
	return cmd
}

func newLabelListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List labels",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				labels, err := a.store.Labels(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if jsonOutput {
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					return enc.Encode(labels)
				}
				if len(labels) == 0 {
					output.New(w).Hint("No labels. Add one with: spanlabel label add <name>")
					return nil
				}

				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "KEY\tID\tNAME\tCOLOR")
				for i, l := range labels {
					key := "-"
					if i < 9 {
						key = fmt.Sprint(i + 1)
					}
					color := l.Color
					if color == "" {
						color = a.cfg.LabelColor(l.ID) + " (palette)"
					}
					_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", key, l.ID, l.Name, color)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
