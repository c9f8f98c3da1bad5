package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/spanlabel/internal/output"
	"github.com/Aman-CERP/spanlabel/internal/search"
)

func newFindCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Search annotations",
		Long: `Full-text search over every annotation: the covered text, the label name,
the extra data and the document name. Fields can be targeted with
text:, label:, extra: and document:.`,
		Example: `  spanlabel find obama
  spanlabel find "+label:PER +document:news"
  spanlabel find extra:chancellor --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if limit <= 0 {
					limit = a.cfg.Search.MaxResults
				}

				idx, err := search.Build(ctx, a.store)
				if err != nil {
					return err
				}
				defer func() { _ = idx.Close() }()

				results, err := idx.Search(ctx, args[0], limit)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if jsonOutput {
					if results == nil {
						results = []search.Result{}
					}
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					return enc.Encode(results)
				}
				if len(results) == 0 {
					output.New(w).Statusf("🔍", "No annotations match %q", args[0])
					return nil
				}

				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "SCORE\tDOCUMENT\tID\tLABEL\tSPAN\tTEXT\tEXTRA")
				for _, r := range results {
					_, _ = fmt.Fprintf(tw, "%.2f\t%s\t%d\t%s\t%s\t%q\t%s\n",
						r.Score, r.Document, r.AnnotationID, r.Label, output.Span(r.Start, r.End), r.Text, r.ExtraData)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default: search.max_results)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
