package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	"github.com/Aman-CERP/spanlabel/internal/ui"
)

func newShowCmd() *cobra.Command {
	var activate int64

	cmd := &cobra.Command{
		Use:   "show <document>",
		Short: "Print a document with its annotations marked",
		Long: `Print a document with every highlighted range in brackets, followed by a
table of the ranges. Overlapping regions are marked (overlap); with --activate
the chosen annotation is marked (active:LABEL) the way the annotator draws it.`,
		Example: `  spanlabel show news
  spanlabel show news --activate 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				names, err := a.labelNames(ctx)
				if err != nil {
					return err
				}
				mgr, err := a.sessions("", false)
				if err != nil {
					return err
				}
				defer func() { _ = mgr.Close() }()

				sess, err := mgr.Open(ctx, args[0])
				if err != nil {
					return err
				}
				doc := ui.PlainDocument{
					Name:      sess.Document().Name,
					Text:      sess.Document().Content,
					LabelName: names,
				}
				err = sess.Do(func(e *annotation.Engine) error {
					if activate > 0 {
						if err := selectAnnotation(e, activate); err != nil {
							return err
						}
					}
					st := e.Status()
					doc.Ranges = e.RenderRanges()
					doc.Annotations = st.AnnotationCount
					doc.Clusters = st.ClusterCount
					return nil
				})
				if err != nil {
					return err
				}
				return ui.RenderPlain(cmd.OutOrStdout(), doc)
			})
		},
	}

	cmd.Flags().Int64Var(&activate, "activate", 0, "Annotation id to show as active")
	return cmd
}
