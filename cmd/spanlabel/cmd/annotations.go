package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
	"github.com/Aman-CERP/spanlabel/internal/output"
	"github.com/Aman-CERP/spanlabel/internal/session"
)

func newAddCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "add <document> <label> <start> <end>",
		Short: "Label the span [start, end) of a document",
		Long: `Label the half-open character span [start, end) of a document.
Offsets count characters (runes), not bytes.`,
		Example: `  spanlabel add news PER 0 12`,
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseOffset("start", args[2])
			if err != nil {
				return err
			}
			end, err := parseOffset("end", args[3])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				lbl, err := a.store.LabelByName(ctx, args[1])
				if err != nil {
					return err
				}
				mgr, err := a.sessions("", false)
				if err != nil {
					return err
				}
				defer func() { _ = mgr.Close() }()

				var added annotation.Annotation
				err = mgr.Use(ctx, args[0], func(e *annotation.Engine) error {
					ann, err := e.Add(ctx, lbl.ID, start, end)
					if err != nil {
						return err
					}
					added = ann
					if note == "" {
						return nil
					}
					if err := selectAnnotation(e, added.ID); err != nil {
						return err
					}
					_, err = e.EditExtraData(ctx, note)
					return err
				})
				if err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("Added annotation #%d %s %s",
					added.ID, lbl.Name, output.Span(added.Start, added.End))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Extra data to attach to the new annotation")
	return cmd
}

func parseOffset(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, spanerr.ValidationError(fmt.Sprintf("%s must be a non-negative integer, got %q", name, s), err)
	}
	return n, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, spanerr.ValidationError(fmt.Sprintf("annotation id must be a positive integer, got %q", s), err)
	}
	return id, nil
}

// selectAnnotation activates id the way a user would: click its start and
// keep clicking while another member of its cluster is active.
func selectAnnotation(e *annotation.Engine, id int64) error {
	a, ok := e.Annotation(id)
	if !ok {
		return spanerr.NotFound(spanerr.ErrCodeAnnotationNotFound, fmt.Sprintf("annotation %d", id))
	}
	e.Escape()
	for range e.Len() {
		e.PointerActivate(a.Start, false)
		if got, ok := e.ActiveID(); ok && got == id {
			return nil
		}
	}
	return spanerr.InvariantError(fmt.Sprintf("annotation %d is not reachable by clicking at %d", id, a.Start), nil)
}

// withAnnotation opens the document owning id, activates id and runs fn.
func withAnnotation(ctx context.Context, a *app, id int64, fn func(sess *session.Session, e *annotation.Engine) error) error {
	_, docID, err := a.store.AnnotationByID(ctx, id)
	if err != nil {
		return err
	}
	mgr, err := a.sessions("", false)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()

	sess, err := mgr.OpenID(ctx, docID)
	if err != nil {
		return err
	}
	return sess.Do(func(e *annotation.Engine) error {
		if err := selectAnnotation(e, id); err != nil {
			return err
		}
		return fn(sess, e)
	})
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an annotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var doc string
				err := withAnnotation(ctx, a, id, func(sess *session.Session, e *annotation.Engine) error {
					doc = sess.Document().Name
					_, err := e.DeleteActive(ctx)
					return err
				})
				if err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("Deleted annotation #%d from %q", id, doc)
				return nil
			})
		},
	}
}

func newNoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <id> [text]",
		Short: "Set or clear an annotation's extra data",
		Long:  `Replace the free-form extra data of an annotation. Omit text to clear it.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			text := ""
			if len(args) == 2 {
				text = args[1]
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				err := withAnnotation(ctx, a, id, func(_ *session.Session, e *annotation.Engine) error {
					_, err := e.EditExtraData(ctx, text)
					return err
				})
				if err != nil {
					return err
				}
				out := output.New(cmd.OutOrStdout())
				if text == "" {
					out.Successf("Cleared extra data of annotation #%d", id)
				} else {
					out.Successf("Updated extra data of annotation #%d", id)
				}
				return nil
			})
		},
	}
}

func newRelabelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relabel <id> <label>",
		Short: "Give an annotation a different label",
		Long: `Replace an annotation with the same span carrying another label.
The replacement gets a new id, which is printed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				lbl, err := a.store.LabelByName(ctx, args[1])
				if err != nil {
					return err
				}
				var replaced annotation.Annotation
				err = withAnnotation(ctx, a, id, func(_ *session.Session, e *annotation.Engine) error {
					ann, _, err := e.ReassignLabel(ctx, lbl.ID)
					replaced = ann
					return err
				})
				if err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("Relabeled #%d as %s; it is now #%d", id, lbl.Name, replaced.ID)
				return nil
			})
		},
	}
}

func newListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list <document>",
		Aliases: []string{"ls"},
		Short:   "List a document's annotations and overlap clusters",
		Args:    cobra.ExactArgs(1),
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

				var listing annotationListing
				err = mgr.Use(ctx, args[0], func(e *annotation.Engine) error {
					listing = buildListing(args[0], e, names)
					return nil
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(listing)
				}
				return listing.write(cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type listedAnnotation struct {
	annotation.Annotation
	Label   string `json:"label"`
	Cluster int    `json:"cluster"`
}

type listedCluster struct {
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Members []int64 `json:"members"`
}

type annotationListing struct {
	Document    string             `json:"document"`
	Annotations []listedAnnotation `json:"annotations"`
	Clusters    []listedCluster    `json:"clusters"`
}

func buildListing(doc string, e *annotation.Engine, names func(int64) string) annotationListing {
	l := annotationListing{
		Document:    doc,
		Annotations: []listedAnnotation{},
		Clusters:    []listedCluster{},
	}
	cluster := make(map[int64]int)
	for i, c := range e.Clusters() {
		lc := listedCluster{Start: c.Start, End: c.End}
		for _, m := range e.Members(c) {
			lc.Members = append(lc.Members, m.ID)
			cluster[m.ID] = i + 1
		}
		l.Clusters = append(l.Clusters, lc)
	}
	for _, a := range e.Annotations() {
		l.Annotations = append(l.Annotations, listedAnnotation{
			Annotation: a,
			Label:      names(a.LabelID),
			Cluster:    cluster[a.ID],
		})
	}
	return l
}

func (l annotationListing) write(w io.Writer) error {
	if len(l.Annotations) == 0 {
		output.New(w).Hint(fmt.Sprintf("No annotations in %q yet. Add one with: spanlabel add %s <label> <start> <end>", l.Document, l.Document))
		return nil
	}

	sizes := make(map[int]int)
	for _, a := range l.Annotations {
		sizes[a.Cluster]++
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tLABEL\tSPAN\tCLUSTER\tEXTRA")
	for _, a := range l.Annotations {
		cluster := strconv.Itoa(a.Cluster)
		if sizes[a.Cluster] > 1 {
			cluster += "*"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			a.ID, a.Label, output.Span(a.Start, a.End), cluster, a.ExtraData)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s in %s (* overlapping)\n",
		output.Count(len(l.Annotations), "annotation"), output.Count(len(l.Clusters), "cluster"))
	return err
}
