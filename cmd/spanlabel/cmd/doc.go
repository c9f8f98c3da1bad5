package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
	"github.com/Aman-CERP/spanlabel/internal/output"
	"github.com/Aman-CERP/spanlabel/internal/store"
)

func newDocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Manage documents",
		Long: `Manage the documents stored in the annotation database.

A document's text is fixed once added. Annotations refer to it by
character offsets.`,
	}

	cmd.AddCommand(newDocAddCmd())
	cmd.AddCommand(newDocListCmd())
	cmd.AddCommand(newDocRmCmd())
	cmd.AddCommand(newDocTextCmd())

	return cmd
}

func newDocAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <file>",
		Short: "Add a document from a file",
		Long:  `Add a UTF-8 text document. Use - as the file to read standard input.`,
		Example: `  spanlabel doc add news article.txt
  curl -s https://example.com/a.txt | spanlabel doc add a -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				doc, err := a.store.AddDocument(ctx, args[0], content)
				if err != nil {
					return err
				}
				out := output.New(cmd.OutOrStdout())
				out.Successf("Added document %q (%d characters)", doc.Name, doc.Length)
				out.Hint(fmt.Sprintf("Annotate it with: spanlabel annotate %s", doc.Name))
				return nil
			})
		},
	}
}

// readInput reads a file, or stdin for "-". The text must be UTF-8.
func readInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", spanerr.ValidationError(fmt.Sprintf("failed to read %s", path), err)
	}
	if !utf8.Valid(data) {
		return "", spanerr.ValidationError(fmt.Sprintf("%s is not valid UTF-8 text", path), nil)
	}
	return string(data), nil
}

func newDocListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List documents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return runDocList(ctx, cmd.OutOrStdout(), a.store, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type docRow struct {
	store.Document
	Annotations int `json:"annotations"`
}

func runDocList(ctx context.Context, w io.Writer, st *store.SQLiteStore, jsonOutput bool) error {
	docs, err := st.Documents(ctx)
	if err != nil {
		return err
	}
	rows := make([]docRow, 0, len(docs))
	for _, d := range docs {
		n, err := st.CountAnnotations(ctx, d.ID)
		if err != nil {
			return err
		}
		rows = append(rows, docRow{Document: d, Annotations: n})
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		output.New(w).Hint("No documents. Add one with: spanlabel doc add <name> <file>")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tCHARS\tANNOTATIONS\tADDED")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n",
			r.ID, r.Name, r.Length, r.Annotations, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func newDocRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a document and its annotations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				doc, err := a.store.DocumentByName(ctx, args[0])
				if err != nil {
					return err
				}
				n, err := a.store.CountAnnotations(ctx, doc.ID)
				if err != nil {
					return err
				}
				if err := a.store.DeleteDocument(ctx, doc.ID); err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("Deleted document %q and %s",
					doc.Name, output.Count(n, "annotation"))
				return nil
			})
		},
	}
}

func newDocTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text <name>",
		Short: "Print a document's text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				doc, err := a.store.DocumentByName(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), doc.Content)
				return err
			})
		},
	}
}
