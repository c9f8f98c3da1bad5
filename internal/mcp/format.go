package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/spanlabel/internal/search"
)

// MaxFindResults caps find_annotations regardless of the requested limit.
const MaxFindResults = 100

// FormatDocuments formats the document list as markdown.
func FormatDocuments(docs []DocumentOutput) string {
	if len(docs) == 0 {
		return "No documents. Add one with `spanlabel doc add <name> <file>`."
	}

	var sb strings.Builder
	sb.WriteString("## Documents\n\n")
	sb.WriteString("| Name | Characters | Annotations |\n")
	sb.WriteString("|------|------------|-------------|\n")
	for _, d := range docs {
		fmt.Fprintf(&sb, "| %s | %d | %d |\n", d.Name, d.Length, d.Annotations)
	}
	return sb.String()
}

// FormatLabels formats the label list as markdown.
func FormatLabels(out ListLabelsOutput) string {
	if len(out.Labels) == 0 {
		return "No labels. Add one with `spanlabel label add <name>`."
	}
	names := make([]string, len(out.Labels))
	for i, l := range out.Labels {
		names[i] = fmt.Sprintf("`%s`", l.Name)
	}
	return fmt.Sprintf("## Labels\n\n%s\n", strings.Join(names, ", "))
}

// FormatAnnotations formats a document's annotations and clusters as markdown.
func FormatAnnotations(out ListAnnotationsOutput) string {
	if len(out.Annotations) == 0 {
		return fmt.Sprintf("No annotations in \"%s\"", out.Document)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Annotations in \"%s\"\n\n", out.Document)
	fmt.Fprintf(&sb, "%s in %s\n\n",
		plural(len(out.Annotations), "annotation"), plural(len(out.Clusters), "cluster"))
	for _, a := range out.Annotations {
		formatAnnotation(&sb, a)
	}

	overlapping := 0
	for _, c := range out.Clusters {
		if len(c.Members) > 1 {
			overlapping++
		}
	}
	if overlapping == 0 {
		return sb.String()
	}

	sb.WriteString("\n### Overlapping clusters\n\n")
	for _, c := range out.Clusters {
		if len(c.Members) < 2 {
			continue
		}
		ids := make([]string, len(c.Members))
		for i, id := range c.Members {
			ids[i] = fmt.Sprintf("#%d", id)
		}
		fmt.Fprintf(&sb, "- [%d, %d) %q: %s\n", c.Start, c.End, c.Text, strings.Join(ids, ", "))
	}
	return sb.String()
}

// FormatAnnotationResult formats a single created or changed annotation.
func FormatAnnotationResult(verb string, out AnnotationResultOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s in \"%s\": ", verb, out.Document)
	formatAnnotation(&sb, out.Annotation)
	return sb.String()
}

// FormatFindResults formats search hits as markdown.
func FormatFindResults(query string, results []search.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No annotations found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Annotations matching \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %s\n\n", plural(len(results), "result"))
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. **%s** #%d `%s` [%d, %d) %q (score: %.2f)",
			i+1, r.Document, r.AnnotationID, r.Label, r.Start, r.End, r.Text, r.Score)
		if r.ExtraData != "" {
			fmt.Fprintf(&sb, " note: %q", r.ExtraData)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatAnnotation(sb *strings.Builder, a AnnotationOutput) {
	fmt.Fprintf(sb, "- #%d `%s` [%d, %d) %q", a.ID, a.Label, a.Start, a.End, a.Text)
	if a.ExtraData != "" {
		fmt.Fprintf(sb, " note: %q", a.ExtraData)
	}
	sb.WriteString("\n")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
