package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Aman-CERP/spanlabel/internal/stats"
)

// DensityWidth is the width of the per-document density strip.
const DensityWidth = 24

// StatsRenderer displays a corpus report.
type StatsRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatsRenderer creates a stats renderer.
func NewStatsRenderer(out io.Writer, noColor bool) *StatsRenderer {
	return &StatsRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays the report as a table with one row per document.
func (r *StatsRenderer) Render(rep stats.Report) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Annotation Stats"))

	_, _ = fmt.Fprintf(r.out, "  Database:    %s (%s)\n", rep.Database, FormatBytes(rep.DatabaseSize))
	_, _ = fmt.Fprintf(r.out, "  Documents:   %d\n", rep.Totals.Documents)
	_, _ = fmt.Fprintf(r.out, "  Annotations: %d\n", rep.Totals.Annotations)
	_, _ = fmt.Fprintf(r.out, "  Clusters:    %d (%s overlapping)\n",
		rep.Totals.Clusters, r.renderOverlap(rep.Totals.OverlappingClusters))
	if len(rep.Totals.Labels) > 0 {
		_, _ = fmt.Fprintf(r.out, "  Labels:      %s\n", formatLabels(rep.Totals.Labels))
	}
	_, _ = fmt.Fprintln(r.out)

	if len(rep.Documents) == 0 {
		_, _ = fmt.Fprintln(r.out, r.styles.Dim.Render("  No documents. Add one with: spanlabel doc add <name> <file>"))
		return nil
	}

	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "  NAME\tCHARS\tANNS\tCLUSTERS\tOVERLAP\tLARGEST\tADDED\tDENSITY")
	for _, d := range rep.Documents {
		_, _ = fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			d.Name, d.Length, d.Annotations, d.Clusters, d.OverlappingClusters,
			d.LargestCluster, formatTime(d.CreatedAt), Density(d.Length, d.Spans, DensityWidth))
	}
	return tw.Flush()
}

// RenderJSON outputs the report as JSON.
func (r *StatsRenderer) RenderJSON(rep stats.Report) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rep)
}

func (r *StatsRenderer) renderOverlap(n int) string {
	if n == 0 {
		return r.styles.Success.Render("0")
	}
	return r.styles.Warning.Render(fmt.Sprint(n))
}

func formatLabels(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for _, name := range stats.SortedLabels(counts) {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, " ")
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
