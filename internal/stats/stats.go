// Package stats summarizes how a corpus is annotated: per document, how many
// annotations and clusters it has and how deeply spans overlap.
package stats

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	"github.com/Aman-CERP/spanlabel/internal/store"
)

// DocumentReport describes one document.
type DocumentReport struct {
	DocumentID          int64          `json:"document_id"`
	Name                string         `json:"name"`
	Length              int            `json:"length"`
	CreatedAt           time.Time      `json:"created_at"`
	Annotations         int            `json:"annotations"`
	Clusters            int            `json:"clusters"`
	OverlappingClusters int            `json:"overlapping_clusters"`
	LargestCluster      int            `json:"largest_cluster"`
	Labels              map[string]int `json:"labels"`

	// Spans feeds the density strip; it is not part of the JSON report.
	Spans []annotation.Annotation `json:"-"`
}

// Report covers every document in the store.
type Report struct {
	Database     string           `json:"database"`
	DatabaseSize int64            `json:"database_size"`
	GeneratedAt  time.Time        `json:"generated_at"`
	Documents    []DocumentReport `json:"documents"`
	Totals       Totals           `json:"totals"`
}

// Totals aggregates the per-document counts.
type Totals struct {
	Documents           int            `json:"documents"`
	Annotations         int            `json:"annotations"`
	Clusters            int            `json:"clusters"`
	OverlappingClusters int            `json:"overlapping_clusters"`
	Labels              map[string]int `json:"labels"`
}

// Options configures Collect.
type Options struct {
	// Workers bounds how many documents are processed at once.
	Workers int
	Logger  *slog.Logger
}

// Collect builds a report for every document. Each worker loads one document
// into its own engine, so no engine is shared between goroutines.
func Collect(ctx context.Context, st *store.SQLiteStore, opts Options) (Report, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	docs, err := st.Documents(ctx)
	if err != nil {
		return Report{}, err
	}
	labels, err := st.Labels(ctx)
	if err != nil {
		return Report{}, err
	}
	labelNames := make(map[int64]string, len(labels))
	for _, l := range labels {
		labelNames[l.ID] = l.Name
	}

	reports := make([]DocumentReport, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, doc := range docs {
		g.Go(func() error {
			r, err := documentReport(gctx, st, doc, labelNames, opts.Logger)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rep := Report{
		Database:    st.Path(),
		GeneratedAt: time.Now(),
		Documents:   reports,
		Totals:      Totals{Documents: len(reports), Labels: map[string]int{}},
	}
	if info, err := os.Stat(st.Path()); err == nil {
		rep.DatabaseSize = info.Size()
	}
	for _, r := range reports {
		rep.Totals.Annotations += r.Annotations
		rep.Totals.Clusters += r.Clusters
		rep.Totals.OverlappingClusters += r.OverlappingClusters
		for name, n := range r.Labels {
			rep.Totals.Labels[name] += n
		}
	}
	return rep, nil
}

func documentReport(ctx context.Context, st *store.SQLiteStore, doc store.Document, labelNames map[int64]string, logger *slog.Logger) (DocumentReport, error) {
	ds, err := st.ForDocument(ctx, doc.ID)
	if err != nil {
		return DocumentReport{}, err
	}
	e := annotation.New(ds, annotation.WithLogger(logger))
	if err := e.Load(ctx); err != nil {
		return DocumentReport{}, err
	}

	r := DocumentReport{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Length:     doc.Length,
		CreatedAt:  doc.CreatedAt,
		Labels:     map[string]int{},
		Spans:      e.Annotations(),
	}
	r.Annotations = len(r.Spans)
	for _, a := range r.Spans {
		r.Labels[labelName(labelNames, a.LabelID)]++
	}

	clusters := e.Clusters()
	r.Clusters = len(clusters)
	for _, c := range clusters {
		if c.Singleton() {
			r.LargestCluster = max(r.LargestCluster, 1)
			continue
		}
		r.OverlappingClusters++
		r.LargestCluster = max(r.LargestCluster, len(e.Members(c)))
	}
	return r, nil
}

func labelName(names map[int64]string, id int64) string {
	if n, ok := names[id]; ok {
		return n
	}
	return "unknown"
}

// SortedLabels returns label names by descending count, then by name.
func SortedLabels(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
