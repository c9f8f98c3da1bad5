// Package search finds annotations by the text they cover, their label,
// their extra data and the document they belong to.
package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/spanlabel/internal/store"
)

// DefaultLimit is used when Search is called with a non-positive limit.
const DefaultLimit = 20

// Result is one matching annotation.
type Result struct {
	AnnotationID int64   `json:"annotation_id"`
	DocumentID   int64   `json:"document_id"`
	Score        float64 `json:"score"`
	Document     string  `json:"document"`
	Label        string  `json:"label"`
	Start        int     `json:"start"`
	End          int     `json:"end"`
	Text         string  `json:"text"`
	ExtraData    string  `json:"extra_data,omitempty"`
}

// entry is what bleve indexes for an annotation.
type entry struct {
	Text     string `json:"text"`
	Label    string `json:"label"`
	Extra    string `json:"extra"`
	Document string `json:"document"`
}

// Index is an in-memory full-text index over every annotation in a store.
// It is a snapshot: rebuild it to see later changes.
type Index struct {
	mu      sync.RWMutex
	index   bleve.Index
	results map[string]Result
	closed  bool
}

func newMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = standard.Name
	return m
}

// Build indexes every annotation of every document.
func Build(ctx context.Context, st *store.SQLiteStore) (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	ix := &Index{index: idx, results: make(map[string]Result)}

	if err := ix.load(ctx, st); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) load(ctx context.Context, st *store.SQLiteStore) error {
	labels, err := st.Labels(ctx)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(labels))
	for _, l := range labels {
		names[l.ID] = l.Name
	}

	docs, err := st.Documents(ctx)
	if err != nil {
		return err
	}

	batch := ix.index.NewBatch()
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := st.Document(ctx, d.ID)
		if err != nil {
			return err
		}
		anns, err := st.Annotations(ctx, doc.ID)
		if err != nil {
			return err
		}

		text := []rune(doc.Content)
		for _, a := range anns {
			r := Result{
				AnnotationID: a.ID,
				DocumentID:   doc.ID,
				Document:     doc.Name,
				Label:        names[a.LabelID],
				Start:        a.Start,
				End:          a.End,
				Text:         covered(text, a.Start, a.End),
				ExtraData:    a.ExtraData,
			}
			id := strconv.FormatInt(a.ID, 10)
			if err := batch.Index(id, entry{Text: r.Text, Label: r.Label, Extra: r.ExtraData, Document: r.Document}); err != nil {
				return fmt.Errorf("failed to index annotation %d: %w", a.ID, err)
			}
			ix.results[id] = r
		}
	}

	if err := ix.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

func covered(text []rune, start, end int) string {
	start, end = max(start, 0), min(end, len(text))
	if start >= end {
		return ""
	}
	return string(text[start:end])
}

// Search runs a query-string query, so both plain words and field queries
// such as "label:PER obama" work. Results are ordered by score, then id.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return []Result{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	req.Size = limit

	res, err := ix.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r, ok := ix.results[hit.ID]
		if !ok {
			continue
		}
		r.Score = hit.Score
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].AnnotationID < out[j].AnnotationID
	})
	return out, nil
}

// Len returns the number of indexed annotations.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.results)
}

// Close releases the index. It is idempotent.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.index.Close()
}
