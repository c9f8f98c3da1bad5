package annotation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

// memStore is an in-memory Store that rejects duplicate (label, start, end)
// tuples the way the SQLite store does.
type memStore struct {
	nextID int64
	anns   map[int64]Annotation

	failAdd    error
	failDelete error
	failUpdate error
	failList   error

	deleted []int64
}

func newMemStore() *memStore {
	return &memStore{anns: make(map[int64]Annotation)}
}

func (m *memStore) AddAnnotation(_ context.Context, labelID int64, start, end int) (int64, error) {
	if m.failAdd != nil {
		return 0, m.failAdd
	}
	for _, a := range m.anns {
		if a.LabelID == labelID && a.Start == start && a.End == end {
			return 0, spanerr.New(spanerr.ErrCodeDuplicateSpan, fmt.Sprintf("span [%d,%d) already labeled", start, end), nil)
		}
	}
	m.nextID++
	m.anns[m.nextID] = Annotation{ID: m.nextID, LabelID: labelID, Start: start, End: end}
	return m.nextID, nil
}

func (m *memStore) DeleteAnnotation(_ context.Context, id int64) error {
	if m.failDelete != nil {
		return m.failDelete
	}
	if _, ok := m.anns[id]; !ok {
		return spanerr.NotFound(spanerr.ErrCodeAnnotationNotFound, fmt.Sprintf("annotation %d", id))
	}
	delete(m.anns, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memStore) UpdateExtraData(_ context.Context, id int64, text string) error {
	if m.failUpdate != nil {
		return m.failUpdate
	}
	a, ok := m.anns[id]
	if !ok {
		return spanerr.NotFound(spanerr.ErrCodeAnnotationNotFound, fmt.Sprintf("annotation %d", id))
	}
	a.ExtraData = text
	m.anns[id] = a
	return nil
}

func (m *memStore) AnnotationsForOpenDocument(context.Context) ([]Annotation, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	out := make([]Annotation, 0, len(m.anns))
	for _, a := range m.anns {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, spans ...[3]int) (*Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	e := New(store, WithLogger(quietLogger()), WithStrictInvariants(true))
	for _, s := range spans {
		_, err := e.Add(context.Background(), int64(s[0]), s[1], s[2])
		require.NoError(t, err)
	}
	return e, store
}

func activeID(t *testing.T, e *Engine) int64 {
	t.Helper()
	id, ok := e.ActiveID()
	require.True(t, ok, "expected an active annotation")
	return id
}

func TestScenarioA_OverlappingSpansFormOneCluster(t *testing.T) {
	// Given: [0,5) id1 and [3,8) id2
	e, _ := newTestEngine(t, [3]int{1, 0, 5}, [3]int{1, 3, 8})

	// Then: a single cluster [0,8) holds both
	clusters := e.Clusters()
	require.Len(t, clusters, 1)
	assert.Equal(t, Cluster{First: Key{0, 1}, Last: Key{3, 2}, Start: 0, End: 8}, clusters[0])
	assert.Equal(t, []int64{1, 2}, ids(e.Members(clusters[0])))
	assert.Empty(t, e.Verify())
}

func TestScenarioB_DeleteLeavesRemainder(t *testing.T) {
	// Given: scenario A
	e, _ := newTestEngine(t, [3]int{1, 0, 5}, [3]int{1, 3, 8})

	// When: id1 is activated and deleted
	require.True(t, e.PointerActivate(1, false))
	require.Equal(t, int64(1), activeID(t, e))
	deleted, err := e.DeleteActive(context.Background())

	// Then: one cluster [3,8) with only id2, nothing active
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []Cluster{{First: Key{3, 2}, Last: Key{3, 2}, Start: 3, End: 8}}, e.Clusters())
	_, active := e.ActiveID()
	assert.False(t, active)
	assert.Empty(t, e.Verify())
}

func TestScenarioC_CycleAcrossDisjointClusters(t *testing.T) {
	// Given: disjoint [0,2) id1 and [5,7) id2
	e, _ := newTestEngine(t, [3]int{1, 0, 2}, [3]int{1, 5, 7})
	require.Len(t, e.Clusters(), 2)

	// When: activating id1 and cycling forward twice
	e.PointerActivate(0, false)
	assert.Equal(t, int64(1), activeID(t, e))

	a, ok := e.Cycle(true, 0)
	require.True(t, ok)
	assert.Equal(t, int64(2), a.ID)

	a, ok = e.Cycle(true, 0)
	require.True(t, ok)

	// Then: it wraps back to id1
	assert.Equal(t, int64(1), a.ID)
}

func TestScenarioD_RenderCarvesOutActive(t *testing.T) {
	// Given: [0,10) id1, [2,4) id2, [6,8) id3
	e, _ := newTestEngine(t, [3]int{1, 0, 10}, [3]int{2, 2, 4}, [3]int{3, 6, 8})

	clusters := e.Clusters()
	require.Len(t, clusters, 1)
	assert.Equal(t, Key{0, 1}, clusters[0].First)
	assert.Equal(t, Key{6, 3}, clusters[0].Last)

	// When: id2 is active (second click inside the cluster)
	e.PointerActivate(3, false)
	e.PointerActivate(3, false)
	require.Equal(t, int64(2), activeID(t, e))

	// Then: overlap style around the active span, active last
	assert.Equal(t, []Range{
		{Start: 0, End: 2, Style: StyleOverlap},
		{Start: 4, End: 10, Style: StyleOverlap},
		{Start: 2, End: 4, Style: StyleActive, LabelID: 2},
	}, e.RenderRanges())
}

func TestScenarioE_DuplicateSpanLeavesStateUnchanged(t *testing.T) {
	// Given: id1 on (label 1, [0,5)), active
	e, _ := newTestEngine(t, [3]int{1, 0, 5})
	e.PointerActivate(0, false)
	before := e.Clusters()

	// When: inserting the same tuple again
	_, err := e.Add(context.Background(), 1, 0, 5)

	// Then: failure is reported and nothing moved
	require.Error(t, err)
	assert.True(t, spanerr.HasCode(err, spanerr.ErrCodeDuplicateSpan))
	assert.Equal(t, before, e.Clusters())
	assert.Equal(t, 1, e.Len())
	assert.Equal(t, int64(1), activeID(t, e))
}

func TestEngine_Add_RejectsInvalidSpan(t *testing.T) {
	e, store := newTestEngine(t)

	for _, span := range [][2]int{{5, 5}, {6, 2}, {-1, 3}} {
		_, err := e.Add(context.Background(), 1, span[0], span[1])
		require.Error(t, err)
		assert.Equal(t, spanerr.ErrCodeInvalidSpan, spanerr.GetCode(err))
	}
	assert.Empty(t, store.anns)
	assert.Equal(t, 0, e.Len())
}

func TestEngine_TouchingSpansDoNotCluster(t *testing.T) {
	e, _ := newTestEngine(t, [3]int{1, 0, 5}, [3]int{1, 5, 9})

	assert.Len(t, e.Clusters(), 2)
}

func TestEngine_PointerActivate(t *testing.T) {
	// Given: cluster {id1 [0,5), id2 [3,8)} and singleton id3 [10,12)
	newEngine := func(t *testing.T) *Engine {
		e, _ := newTestEngine(t, [3]int{1, 0, 5}, [3]int{1, 3, 8}, [3]int{2, 10, 12})
		return e
	}

	t.Run("click with nothing active activates first member", func(t *testing.T) {
		e := newEngine(t)
		assert.True(t, e.PointerActivate(6, false))
		assert.Equal(t, int64(1), activeID(t, e))
	})

	t.Run("click in same cluster cycles and wraps", func(t *testing.T) {
		e := newEngine(t)
		e.PointerActivate(4, false)
		e.PointerActivate(4, false)
		assert.Equal(t, int64(2), activeID(t, e))
		e.PointerActivate(4, false)
		assert.Equal(t, int64(1), activeID(t, e))
	})

	t.Run("click in another cluster jumps to its first member", func(t *testing.T) {
		e := newEngine(t)
		e.PointerActivate(4, false)
		e.PointerActivate(4, false)
		e.PointerActivate(11, false)
		assert.Equal(t, int64(3), activeID(t, e))
	})

	t.Run("click outside clusters deactivates", func(t *testing.T) {
		e := newEngine(t)
		e.PointerActivate(4, false)
		assert.True(t, e.PointerActivate(9, false))
		_, ok := e.ActiveID()
		assert.False(t, ok)
		assert.False(t, e.PointerActivate(9, false))
	})

	t.Run("drag never changes state", func(t *testing.T) {
		e := newEngine(t)
		assert.False(t, e.PointerActivate(4, true))
		_, ok := e.ActiveID()
		assert.False(t, ok)

		e.PointerActivate(11, false)
		assert.False(t, e.PointerActivate(1, true))
		assert.Equal(t, int64(3), activeID(t, e))
	})

	t.Run("cluster end is exclusive", func(t *testing.T) {
		e := newEngine(t)
		assert.False(t, e.PointerActivate(8, false))
		_, ok := e.ActiveID()
		assert.False(t, ok)
	})
}

func TestEngine_Escape_Idempotent(t *testing.T) {
	e, _ := newTestEngine(t, [3]int{1, 0, 5})

	assert.False(t, e.Escape())

	e.PointerActivate(0, false)
	assert.True(t, e.Escape())
	assert.False(t, e.Escape())
	_, ok := e.ActiveID()
	assert.False(t, ok)
}

func TestEngine_FindNext_EmptyDocument(t *testing.T) {
	e, _ := newTestEngine(t)

	_, ok := e.FindNext(0, true)
	assert.False(t, ok)
	_, ok = e.Cycle(false, 3)
	assert.False(t, ok)
	assert.False(t, e.PointerActivate(0, false))
	assert.Empty(t, e.RenderRanges())
}

func TestEngine_FindNext_FromCursor(t *testing.T) {
	// Given: annotations starting at 0, 4 and 9, nothing active
	e, _ := newTestEngine(t, [3]int{1, 0, 2}, [3]int{1, 4, 6}, [3]int{1, 9, 11})

	tests := []struct {
		name    string
		cursor  int
		forward bool
		want    int64
	}{
		{"forward at a start", 4, true, 2},
		{"forward between", 5, true, 3},
		{"forward past the end wraps", 10, true, 1},
		{"backward before cursor", 5, false, 2},
		{"backward at a start skips it", 4, false, 1},
		{"backward at zero wraps", 0, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, ok := e.FindNext(tt.cursor, tt.forward)
			require.True(t, ok)
			assert.Equal(t, tt.want, k.ID)
		})
	}
}

func TestEngine_Cycle_SameStartTies(t *testing.T) {
	// Given: three annotations sharing start 2 and one at 0
	e, _ := newTestEngine(t, [3]int{1, 2, 4}, [3]int{2, 2, 5}, [3]int{3, 2, 6}, [3]int{1, 0, 1})

	// When: cycling forward from nothing
	var forward []int64
	for i := 0; i < 5; i++ {
		a, ok := e.Cycle(true, 0)
		require.True(t, ok)
		forward = append(forward, a.ID)
	}

	// Then: key order (0,4) (2,1) (2,2) (2,3), then wrap
	assert.Equal(t, []int64{4, 1, 2, 3, 4}, forward)

	// When: cycling backward from id4
	var backward []int64
	for i := 0; i < 5; i++ {
		a, ok := e.Cycle(false, 0)
		require.True(t, ok)
		backward = append(backward, a.ID)
	}

	// Then: reverse key order, wrapping to the last key
	assert.Equal(t, []int64{3, 2, 1, 4, 3}, backward)
}

func TestEngine_Cycle_Completeness(t *testing.T) {
	// Given: a document with overlapping and tied annotations
	e, _ := newTestEngine(t,
		[3]int{1, 0, 10}, [3]int{2, 2, 4}, [3]int{3, 2, 4}, [3]int{1, 6, 8},
		[3]int{1, 12, 14}, [3]int{2, 12, 20}, [3]int{1, 30, 31})

	for _, forward := range []bool{true, false} {
		t.Run(fmt.Sprintf("forward=%v", forward), func(t *testing.T) {
			e.Escape()
			seen := make(map[int64]bool)
			var first int64
			for i := 0; i < e.Len(); i++ {
				a, ok := e.Cycle(forward, 7)
				require.True(t, ok)
				assert.False(t, seen[a.ID], "id %d visited twice", a.ID)
				seen[a.ID] = true
				if i == 0 {
					first = a.ID
				}
			}
			assert.Len(t, seen, e.Len())

			a, _ := e.Cycle(forward, 7)
			assert.Equal(t, first, a.ID)
		})
	}
}

func TestEngine_DeleteActive(t *testing.T) {
	t.Run("nothing active is a no-op", func(t *testing.T) {
		e, store := newTestEngine(t, [3]int{1, 0, 5})
		deleted, err := e.DeleteActive(context.Background())
		require.NoError(t, err)
		assert.False(t, deleted)
		assert.Len(t, store.anns, 1)
	})

	t.Run("store failure keeps engine state", func(t *testing.T) {
		e, store := newTestEngine(t, [3]int{1, 0, 5}, [3]int{1, 3, 8})
		e.PointerActivate(0, false)
		store.failDelete = errors.New("disk I/O error")

		deleted, err := e.DeleteActive(context.Background())

		require.Error(t, err)
		assert.False(t, deleted)
		assert.Equal(t, 2, e.Len())
		assert.Equal(t, int64(1), activeID(t, e))
	})

	t.Run("middle member splits its cluster", func(t *testing.T) {
		e, _ := newTestEngine(t, [3]int{1, 0, 10}, [3]int{1, 2, 4}, [3]int{1, 6, 8})
		e.PointerActivate(0, false)
		require.Equal(t, int64(1), activeID(t, e))

		_, err := e.DeleteActive(context.Background())
		require.NoError(t, err)

		assert.Equal(t, []Cluster{
			{First: Key{2, 2}, Last: Key{2, 2}, Start: 2, End: 4},
			{First: Key{6, 3}, Last: Key{6, 3}, Start: 6, End: 8},
		}, e.Clusters())
		assert.Empty(t, e.Verify())
	})
}

func TestEngine_ReassignLabel(t *testing.T) {
	t.Run("replaces span and activates the new one", func(t *testing.T) {
		// Given: active id1 with extra data
		e, store := newTestEngine(t, [3]int{1, 0, 5}, [3]int{2, 3, 8})
		e.PointerActivate(0, false)
		_, err := e.EditExtraData(context.Background(), "check spelling")
		require.NoError(t, err)

		// When: reassigning to label 7
		n, changed, err := e.ReassignLabel(context.Background(), 7)

		// Then: a new id with the same span is active, the old is gone
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, Annotation{ID: 3, LabelID: 7, Start: 0, End: 5, ExtraData: "check spelling"}, n)
		assert.Equal(t, int64(3), activeID(t, e))
		_, stillThere := e.Annotation(1)
		assert.False(t, stillThere)
		assert.NotContains(t, store.anns, int64(1))
		assert.Equal(t, "check spelling", store.anns[3].ExtraData)
		lbl, ok := e.ActiveLabelID()
		assert.True(t, ok)
		assert.Equal(t, int64(7), lbl)
		assert.Empty(t, e.Verify())
	})

	t.Run("same label is a no-op", func(t *testing.T) {
		e, store := newTestEngine(t, [3]int{1, 0, 5})
		e.PointerActivate(0, false)
		_, changed, err := e.ReassignLabel(context.Background(), 1)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Len(t, store.anns, 1)
	})

	t.Run("nothing active", func(t *testing.T) {
		e, _ := newTestEngine(t, [3]int{1, 0, 5})
		_, changed, err := e.ReassignLabel(context.Background(), 2)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("duplicate target leaves state unchanged", func(t *testing.T) {
		e, store := newTestEngine(t, [3]int{1, 0, 5}, [3]int{2, 0, 5})
		e.PointerActivate(0, false)

		_, _, err := e.ReassignLabel(context.Background(), 2)

		assert.True(t, spanerr.HasCode(err, spanerr.ErrCodeDuplicateSpan))
		assert.Len(t, store.anns, 2)
		assert.Equal(t, int64(1), activeID(t, e))
	})

	t.Run("failed delete rolls back the new span", func(t *testing.T) {
		e, store := newTestEngine(t, [3]int{1, 0, 5})
		e.PointerActivate(0, false)
		store.failDelete = errors.New("locked")

		_, _, err := e.ReassignLabel(context.Background(), 2)

		require.Error(t, err)
		assert.Equal(t, 1, e.Len())
		assert.Equal(t, int64(1), activeID(t, e))
		// rollback also failed with the same injected error; the store keeps both
		assert.Len(t, store.anns, 2)
	})
}

func TestEngine_EditExtraData(t *testing.T) {
	e, store := newTestEngine(t, [3]int{1, 0, 5})

	changed, err := e.EditExtraData(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, changed)

	e.PointerActivate(0, false)
	changed, err = e.EditExtraData(context.Background(), "needs review")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "needs review", e.ActiveExtraData())
	assert.Equal(t, "needs review", store.anns[1].ExtraData)

	store.failUpdate = errors.New("readonly")
	_, err = e.EditExtraData(context.Background(), "other")
	require.Error(t, err)
	assert.Equal(t, "needs review", e.ActiveExtraData())
}

func TestEngine_Status(t *testing.T) {
	e, _ := newTestEngine(t, [3]int{1, 0, 5}, [3]int{1, 3, 8}, [3]int{1, 20, 22})

	assert.Equal(t, Status{AnnotationCount: 3, ClusterCount: 2}, e.Status())

	e.PointerActivate(21, false)
	assert.Equal(t, Status{AnnotationCount: 3, ClusterCount: 2, ActiveRange: "[20, 22)"}, e.Status())
}

func TestEngine_Load_ResetsAndRebuilds(t *testing.T) {
	// Given: an engine with an active annotation
	e, store := newTestEngine(t, [3]int{1, 0, 5})
	e.PointerActivate(0, false)

	// And: the store now holds a different document's spans
	store.anns = map[int64]Annotation{
		10: {ID: 10, LabelID: 1, Start: 4, End: 9},
		11: {ID: 11, LabelID: 1, Start: 0, End: 5},
		12: {ID: 12, LabelID: 1, Start: 7, End: 7},
	}

	// When: loading
	require.NoError(t, e.Load(context.Background()))

	// Then: invalid spans are skipped, nothing is active
	_, ok := e.ActiveID()
	assert.False(t, ok)
	assert.Equal(t, []int64{11, 10}, ids(e.Annotations()))
	assert.Equal(t, []Cluster{{First: Key{0, 11}, Last: Key{4, 10}, Start: 0, End: 9}}, e.Clusters())
}

func TestEngine_Load_StoreFailure(t *testing.T) {
	e, store := newTestEngine(t, [3]int{1, 0, 5})
	store.failList = errors.New("database is closed")

	err := e.Load(context.Background())

	require.Error(t, err)
	assert.Equal(t, spanerr.ErrCodeStoreIO, spanerr.GetCode(err))
	assert.Equal(t, 1, e.Len())
}

func TestEngine_ExternalDelete(t *testing.T) {
	e, _ := newTestEngine(t, [3]int{1, 0, 5}, [3]int{1, 3, 8})
	e.PointerActivate(4, false)
	e.PointerActivate(4, false)
	require.Equal(t, int64(2), activeID(t, e))

	assert.True(t, e.ExternalDelete(2))
	assert.False(t, e.ExternalDelete(2))
	assert.False(t, e.ExternalDelete(99))

	_, ok := e.ActiveID()
	assert.False(t, ok)
	assert.Equal(t, []Cluster{{First: Key{0, 1}, Last: Key{0, 1}, Start: 0, End: 5}}, e.Clusters())
}

func TestEngine_Sync(t *testing.T) {
	// Given: a loaded engine
	e, store := newTestEngine(t, [3]int{1, 0, 5}, [3]int{1, 3, 8}, [3]int{1, 20, 22})
	e.PointerActivate(21, false)

	// And: another process edits the store
	delete(store.anns, 3)
	delete(store.anns, 1)
	store.anns[2] = Annotation{ID: 2, LabelID: 1, Start: 3, End: 8, ExtraData: "from cli"}
	store.anns[40] = Annotation{ID: 40, LabelID: 2, Start: 6, End: 12}

	// When: syncing
	res, err := e.Sync(context.Background())

	// Then: the engine mirrors the store
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Added: 1, Removed: 2, Updated: 1}, res)
	assert.True(t, res.Changed())
	assert.Equal(t, []int64{2, 40}, ids(e.Annotations()))
	assert.Equal(t, []Cluster{{First: Key{3, 2}, Last: Key{6, 40}, Start: 3, End: 12}}, e.Clusters())
	a, _ := e.Annotation(2)
	assert.Equal(t, "from cli", a.ExtraData)
	_, ok := e.ActiveID()
	assert.False(t, ok)

	// When: syncing again
	res, err = e.Sync(context.Background())

	// Then: nothing changes
	require.NoError(t, err)
	assert.False(t, res.Changed())
}

func TestEngine_RandomOperations_KeepPartition(t *testing.T) {
	// Given: a fixed-seed sequence of inserts and deletes
	rng := newRand(7)
	e, store := newTestEngine(t)
	ctx := context.Background()

	for step := 0; step < 400; step++ {
		if len(store.anns) > 0 && rng.Intn(3) == 0 {
			ids := make([]int64, 0, len(store.anns))
			for id := range store.anns {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			victim := ids[rng.Intn(len(ids))]
			require.NoError(t, store.DeleteAnnotation(ctx, victim))
			require.True(t, e.ExternalDelete(victim))
		} else {
			start := rng.Intn(60)
			_, _ = e.Add(ctx, int64(rng.Intn(3)+1), start, start+1+rng.Intn(8))
		}

		// Then: the partition matches brute-force connectivity at every step
		require.Empty(t, e.Verify(), "step %d", step)
		require.Equal(t, bruteForceClusters(e.Annotations()), e.Clusters(), "step %d", step)
	}
}

func ids(anns []Annotation) []int64 {
	out := make([]int64, 0, len(anns))
	for _, a := range anns {
		out = append(out, a.ID)
	}
	return out
}
