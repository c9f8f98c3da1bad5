package annotation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

// Store is the durable record of spans for the open document.
// Implementations assign ids and reject duplicate (label, start, end) tuples
// with an ErrCodeDuplicateSpan error.
type Store interface {
	AddAnnotation(ctx context.Context, labelID int64, start, end int) (int64, error)
	DeleteAnnotation(ctx context.Context, id int64) error
	UpdateExtraData(ctx context.Context, id int64, text string) error
	AnnotationsForOpenDocument(ctx context.Context) ([]Annotation, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for transitions and invariant reports.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStrictInvariants makes invariant violations panic instead of being
// logged and skipped.
func WithStrictInvariants(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// Engine tracks the annotations of one open document, their overlap clusters
// and the active annotation. It is not safe for concurrent use.
type Engine struct {
	store    Store
	index    *Index
	clusters *ClusterSet
	byID     map[int64]Annotation

	active    int64
	hasActive bool

	logger *slog.Logger
	strict bool
	inv    invariants
}

// New creates an empty engine backed by store. Call Load to populate it.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		index:    NewIndex(),
		clusters: NewClusterSet(),
		byID:     make(map[int64]Annotation),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.inv = invariants{strict: e.strict, logger: e.logger}
	e.clusters.inv = e.inv
	return e
}

// Load discards all state and rebuilds it from the store's current span list.
// The active annotation is cleared.
func (e *Engine) Load(ctx context.Context) error {
	anns, err := e.store.AnnotationsForOpenDocument(ctx)
	if err != nil {
		return spanerr.New(spanerr.ErrCodeStoreIO, "failed to load annotations", err)
	}

	e.Reset()

	sort.Slice(anns, func(i, j int) bool { return anns[i].Key().Less(anns[j].Key()) })
	for _, a := range anns {
		if !a.Valid() {
			e.logger.Warn("skipping invalid annotation", slog.String("annotation", a.String()))
			continue
		}
		if _, dup := e.byID[a.ID]; dup {
			e.logger.Warn("skipping duplicate annotation id", slog.Int64("id", a.ID))
			continue
		}
		e.insertLocal(a)
	}

	e.logger.Debug("annotation engine loaded",
		slog.Int("annotations", e.index.Len()),
		slog.Int("clusters", e.clusters.Len()))
	return nil
}

// Reset clears every structure and deactivates.
func (e *Engine) Reset() {
	e.index.Clear()
	e.clusters.Clear()
	e.byID = make(map[int64]Annotation)
	e.deactivate()
}

// Add stores a new span and inserts it into the index and cluster set.
// On any store failure the engine is left untouched.
func (e *Engine) Add(ctx context.Context, labelID int64, start, end int) (Annotation, error) {
	if start < 0 || start >= end {
		return Annotation{}, spanerr.New(spanerr.ErrCodeInvalidSpan,
			fmt.Sprintf("invalid span [%d,%d)", start, end), nil)
	}

	id, err := e.store.AddAnnotation(ctx, labelID, start, end)
	if err != nil {
		return Annotation{}, err
	}
	if _, exists := e.byID[id]; exists {
		e.inv.violated("engine.add", "store returned id %d which is already loaded", id)
		return Annotation{}, spanerr.InvariantError(fmt.Sprintf("store reused annotation id %d", id), nil)
	}

	a := Annotation{ID: id, LabelID: labelID, Start: start, End: end}
	e.insertLocal(a)
	e.logger.Debug("annotation added", slog.String("annotation", a.String()), slog.Int64("label_id", labelID))
	return a, nil
}

func (e *Engine) insertLocal(a Annotation) {
	if !e.index.Insert(a.Key()) {
		e.inv.violated("engine.insert", "key %s already indexed", a.Key())
		return
	}
	e.byID[a.ID] = a
	e.clusters.Insert(a)
}

// removeLocal drops id from every structure, deactivating it if needed.
func (e *Engine) removeLocal(id int64) bool {
	a, ok := e.byID[id]
	if !ok {
		return false
	}
	if e.hasActive && e.active == id {
		e.deactivate()
	}
	if !e.clusters.Remove(a, e.index, e.lookup) {
		return false
	}
	e.index.Erase(a.Key())
	delete(e.byID, id)
	return true
}

func (e *Engine) lookup(id int64) (Annotation, bool) {
	a, ok := e.byID[id]
	return a, ok
}

func (e *Engine) activate(id int64) bool {
	if e.hasActive && e.active == id {
		return false
	}
	e.active, e.hasActive = id, true
	e.logger.Debug("annotation activated", slog.Int64("id", id))
	return true
}

func (e *Engine) deactivate() bool {
	if !e.hasActive {
		return false
	}
	e.logger.Debug("annotation deactivated", slog.Int64("id", e.active))
	e.active, e.hasActive = 0, false
	return true
}

// activeAnnotation resolves the active id. A dangling id is an invariant
// violation; in release mode the engine deactivates and reports none.
func (e *Engine) activeAnnotation(op string) (Annotation, bool) {
	if !e.hasActive {
		return Annotation{}, false
	}
	a, ok := e.byID[e.active]
	if !ok {
		e.inv.violated(op, "active annotation %d is not loaded", e.active)
		e.deactivate()
		return Annotation{}, false
	}
	return a, true
}

// PointerActivate handles a pointer click at pos. A click inside the cluster
// of the active annotation moves to the next member of that cluster; a click
// in any other cluster activates its first member; a click outside every
// cluster deactivates. Drags never change the active annotation.
// It reports whether the active annotation changed.
func (e *Engine) PointerActivate(pos int, isDrag bool) bool {
	if isDrag {
		return false
	}

	_, c, ok := e.clusters.At(pos)
	if !ok {
		return e.deactivate()
	}

	if act, ok := e.activeAnnotation("engine.click"); ok && c.HasKey(act.Key()) {
		next, found := e.index.LowerBound(Key{Start: act.Start, ID: act.ID + 1})
		if !found || c.Last.Less(next) {
			next = c.First
		}
		return e.activate(next.ID)
	}
	return e.activate(c.First.ID)
}

// Escape deactivates. It is a no-op when nothing is active.
func (e *Engine) Escape() bool {
	return e.deactivate()
}

// DeleteActive deletes the active annotation from the store and the engine.
// It reports false with a nil error when nothing is active. When the store
// refuses the delete the engine state is unchanged.
func (e *Engine) DeleteActive(ctx context.Context) (bool, error) {
	a, ok := e.activeAnnotation("engine.delete")
	if !ok {
		return false, nil
	}
	if err := e.store.DeleteAnnotation(ctx, a.ID); err != nil {
		return false, err
	}
	e.deactivate()
	e.removeLocal(a.ID)
	e.logger.Debug("annotation deleted", slog.String("annotation", a.String()))
	return true, nil
}

// FindNext returns the key that keyboard cycling moves to. With an active
// annotation the search starts strictly past it; otherwise it starts at
// cursor. Both directions wrap around the whole document.
func (e *Engine) FindNext(cursor int, forward bool) (Key, bool) {
	if e.index.Len() == 0 {
		return Key{}, false
	}

	act, hasActive := e.activeAnnotation("engine.find_next")

	if forward {
		start := Key{Start: cursor}
		if hasActive {
			start = Key{Start: act.Start, ID: act.ID + 1}
		}
		if k, ok := e.index.LowerBound(start); ok {
			return k, true
		}
		return e.index.First()
	}

	// Greatest key strictly below the active key, i.e. at most (start, id-1).
	probe := Key{Start: cursor}
	if hasActive {
		probe = act.Key()
	}
	if k, ok := e.index.Predecessor(probe); ok {
		return k, true
	}
	return e.index.Last()
}

// Cycle activates the next (or previous) annotation in document order.
// It reports false when the document has no annotations.
func (e *Engine) Cycle(forward bool, cursor int) (Annotation, bool) {
	k, ok := e.FindNext(cursor, forward)
	if !ok {
		return Annotation{}, false
	}
	a, ok := e.byID[k.ID]
	if !ok {
		e.inv.violated("engine.cycle", "indexed key %s has no annotation", k)
		return Annotation{}, false
	}
	e.activate(a.ID)
	return a, true
}

// ReassignLabel replaces the active annotation with an identical span carrying
// labelID. The replacement becomes active. The new span is stored before the
// old one is deleted so a failure leaves the store holding the original.
func (e *Engine) ReassignLabel(ctx context.Context, labelID int64) (Annotation, bool, error) {
	old, ok := e.activeAnnotation("engine.reassign")
	if !ok {
		return Annotation{}, false, nil
	}
	if old.LabelID == labelID {
		return old, false, nil
	}

	newID, err := e.store.AddAnnotation(ctx, labelID, old.Start, old.End)
	if err != nil {
		return Annotation{}, false, err
	}
	if err := e.store.DeleteAnnotation(ctx, old.ID); err != nil {
		if rbErr := e.store.DeleteAnnotation(ctx, newID); rbErr != nil {
			e.logger.Error("failed to roll back reassigned annotation",
				slog.Int64("id", newID),
				slog.String("error", rbErr.Error()))
		}
		return Annotation{}, false, err
	}

	n := Annotation{ID: newID, LabelID: labelID, Start: old.Start, End: old.End}
	if old.ExtraData != "" {
		if err := e.store.UpdateExtraData(ctx, newID, old.ExtraData); err != nil {
			e.logger.Warn("extra data not carried over to reassigned annotation",
				slog.Int64("id", newID),
				slog.String("error", err.Error()))
		} else {
			n.ExtraData = old.ExtraData
		}
	}

	e.removeLocal(old.ID)
	e.insertLocal(n)
	e.activate(n.ID)
	e.logger.Debug("annotation label reassigned",
		slog.Int64("old_id", old.ID),
		slog.Int64("new_id", newID),
		slog.Int64("label_id", labelID))
	return n, true, nil
}

// EditExtraData replaces the active annotation's free-form text.
// It reports false with a nil error when nothing is active.
func (e *Engine) EditExtraData(ctx context.Context, text string) (bool, error) {
	a, ok := e.activeAnnotation("engine.edit_extra")
	if !ok {
		return false, nil
	}
	if a.ExtraData == text {
		return false, nil
	}
	if err := e.store.UpdateExtraData(ctx, a.ID, text); err != nil {
		return false, err
	}
	a.ExtraData = text
	e.byID[a.ID] = a
	return true, nil
}

// ExternalDelete removes an annotation that was deleted outside the engine.
// Unknown ids are ignored.
func (e *Engine) ExternalDelete(id int64) bool {
	return e.removeLocal(id)
}

// SyncResult summarizes a reconciliation with the store.
type SyncResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Updated int `json:"updated"`
}

// Changed reports whether the sync touched anything.
func (r SyncResult) Changed() bool {
	return r.Added+r.Removed+r.Updated > 0
}

// Sync reconciles the engine with the store. Annotations that vanished go
// through the same path as a user delete, new ones through Add's insert
// path, and extra data is refreshed in place.
func (e *Engine) Sync(ctx context.Context) (SyncResult, error) {
	var res SyncResult

	anns, err := e.store.AnnotationsForOpenDocument(ctx)
	if err != nil {
		return res, spanerr.New(spanerr.ErrCodeStoreIO, "failed to sync annotations", err)
	}

	seen := make(map[int64]struct{}, len(anns))
	var added []Annotation
	for _, a := range anns {
		seen[a.ID] = struct{}{}
		cur, ok := e.byID[a.ID]
		switch {
		case !ok:
			if a.Valid() {
				added = append(added, a)
			}
		case cur.Start != a.Start || cur.End != a.End || cur.LabelID != a.LabelID:
			// Spans are immutable in the store; a changed span means the id was
			// reused for a different annotation.
			e.removeLocal(a.ID)
			added = append(added, a)
			res.Removed++
		case cur.ExtraData != a.ExtraData:
			cur.ExtraData = a.ExtraData
			e.byID[a.ID] = cur
			res.Updated++
		}
	}

	var gone []int64
	for id := range e.byID {
		if _, ok := seen[id]; !ok {
			gone = append(gone, id)
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i] < gone[j] })
	for _, id := range gone {
		if e.removeLocal(id) {
			res.Removed++
		}
	}

	sort.Slice(added, func(i, j int) bool { return added[i].Key().Less(added[j].Key()) })
	for _, a := range added {
		e.insertLocal(a)
		res.Added++
	}

	if res.Changed() {
		e.logger.Debug("annotation engine synced",
			slog.Int("added", res.Added),
			slog.Int("removed", res.Removed),
			slog.Int("updated", res.Updated))
	}
	return res, nil
}

// RenderRanges projects the current state into highlight ranges.
func (e *Engine) RenderRanges() []Range {
	var active *Annotation
	if a, ok := e.activeAnnotation("engine.render"); ok {
		active = &a
	}
	return Project(e.clusters.Clusters(), e.lookup, active)
}

// ActiveID returns the active annotation id.
func (e *Engine) ActiveID() (int64, bool) {
	return e.active, e.hasActive
}

// Active returns the active annotation.
func (e *Engine) Active() (Annotation, bool) {
	return e.activeAnnotation("engine.active")
}

// ActiveLabelID returns the label of the active annotation.
func (e *Engine) ActiveLabelID() (int64, bool) {
	a, ok := e.activeAnnotation("engine.active_label")
	return a.LabelID, ok
}

// ActiveExtraData returns the active annotation's extra data, or "".
func (e *Engine) ActiveExtraData() string {
	a, _ := e.activeAnnotation("engine.active_extra")
	return a.ExtraData
}

// Status is the summary shown in a status bar.
type Status struct {
	AnnotationCount int    `json:"annotation_count"`
	ClusterCount    int    `json:"cluster_count"`
	ActiveRange     string `json:"active_range,omitempty"`
}

// Status returns the annotation count and a description of the active range.
func (e *Engine) Status() Status {
	s := Status{
		AnnotationCount: e.index.Len(),
		ClusterCount:    e.clusters.Len(),
	}
	if a, ok := e.activeAnnotation("engine.status"); ok {
		s.ActiveRange = fmt.Sprintf("[%d, %d)", a.Start, a.End)
	}
	return s
}

// Len returns the number of loaded annotations.
func (e *Engine) Len() int {
	return e.index.Len()
}

// Annotation returns the loaded annotation with the given id.
func (e *Engine) Annotation(id int64) (Annotation, bool) {
	return e.lookup(id)
}

// Annotations returns every annotation in key order.
func (e *Engine) Annotations() []Annotation {
	keys := e.index.Keys()
	out := make([]Annotation, 0, len(keys))
	for _, k := range keys {
		if a, ok := e.byID[k.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Clusters returns the clusters ordered by start position.
func (e *Engine) Clusters() []Cluster {
	cs := e.clusters.Clusters()
	sort.Slice(cs, func(i, j int) bool { return cs[i].Start < cs[j].Start })
	return cs
}

// ClusterAt returns the cluster containing pos.
func (e *Engine) ClusterAt(pos int) (Cluster, bool) {
	_, c, ok := e.clusters.At(pos)
	return c, ok
}

// Members returns the annotations of c in key order.
func (e *Engine) Members(c Cluster) []Annotation {
	var out []Annotation
	e.index.Range(c.First, c.Last, func(k Key) bool {
		if a, ok := e.byID[k.ID]; ok {
			out = append(out, a)
		}
		return true
	})
	return out
}
