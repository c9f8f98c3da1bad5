package annotation

import (
	"context"
	"fmt"
)

// Event is a user or store notification handled by Engine.Dispatch.
// The set of events is closed.
type Event interface {
	event()
}

// Click is a pointer press/release at rune offset Pos. Drag is set when the
// press and release landed on different offsets.
type Click struct {
	Pos  int
	Drag bool
}

// Escape clears the active annotation.
type Escape struct{}

// Delete deletes the active annotation.
type Delete struct{}

// Cycle moves to the next or previous annotation in document order.
// Cursor is used only when nothing is active.
type Cycle struct {
	Forward bool
	Cursor  int
}

// Reassign changes the label of the active annotation.
type Reassign struct {
	LabelID int64
}

// EditExtraData replaces the extra data of the active annotation.
type EditExtraData struct {
	Text string
}

// DocumentChanged discards everything and reloads from the store.
type DocumentChanged struct{}

// ExternalDelete reports an annotation deleted outside the engine.
type ExternalDelete struct {
	ID int64
}

func (Click) event()           {}
func (Escape) event()          {}
func (Delete) event()          {}
func (Cycle) event()           {}
func (Reassign) event()        {}
func (EditExtraData) event()   {}
func (DocumentChanged) event() {}
func (ExternalDelete) event()  {}

// Result is the outcome of dispatching one event.
type Result struct {
	// Changed is set when the event altered the annotations or the active one.
	Changed   bool
	Active    Annotation
	HasActive bool
}

// Dispatch handles ev synchronously. Events must be delivered in arrival
// order from a single goroutine.
func (e *Engine) Dispatch(ctx context.Context, ev Event) (Result, error) {
	var (
		changed bool
		err     error
	)

	switch ev := ev.(type) {
	case Click:
		changed = e.PointerActivate(ev.Pos, ev.Drag)
	case Escape:
		changed = e.Escape()
	case Delete:
		changed, err = e.DeleteActive(ctx)
	case Cycle:
		before, had := e.ActiveID()
		var a Annotation
		a, changed = e.Cycle(ev.Forward, ev.Cursor)
		changed = changed && (!had || before != a.ID)
	case Reassign:
		_, changed, err = e.ReassignLabel(ctx, ev.LabelID)
	case EditExtraData:
		changed, err = e.EditExtraData(ctx, ev.Text)
	case DocumentChanged:
		err = e.Load(ctx)
		changed = err == nil
	case ExternalDelete:
		changed = e.ExternalDelete(ev.ID)
	default:
		panic(fmt.Sprintf("annotation: unhandled event %T", ev))
	}

	res := Result{Changed: changed}
	res.Active, res.HasActive = e.Active()
	return res, err
}
