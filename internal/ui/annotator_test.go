package ui

import (
	"context"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
	"github.com/Aman-CERP/spanlabel/internal/session"
	"github.com/Aman-CERP/spanlabel/internal/store"
	"github.com/Aman-CERP/spanlabel/internal/store/storetest"
)

type fixture struct {
	store *store.SQLiteStore
	sess  *session.Session
	doc   store.Document
	per   store.Label
	loc   store.Label
	m     *Annotator
}

// newFixture opens "Barack Obama visited Paris" with PER [0,12) id 1,
// PER [7,12) id 2 and LOC [21,26) id 3.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st := storetest.New(t)
	f := &fixture{store: st}
	f.per = storetest.Label(t, st, "PER", "#ff0000")
	f.loc = storetest.Label(t, st, "LOC", "#00ff00")
	f.doc = storetest.Document(t, st, "news", "Barack Obama visited Paris")
	storetest.Annotate(t, st, f.doc.ID, f.per.ID, 0, 12)
	storetest.Annotate(t, st, f.doc.ID, f.per.ID, 7, 12)
	storetest.Annotate(t, st, f.doc.ID, f.loc.ID, 21, 26)

	mgr, err := session.NewManager(st, session.ManagerConfig{
		Project:          "/projects/demo",
		StrictInvariants: true,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	f.sess, err = mgr.Open(ctx, "news")
	require.NoError(t, err)

	f.m = NewAnnotator(ctx, AnnotatorConfig{
		Session: f.sess,
		Labels:  []store.Label{f.per, f.loc},
		NoColor: true,
	})
	return f
}

func (f *fixture) send(msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = f.m.Update(msg)
	}
	return cmd
}

func (f *fixture) active(t *testing.T) (annotation.Annotation, bool) {
	t.Helper()
	var (
		a  annotation.Annotation
		ok bool
	)
	require.NoError(t, f.sess.Do(func(e *annotation.Engine) error {
		a, ok = e.Active()
		return nil
	}))
	return a, ok
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n := 0
	require.NoError(t, f.sess.Do(func(e *annotation.Engine) error {
		n = e.Len()
		return nil
	}))
	return n
}

func key(name string) tea.KeyMsg {
	switch name {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "delete":
		return tea.KeyMsg{Type: tea.KeyDelete}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "shift+right":
		return tea.KeyMsg{Type: tea.KeyShiftRight}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(name)}
	}
}

// mouse returns a press and release on text row 0 (screen row 1).
func click(x int) []tea.Msg {
	return []tea.Msg{
		tea.MouseMsg{X: x, Y: headerHeight, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: x, Y: headerHeight, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft},
	}
}

func TestAnnotator_TabCyclesInDocumentOrder(t *testing.T) {
	f := newFixture(t)

	steps := []struct {
		key        string
		wantID     int64
		wantCursor int
	}{
		{"tab", 1, 0},
		{"tab", 2, 7},
		{"tab", 3, 21},
		{"tab", 1, 0},
		{"shift+tab", 3, 21},
	}

	for _, step := range steps {
		f.send(key(step.key))

		a, ok := f.active(t)
		require.True(t, ok, step.key)
		assert.Equal(t, step.wantID, a.ID, step.key)
		assert.Equal(t, step.wantCursor, f.m.Cursor(), step.key)
	}

	// Then: esc clears the active annotation
	f.send(key("esc"))
	_, ok := f.active(t)
	assert.False(t, ok)
}

func TestAnnotator_MouseClicks(t *testing.T) {
	// Given: the annotator at its default size, so the text is one row
	f := newFixture(t)

	// When: clicking inside the PER cluster twice
	f.send(click(8)...)
	first, ok := f.active(t)
	require.True(t, ok)
	f.send(click(8)...)
	second, _ := f.active(t)

	// Then: the first click activates the first member, the second cycles
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, 8, f.m.Cursor())

	// When: clicking plain text
	f.send(click(15)...)

	// Then: nothing is active
	_, ok = f.active(t)
	assert.False(t, ok)
}

func TestAnnotator_ClickOnHeaderIsIgnored(t *testing.T) {
	f := newFixture(t)

	f.send(
		tea.MouseMsg{X: 2, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: 2, Y: 0, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft},
	)

	_, ok := f.active(t)
	assert.False(t, ok)
}

func TestAnnotator_DragSelectsAndAnnotates(t *testing.T) {
	f := newFixture(t)

	// When: dragging from "v" to "d" of "visited"
	f.send(
		tea.MouseMsg{X: 13, Y: headerHeight, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: 16, Y: headerHeight, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: 19, Y: headerHeight, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft},
	)

	// Then: the word is selected and nothing was activated
	start, end, ok := f.m.Selection()
	require.True(t, ok)
	assert.Equal(t, 13, start)
	assert.Equal(t, 20, end)
	_, active := f.active(t)
	assert.False(t, active)

	// When: annotating the selection with the current label
	f.send(key("a"))

	// Then: a PER span is stored and the selection is cleared
	assert.Equal(t, 4, f.count(t))
	assert.Equal(t, "added PER [13, 20)", f.m.Message())
	_, _, ok = f.m.Selection()
	assert.False(t, ok)
}

func TestAnnotator_KeyboardSelection(t *testing.T) {
	f := newFixture(t)

	// Given: no selection yet
	f.send(key("a"))
	assert.Contains(t, f.m.Message(), "select a span first")

	// When: selecting six runes, switching to LOC and annotating
	for i := 0; i < 6; i++ {
		f.send(key("shift+right"))
	}
	f.send(key("2"), key("a"))

	// Then: the new span joins the PER cluster
	assert.Equal(t, 4, f.count(t))
	lbl, ok := f.m.CurrentLabel()
	require.True(t, ok)
	assert.Equal(t, "LOC", lbl.Name)
	assert.Equal(t, "added LOC [0, 6)", f.m.Message())
	assert.Contains(t, f.m.View(), "4 annotations, 2 clusters")
}

func TestAnnotator_DuplicateSpanIsReported(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 12; i++ {
		f.send(key("shift+right"))
	}
	f.send(key("a"))

	assert.Equal(t, 3, f.count(t))
	assert.NotEmpty(t, f.m.Message())
	assert.NotContains(t, f.m.Message(), "added")
}

func TestAnnotator_ReassignAndDelete(t *testing.T) {
	f := newFixture(t)
	f.send(key("tab"))

	// When: relabeling the active span as LOC
	f.send(key("2"))

	// Then: a new annotation with a new id is active
	a, ok := f.active(t)
	require.True(t, ok)
	assert.Equal(t, f.loc.ID, a.LabelID)
	assert.Equal(t, int64(4), a.ID)
	assert.Equal(t, "relabeled as LOC", f.m.Message())

	// When: deleting it
	f.send(key("x"))

	// Then: it is gone and nothing is active
	_, ok = f.active(t)
	assert.False(t, ok)
	assert.Equal(t, 2, f.count(t))

	// And: delete with nothing active only explains itself
	f.send(key("delete"))
	assert.Equal(t, 2, f.count(t))
	assert.Equal(t, "nothing active to delete", f.m.Message())
}

func TestAnnotator_EditExtraData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Given: no active annotation, e does nothing
	f.send(key("e"))
	assert.False(t, f.m.editing)

	// When: activating, typing a note and committing it
	f.send(key("tab"), key("e"))
	require.True(t, f.m.editing)
	f.send(key("c"), key("e"), key("o"), key("enter"))

	// Then: the note is stored
	assert.False(t, f.m.editing)
	a, _, err := f.store.AnnotationByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ceo", a.ExtraData)
	assert.Contains(t, f.m.View(), `"ceo"`)

	// When: editing again but canceling
	f.send(key("e"), key("x"), key("esc"))

	// Then: nothing changed and the x was typed, not a delete
	a, _, err = f.store.AnnotationByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ceo", a.ExtraData)
	assert.Equal(t, 3, f.count(t))
}

func TestAnnotator_EnterClicksAtCursor(t *testing.T) {
	f := newFixture(t)

	f.send(key("right"), key("right"), key("enter"))

	a, ok := f.active(t)
	require.True(t, ok)
	assert.Equal(t, int64(1), a.ID)
}

func TestAnnotator_WindowResizeWraps(t *testing.T) {
	f := newFixture(t)

	// When: the terminal is ten cells wide
	f.send(tea.WindowSizeMsg{Width: 10, Height: 6})

	// Then: down moves to the start of the second row
	f.send(key("down"))
	assert.Equal(t, 7, f.m.Cursor())
}

func TestAnnotator_SyncedMsg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Given: another process adds an annotation
	storetest.Annotate(t, f.store, f.doc.ID, f.loc.ID, 14, 20)
	res, err := f.sess.Sync(ctx)
	require.NoError(t, err)

	// When: the watcher reports the sync
	f.send(SyncedMsg{Result: res})

	// Then: the view reflects it
	assert.Equal(t, "synced: +1 -0 ~0", f.m.Message())
	assert.Contains(t, f.m.View(), "4 annotations, 3 clusters")

	// When: the document disappears
	f.send(SyncedMsg{Err: spanerr.NotFound(spanerr.ErrCodeDocumentNotFound, "document 1")})

	// Then: the user is told
	assert.Equal(t, "document was deleted by another process", f.m.Message())
}

func TestAnnotator_QuitSavesCursor(t *testing.T) {
	f := newFixture(t)

	cmd := f.send(key("right"), key("right"), key("right"), key("q"))

	assert.NotNil(t, cmd)
	assert.Equal(t, 3, f.sess.Cursor())
	assert.Empty(t, f.m.View())
}

func TestAnnotator_View(t *testing.T) {
	f := newFixture(t)

	view := f.m.View()

	assert.Contains(t, view, "news")
	assert.Contains(t, view, "label: PER")
	assert.Contains(t, view, "Barack Obama visited Paris")
	assert.Contains(t, view, "3 annotations, 2 clusters")
	assert.Contains(t, view, "q quit")
}
