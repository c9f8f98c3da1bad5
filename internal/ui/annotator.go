package ui

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
	"github.com/Aman-CERP/spanlabel/internal/session"
	"github.com/Aman-CERP/spanlabel/internal/store"
)

const (
	headerHeight = 1
	footerHeight = 2
	wheelStep    = 3

	// lineEnd is a column past the end of any row.
	lineEnd = 1 << 30
)

// SyncedMsg reports that the engine was reconciled with the store after a
// change made outside this program.
type SyncedMsg struct {
	Result annotation.SyncResult
	Err    error
}

// AnnotatorConfig configures the annotator.
type AnnotatorConfig struct {
	Session *session.Session
	Labels  []store.Label
	Theme   *Theme
	NoColor bool

	// WrapWidth fixes the text width; 0 follows the terminal.
	WrapWidth int
}

// Annotator is the bubbletea model of the interactive annotator.
type Annotator struct {
	ctx    context.Context
	sess   *session.Session
	doc    store.Document
	text   []rune
	labels []store.Label
	names  map[int64]string
	label  int

	theme     *Theme
	styles    Styles
	wrapWidth int
	layout    *Layout
	viewport  viewport.Model
	input     textinput.Model
	editing   bool

	ranges   []annotation.Range
	segments []Segment
	status   annotation.Status
	active   annotation.Annotation
	isActive bool

	cursor   int
	anchor   int // selection anchor, -1 when nothing is selected
	press    int
	pressing bool

	message  string
	failed   bool
	width    int
	height   int
	quitting bool
}

// NewAnnotator builds the model for the session's document.
func NewAnnotator(ctx context.Context, cfg AnnotatorConfig) *Annotator {
	doc := cfg.Session.Document()
	theme := cfg.Theme
	if theme == nil {
		theme = NewTheme(cfg.NoColor, "", func(int64) string { return ColorGray })
	}

	input := textinput.New()
	input.Prompt = "note: "
	input.Placeholder = "extra data"
	input.CharLimit = 4096

	m := &Annotator{
		ctx:       ctx,
		sess:      cfg.Session,
		doc:       doc,
		text:      []rune(doc.Content),
		labels:    cfg.Labels,
		names:     make(map[int64]string, len(cfg.Labels)),
		theme:     theme,
		styles:    GetStyles(cfg.NoColor),
		wrapWidth: cfg.WrapWidth,
		viewport:  viewport.New(80, 24-headerHeight-footerHeight),
		input:     input,
		anchor:    -1,
		width:     80,
		height:    24,
	}
	for _, l := range cfg.Labels {
		m.names[l.ID] = l.Name
	}
	m.cursor = min(max(cfg.Session.Cursor(), 0), len(m.text))
	m.relayout()
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Annotator) Init() tea.Cmd {
	return nil
}

// Cursor returns the caret offset.
func (m *Annotator) Cursor() int {
	return m.cursor
}

// Selection returns the selected span, if any.
func (m *Annotator) Selection() (start, end int, ok bool) {
	if m.anchor < 0 || m.anchor == m.cursor {
		return 0, 0, false
	}
	return min(m.anchor, m.cursor), max(m.anchor, m.cursor), true
}

// Message returns the last status message.
func (m *Annotator) Message() string {
	return m.message
}

// CurrentLabel returns the label new annotations get.
func (m *Annotator) CurrentLabel() (store.Label, bool) {
	if len(m.labels) == 0 {
		return store.Label{}, false
	}
	return m.labels[m.label], true
}

// Update implements tea.Model.
func (m *Annotator) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.relayout()
		m.render()
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateKey(msg)

	case tea.MouseMsg:
		m.updateMouse(msg)
		return m, nil

	case SyncedMsg:
		m.onSynced(msg)
		return m, nil
	}
	return m, nil
}

func (m *Annotator) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c", "q":
		m.quitting = true
		m.sess.SetCursor(m.cursor)
		return m, tea.Quit

	case "left", "right", "up", "down", "home", "end":
		m.anchor = -1
		m.move(key)
	case "shift+left", "shift+right", "shift+up", "shift+down", "shift+home", "shift+end":
		if m.anchor < 0 {
			m.anchor = m.cursor
		}
		m.move(strings.TrimPrefix(key, "shift+"))
	case "pgup":
		m.viewport.SetYOffset(m.viewport.YOffset - m.viewport.Height)
	case "pgdown":
		m.viewport.SetYOffset(m.viewport.YOffset + m.viewport.Height)

	case "enter":
		m.dispatch(annotation.Click{Pos: m.cursor})
	case "tab":
		m.cycle(true)
	case "shift+tab":
		m.cycle(false)
	case "esc":
		if m.anchor >= 0 {
			m.anchor = -1
			break
		}
		m.dispatch(annotation.Escape{})
	case "x", "delete":
		if !m.isActive {
			m.note("nothing active to delete")
			break
		}
		m.dispatch(annotation.Delete{})
	case "a":
		m.annotateSelection()
	case "e":
		if !m.isActive {
			m.note("activate an annotation to edit its note")
			break
		}
		m.editing = true
		m.input.SetValue(m.active.ExtraData)
		m.input.CursorEnd()
		m.render()
		return m, m.input.Focus()
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.pickLabel(int(key[0] - '1'))
	}

	m.render()
	return m, nil
}

func (m *Annotator) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		m.sess.SetCursor(m.cursor)
		return m, tea.Quit
	case "enter":
		m.editing = false
		m.input.Blur()
		m.dispatch(annotation.EditExtraData{Text: m.input.Value()})
		m.render()
		return m, nil
	case "esc":
		m.editing = false
		m.input.Blur()
		m.note("edit canceled")
		m.render()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Annotator) updateMouse(msg tea.MouseMsg) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.SetYOffset(m.viewport.YOffset - wheelStep)
		return
	case tea.MouseButtonWheelDown:
		m.viewport.SetYOffset(m.viewport.YOffset + wheelStep)
		return
	}

	row := msg.Y - headerHeight + m.viewport.YOffset
	inText := msg.Y >= headerHeight && msg.Y < headerHeight+m.viewport.Height

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !inText || m.editing {
			return
		}
		m.press, _ = m.pointerOffset(row, msg.X)
		m.pressing = true
		m.anchor = -1
		m.cursor = m.press

	case tea.MouseActionMotion:
		if !m.pressing {
			return
		}
		m.drag(m.pointerOffset(row, msg.X))

	case tea.MouseActionRelease:
		if !m.pressing {
			return
		}
		m.pressing = false
		off, onText := m.pointerOffset(row, msg.X)
		if off == m.press {
			m.anchor = -1
			m.cursor = off
			if !onText {
				off = -1
			}
			m.dispatch(annotation.Click{Pos: off})
		} else {
			m.drag(off, onText)
			m.dispatch(annotation.Click{Pos: off, Drag: true})
		}
	}
	m.render()
}

// drag selects from the pressed rune through the rune at off, inclusive.
func (m *Annotator) drag(off int, onText bool) {
	if off >= m.press {
		m.anchor, m.cursor = m.press, off
		if onText {
			m.cursor++
		}
		return
	}
	m.anchor, m.cursor = min(m.press+1, len(m.text)), off
}

// pointerOffset returns the rune under a screen cell, or the nearest caret
// position when the cell is past the end of the row.
func (m *Annotator) pointerOffset(row, col int) (int, bool) {
	if off, ok := m.layout.OffsetAt(row, col); ok {
		return off, true
	}
	return m.layout.CaretAt(row, col), false
}

func (m *Annotator) move(dir string) {
	row, col := m.layout.Position(m.cursor)
	switch dir {
	case "left":
		m.cursor = max(m.cursor-1, 0)
	case "right":
		m.cursor = min(m.cursor+1, len(m.text))
	case "up":
		m.cursor = m.layout.CaretAt(row-1, col)
	case "down":
		m.cursor = m.layout.CaretAt(row+1, col)
	case "home":
		m.cursor = m.layout.CaretAt(row, 0)
	case "end":
		m.cursor = m.layout.CaretAt(row, lineEnd)
	}
	m.ensureVisible()
}

func (m *Annotator) cycle(forward bool) {
	if m.status.AnnotationCount == 0 {
		m.note("no annotations yet")
		return
	}
	res, ok := m.dispatch(annotation.Cycle{Forward: forward, Cursor: m.cursor})
	if ok && res.HasActive {
		m.anchor = -1
		m.cursor = res.Active.Start
		m.ensureVisible()
	}
}

func (m *Annotator) annotateSelection() {
	lbl, ok := m.CurrentLabel()
	if !ok {
		m.fail("no labels; add one with: spanlabel label add <name>")
		return
	}
	start, end, ok := m.Selection()
	if !ok {
		m.note("select a span first (shift+arrows or drag)")
		return
	}

	err := m.sess.Do(func(e *annotation.Engine) error {
		_, err := e.Add(m.ctx, lbl.ID, start, end)
		return err
	})
	if err != nil {
		m.fail(errText(err))
		return
	}
	m.anchor = -1
	m.note(fmt.Sprintf("added %s [%d, %d)", lbl.Name, start, end))
	m.refresh()
}

func (m *Annotator) pickLabel(i int) {
	if i >= len(m.labels) {
		m.note(fmt.Sprintf("no label %d", i+1))
		return
	}
	m.label = i
	if !m.isActive {
		m.note("label: " + m.labels[i].Name)
		return
	}
	if _, ok := m.dispatch(annotation.Reassign{LabelID: m.labels[i].ID}); ok {
		m.note("relabeled as " + m.labels[i].Name)
	}
}

// dispatch sends ev to the engine and refreshes the view state. ok is false
// when the engine reported an error, which is shown in the status line.
func (m *Annotator) dispatch(ev annotation.Event) (annotation.Result, bool) {
	res, err := m.sess.Dispatch(m.ctx, ev)
	m.refresh()
	if err != nil {
		m.fail(errText(err))
		return res, false
	}
	return res, true
}

func (m *Annotator) onSynced(msg SyncedMsg) {
	m.refresh()
	switch {
	case spanerr.HasCode(msg.Err, spanerr.ErrCodeDocumentNotFound):
		m.fail("document was deleted by another process")
	case msg.Err != nil:
		m.fail(errText(msg.Err))
	case msg.Result.Changed():
		m.note(fmt.Sprintf("synced: +%d -%d ~%d", msg.Result.Added, msg.Result.Removed, msg.Result.Updated))
	}
	m.render()
}

func (m *Annotator) note(s string) {
	m.message, m.failed = s, false
}

func (m *Annotator) fail(s string) {
	m.message, m.failed = s, true
}

// refresh pulls ranges and status out of the engine.
func (m *Annotator) refresh() {
	_ = m.sess.Do(func(e *annotation.Engine) error {
		m.ranges = e.RenderRanges()
		m.status = e.Status()
		m.active, m.isActive = e.Active()
		return nil
	})
	m.segments = Paint(len(m.text), m.ranges)
	m.render()
}

func (m *Annotator) relayout() {
	width := m.width
	if m.wrapWidth > 0 && m.wrapWidth < width {
		width = m.wrapWidth
	}
	m.layout = NewLayout(m.text, max(width-1, 1))
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-headerHeight-footerHeight, 1)
	m.ensureVisible()
}

func (m *Annotator) ensureVisible() {
	row, _ := m.layout.Position(m.cursor)
	switch {
	case row < m.viewport.YOffset:
		m.viewport.SetYOffset(row)
	case row >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(row - m.viewport.Height + 1)
	}
}

// render rebuilds the viewport content. The viewport keeps its offset.
func (m *Annotator) render() {
	if m.layout == nil {
		return
	}
	offset := m.viewport.YOffset
	lines := m.layout.Lines()
	cursorRow, _ := m.layout.Position(m.cursor)
	out := make([]string, len(lines))
	for i, ln := range lines {
		out[i] = m.renderLine(ln, i == cursorRow)
	}
	m.viewport.SetContent(strings.Join(out, "\n"))
	m.viewport.SetYOffset(offset)
}

type drawKind int

const (
	drawPlain drawKind = iota
	drawSegment
	drawSelect
	drawCursor
)

type drawKey struct {
	kind  drawKind
	style annotation.Style
	label int64
}

func (m *Annotator) styleOf(k drawKey) (lipgloss.Style, bool) {
	switch k.kind {
	case drawSegment:
		return m.theme.Style(k.style, k.label), true
	case drawSelect:
		return m.styles.Select, true
	case drawCursor:
		return m.styles.Cursor, true
	default:
		return lipgloss.Style{}, false
	}
}

func (m *Annotator) keyAt(i int) drawKey {
	if i == m.cursor && !m.editing {
		return drawKey{kind: drawCursor}
	}
	if s, e, ok := m.Selection(); ok && i >= s && i < e {
		return drawKey{kind: drawSelect}
	}
	if seg, ok := SegmentAt(m.segments, i); ok && seg.Styled {
		return drawKey{kind: drawSegment, style: seg.Style, label: seg.LabelID}
	}
	return drawKey{kind: drawPlain}
}

func (m *Annotator) renderLine(ln Line, hasCursor bool) string {
	var (
		b   strings.Builder
		run []rune
		cur drawKey
	)
	flush := func() {
		if len(run) == 0 {
			return
		}
		if st, ok := m.styleOf(cur); ok {
			b.WriteString(st.Render(string(run)))
		} else {
			b.WriteString(string(run))
		}
		run = run[:0]
	}

	end := m.layout.visibleEnd(ln)
	for i := ln.Start; i < end; i++ {
		k := m.keyAt(i)
		if k != cur {
			flush()
			cur = k
		}
		r := m.text[i]
		if r < 0x20 || r == 0x7f {
			r = ' '
		}
		run = append(run, r)
	}
	flush()

	if hasCursor && m.cursor == end && !m.editing {
		b.WriteString(m.styles.Cursor.Render(" "))
	}
	return b.String()
}

// View implements tea.Model.
func (m *Annotator) View() string {
	if m.quitting {
		return ""
	}
	return m.header() + "\n" + m.viewport.View() + "\n" + m.statusLine() + "\n" + m.footer()
}

func (m *Annotator) header() string {
	title := m.styles.Header.Render("spanlabel") + " " + m.doc.Name
	if lbl, ok := m.CurrentLabel(); ok {
		title += "  " + m.styles.Label.Render("label:") + " " + m.theme.Style(annotation.StyleLabel, lbl.ID).Render(lbl.Name)
	}
	return title
}

func (m *Annotator) statusLine() string {
	parts := []string{fmt.Sprintf("%d annotations, %d clusters", m.status.AnnotationCount, m.status.ClusterCount)}
	if m.isActive {
		act := fmt.Sprintf("active %s %s", m.status.ActiveRange, m.labelName(m.active.LabelID))
		if m.active.ExtraData != "" {
			act += fmt.Sprintf(" %q", m.active.ExtraData)
		}
		parts = append(parts, act)
	}
	if s, e, ok := m.Selection(); ok {
		parts = append(parts, fmt.Sprintf("selected [%d, %d)", s, e))
	}
	line := m.styles.Status.Render(strings.Join(parts, "  •  "))
	if m.message != "" {
		style := m.styles.Success
		if m.failed {
			style = m.styles.Error
		}
		line += "  " + style.Render(m.message)
	}
	return line
}

func (m *Annotator) footer() string {
	if m.editing {
		return m.input.View()
	}
	return m.styles.Dim.Render("arrows move • shift+arrows select • enter click • a annotate • tab cycle • 1-9 label • e note • x delete • esc clear • q quit")
}

func (m *Annotator) labelName(id int64) string {
	if n, ok := m.names[id]; ok {
		return n
	}
	return fmt.Sprintf("#%d", id)
}

func errText(err error) string {
	var se *spanerr.SpanError
	if stderrors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

// NewProgram wraps the annotator in a full-screen program with mouse
// reporting. Send SyncedMsg to it from a watcher goroutine.
func NewProgram(ctx context.Context, m *Annotator, in io.Reader, out io.Writer) *tea.Program {
	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}
	return tea.NewProgram(m, opts...)
}

// SyncNotifier returns a callback that forwards sync outcomes to p.
func SyncNotifier(p *tea.Program) func(annotation.SyncResult, error) {
	return func(res annotation.SyncResult, err error) {
		p.Send(SyncedMsg{Result: res, Err: err})
	}
}
