package ui

import (
	"github.com/mattn/go-runewidth"
)

// Line is one screen row of wrapped text: runes [Start, End) of the document.
// A trailing newline belongs to the line but is not drawn.
type Line struct {
	Start int
	End   int
}

// Layout wraps document text to a width and maps between rune offsets and
// screen cells.
type Layout struct {
	text  []rune
	width int
	lines []Line
}

// NewLayout wraps text at width display cells, preferring to break after a
// space. Width <= 0 disables wrapping.
func NewLayout(text []rune, width int) *Layout {
	l := &Layout{text: text, width: width}
	l.wrap()
	return l
}

// RuneWidth is the number of cells a document rune occupies. Control runes
// take one cell and are drawn as spaces so offsets and cells stay aligned.
func RuneWidth(r rune) int {
	if r < 0x20 || r == 0x7f {
		return 1
	}
	if w := runewidth.RuneWidth(r); w > 0 {
		return w
	}
	return 1
}

func (l *Layout) wrap() {
	start, cols, lastSpace := 0, 0, -1
	for i := 0; i < len(l.text); i++ {
		r := l.text[i]
		if r == '\n' {
			l.lines = append(l.lines, Line{Start: start, End: i + 1})
			start, cols, lastSpace = i+1, 0, -1
			continue
		}

		w := RuneWidth(r)
		if l.width > 0 && cols+w > l.width && i > start {
			breakAt := i
			if lastSpace >= start && lastSpace+1 < i {
				breakAt = lastSpace + 1
			}
			l.lines = append(l.lines, Line{Start: start, End: breakAt})
			start, lastSpace = breakAt, -1
			cols = 0
			for j := start; j < i; j++ {
				cols += RuneWidth(l.text[j])
				if l.text[j] == ' ' {
					lastSpace = j
				}
			}
		}
		if r == ' ' {
			lastSpace = i
		}
		cols += w
	}
	l.lines = append(l.lines, Line{Start: start, End: len(l.text)})
}

// Lines returns the wrapped rows.
func (l *Layout) Lines() []Line {
	return l.lines
}

// Len is the text length in runes.
func (l *Layout) Len() int {
	return len(l.text)
}

// Width is the wrap width.
func (l *Layout) Width() int {
	return l.width
}

// visibleEnd excludes a trailing newline.
func (l *Layout) visibleEnd(ln Line) int {
	if ln.End > ln.Start && l.text[ln.End-1] == '\n' {
		return ln.End - 1
	}
	return ln.End
}

// OffsetAt maps a screen cell to the rune drawn there. ok is false past the
// end of the row or outside the text.
func (l *Layout) OffsetAt(row, col int) (int, bool) {
	if row < 0 || row >= len(l.lines) || col < 0 {
		return 0, false
	}
	ln := l.lines[row]
	x := 0
	for i := ln.Start; i < l.visibleEnd(ln); i++ {
		w := RuneWidth(l.text[i])
		if col < x+w {
			return i, true
		}
		x += w
	}
	return 0, false
}

// CaretAt maps a screen cell to a caret position, clamping to the row.
func (l *Layout) CaretAt(row, col int) int {
	row = min(max(row, 0), len(l.lines)-1)
	if off, ok := l.OffsetAt(row, col); ok {
		return off
	}
	return l.visibleEnd(l.lines[row])
}

// Position returns the row and column of the caret at offset.
func (l *Layout) Position(offset int) (row, col int) {
	offset = min(max(offset, 0), len(l.text))
	row = l.rowOf(offset)
	ln := l.lines[row]
	for i := ln.Start; i < offset; i++ {
		col += RuneWidth(l.text[i])
	}
	return row, col
}

// rowOf finds the row holding offset; an offset at a soft wrap belongs to
// the next row.
func (l *Layout) rowOf(offset int) int {
	lo, hi := 0, len(l.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if l.lines[mid].Start <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
