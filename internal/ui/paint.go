package ui

import (
	"github.com/Aman-CERP/spanlabel/internal/annotation"
)

// Segment is a maximal run of runes [Start, End) painted the same way.
type Segment struct {
	Start   int
	End     int
	Styled  bool
	Style   annotation.Style
	LabelID int64
}

type cell struct {
	styled bool
	style  annotation.Style
	label  int64
}

// Paint applies render ranges to a text of length runes, in emission order
// so later ranges override earlier ones, and returns the styled and
// unstyled runs covering [0, length). Ranges are clamped to the text.
func Paint(length int, ranges []annotation.Range) []Segment {
	if length <= 0 {
		return nil
	}

	cells := make([]cell, length)
	for _, r := range ranges {
		start, end := max(r.Start, 0), min(r.End, length)
		for i := start; i < end; i++ {
			cells[i] = cell{styled: true, style: r.Style, label: r.LabelID}
		}
	}

	var out []Segment
	runStart := 0
	for i := 1; i <= length; i++ {
		if i < length && cells[i] == cells[runStart] {
			continue
		}
		c := cells[runStart]
		out = append(out, Segment{Start: runStart, End: i, Styled: c.styled, Style: c.style, LabelID: c.label})
		runStart = i
	}
	return out
}

// SegmentAt returns the segment containing offset.
func SegmentAt(segments []Segment, offset int) (Segment, bool) {
	lo, hi := 0, len(segments)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case segments[mid].End <= offset:
			lo = mid + 1
		case segments[mid].Start > offset:
			hi = mid
		default:
			return segments[mid], true
		}
	}
	return Segment{}, false
}
