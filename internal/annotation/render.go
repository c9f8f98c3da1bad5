package annotation

import "sort"

// Style selects how a render range is highlighted.
type Style int

const (
	// StyleLabel paints a lone, inactive annotation in its label color.
	StyleLabel Style = iota
	// StyleOverlap paints a region where two or more annotations overlap.
	StyleOverlap
	// StyleActive paints the active annotation. It must win over the others.
	StyleActive
)

// String returns the style name.
func (s Style) String() string {
	switch s {
	case StyleLabel:
		return "label"
	case StyleOverlap:
		return "overlap"
	case StyleActive:
		return "active"
	default:
		return "unknown"
	}
}

// Range is one highlighted sub-range of the document. LabelID is set for
// StyleLabel and StyleActive ranges and zero for StyleOverlap.
type Range struct {
	Start   int   `json:"start"`
	End     int   `json:"end"`
	Style   Style `json:"style"`
	LabelID int64 `json:"label_id,omitempty"`
}

// Project computes the highlight ranges for the given clusters and active
// annotation. Cluster ranges come first in ascending position, the active
// range last, so a display that paints in order lets the active style win.
func Project(clusters []Cluster, lookup func(id int64) (Annotation, bool), active *Annotation) []Range {
	ranges := make([]Range, 0, len(clusters)+2)

	for _, c := range clusters {
		activeHere := active != nil && c.HasKey(active.Key())

		if c.Singleton() {
			if activeHere {
				continue
			}
			member, ok := lookup(c.First.ID)
			if !ok {
				continue
			}
			ranges = append(ranges, Range{Start: c.Start, End: c.End, Style: StyleLabel, LabelID: member.LabelID})
			continue
		}

		if !activeHere {
			ranges = append(ranges, Range{Start: c.Start, End: c.End, Style: StyleOverlap})
			continue
		}
		if c.Start < active.Start {
			ranges = append(ranges, Range{Start: c.Start, End: active.Start, Style: StyleOverlap})
		}
		if active.End < c.End {
			ranges = append(ranges, Range{Start: active.End, End: c.End, Style: StyleOverlap})
		}
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	if active != nil {
		ranges = append(ranges, Range{Start: active.Start, End: active.End, Style: StyleActive, LabelID: active.LabelID})
	}
	return ranges
}
