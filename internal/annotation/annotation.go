// Package annotation implements the overlap-aware annotation engine for a single
// open document: the ordered annotation index, the cluster set that partitions
// annotations into maximal overlap groups, the active-annotation state machine,
// and the render projector that turns all of it into highlight ranges.
//
// An Engine is owned by exactly one logical thread of control. Callers that
// receive events from several goroutines must serialize them (see the session
// package) before calling into the engine.
package annotation

import "fmt"

// Annotation is one labeled span of the open document.
// The span is the half-open rune interval [Start, End).
type Annotation struct {
	ID        int64  `json:"id"`
	LabelID   int64  `json:"label_id"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	ExtraData string `json:"extra_data,omitempty"`
}

// Key returns the ordering key of the annotation.
func (a Annotation) Key() Key {
	return Key{Start: a.Start, ID: a.ID}
}

// Len returns the number of characters covered by the span.
func (a Annotation) Len() int {
	return a.End - a.Start
}

// Valid reports whether the span satisfies 0 <= Start < End.
func (a Annotation) Valid() bool {
	return a.Start >= 0 && a.Start < a.End
}

// Overlaps reports whether the two spans strictly overlap.
// Touching endpoints do not overlap.
func (a Annotation) Overlaps(b Annotation) bool {
	return overlaps(a.Start, a.End, b.Start, b.End)
}

// String returns a compact representation used in logs and status lines.
func (a Annotation) String() string {
	return fmt.Sprintf("#%d[%d,%d)", a.ID, a.Start, a.End)
}

// Key orders annotations by start position, then by id.
// It defines "next" and "previous" for navigation.
type Key struct {
	Start int
	ID    int64
}

// Less reports whether k sorts before other.
func (k Key) Less(other Key) bool {
	if k.Start != other.Start {
		return k.Start < other.Start
	}
	return k.ID < other.ID
}

// Compare returns -1, 0 or +1 depending on the order of k and other.
func (k Key) Compare(other Key) int {
	switch {
	case k.Less(other):
		return -1
	case other.Less(k):
		return 1
	default:
		return 0
	}
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return fmt.Sprintf("(%d,%d)", k.Start, k.ID)
}

func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
