package ui

import (
	"strings"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
)

// SparklineChars are the eight bar heights of a density strip.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Density renders how deeply a document is annotated along its length as
// a strip of width bars. Each bar shows the maximum number of annotations
// covering any rune in its slice of the text; an empty slice is a space.
func Density(length int, anns []annotation.Annotation, width int) string {
	if width <= 0 || length <= 0 {
		return ""
	}

	// Sweep line over rune offsets: +1 at start, -1 at end.
	delta := make([]int, length+1)
	for _, a := range anns {
		s, e := max(a.Start, 0), min(a.End, length)
		if s >= e {
			continue
		}
		delta[s]++
		delta[e]--
	}

	bars := make([]int, width)
	peak, depth := 0, 0
	for i := 0; i < length; i++ {
		depth += delta[i]
		b := i * width / length
		if depth > bars[b] {
			bars[b] = depth
		}
		peak = max(peak, depth)
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	for b := 0; b < width; b++ {
		// Short documents leave some bars without any rune.
		if bars[b] == 0 {
			sb.WriteRune(' ')
			continue
		}
		idx := (bars[b]*len(SparklineChars) - 1) / peak
		sb.WriteRune(SparklineChars[min(idx, len(SparklineChars)-1)])
	}
	return sb.String()
}
