package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
)

// PlainDocument is everything the plain renderer needs about a document.
type PlainDocument struct {
	Name        string
	Text        string
	Ranges      []annotation.Range
	Annotations int
	Clusters    int
	LabelName   func(labelID int64) string
}

// RenderPlain writes the document with every render range bracketed, then a
// table of the ranges in emission order:
//
//	[Barack](overlap)[ Obama](active:PER) visited [Paris](LOC)
func RenderPlain(w io.Writer, doc PlainDocument) error {
	text := []rune(doc.Text)
	name := doc.LabelName
	if name == nil {
		name = func(id int64) string { return fmt.Sprintf("#%d", id) }
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d chars, %d annotations, %d clusters)\n\n",
		doc.Name, len(text), doc.Annotations, doc.Clusters)

	for _, seg := range Paint(len(text), doc.Ranges) {
		chunk := string(text[seg.Start:seg.End])
		if !seg.Styled {
			b.WriteString(chunk)
			continue
		}
		fmt.Fprintf(&b, "[%s](%s)", chunk, tag(seg.Style, seg.LabelID, name))
	}
	if len(text) == 0 || text[len(text)-1] != '\n' {
		b.WriteByte('\n')
	}

	if len(doc.Ranges) > 0 {
		b.WriteString("\nranges:\n")
		tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		for _, r := range doc.Ranges {
			label := ""
			if r.Style != annotation.StyleOverlap {
				label = name(r.LabelID)
			}
			fmt.Fprintf(tw, "  [%d, %d)\t%s\t%s\n", r.Start, r.End, r.Style, label)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func tag(style annotation.Style, labelID int64, name func(int64) string) string {
	switch style {
	case annotation.StyleOverlap:
		return "overlap"
	case annotation.StyleActive:
		return "active:" + name(labelID)
	default:
		return name(labelID)
	}
}
