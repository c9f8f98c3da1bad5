package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

func TestWriter_Messages(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Successf("Added document %q", "news") }, "✅ Added document \"news\"\n"},
		{"warning", func(w *Writer) { w.Warningf("%d spans skipped", 2) }, "⚠️  2 spans skipped\n"},
		{"hint", func(w *Writer) { w.Hint("Run spanlabel annotate news") }, "💡 Run spanlabel annotate news\n"},
		{"status with icon", func(w *Writer) { w.Statusf("📁", "Location: %s", "/tmp/x") }, "📁 Location: /tmp/x\n"},
		{"status without icon is indented", func(w *Writer) { w.Status("", "detail") }, "   detail\n"},
		{"newline", func(w *Writer) { w.Newline() }, "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a writer over a buffer
			buf := &bytes.Buffer{}

			// When: writing the message
			tt.write(New(buf))

			// Then: it is formatted with its icon
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Fail(t *testing.T) {
	// Given: a span error with a suggestion
	buf := &bytes.Buffer{}
	err := spanerr.NotFound(spanerr.ErrCodeLabelNotFound, `label "ORG"`).
		WithSuggestion("Create it with 'spanlabel label add ORG'")

	// When: reporting it
	New(buf).Fail(err)

	// Then: message, hint and code are on separate lines
	assert.Equal(t,
		"❌ label \"ORG\" not found\n"+
			"   Hint: Create it with 'spanlabel label add ORG'\n"+
			"   Code: ERR_206_LABEL_NOT_FOUND\n",
		buf.String())
}

func TestWriter_Fail_PlainError(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Fail(errors.New("disk on fire"))
	New(buf).Fail(nil)

	assert.Contains(t, buf.String(), "❌ disk on fire\n")
	assert.Contains(t, buf.String(), "Code: ERR_501_INTERNAL")
}

func TestCount(t *testing.T) {
	assert.Equal(t, "0 annotations", Count(0, "annotation"))
	assert.Equal(t, "1 annotation", Count(1, "annotation"))
	assert.Equal(t, "3 clusters", Count(3, "cluster"))
}

func TestSpan(t *testing.T) {
	assert.Equal(t, "[7, 12)", Span(7, 12))
}
