// Package output formats the one-line confirmations, warnings and errors the
// spanlabel CLI prints. Reports and documents are rendered by package ui.
package output

import (
	"fmt"
	"io"
	"strings"

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

// Writer prints CLI messages. Write errors are ignored; there is nowhere
// better to report them.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a message with an icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Hint prints a follow-up suggestion.
func (w *Writer) Hint(msg string) {
	w.Status("💡", msg)
}

// Fail prints err the way spanlabel reports errors on the terminal: the
// message, the suggestion if any, and the error code.
func (w *Writer) Fail(err error) {
	if err == nil {
		return
	}
	lines := strings.Split(strings.TrimRight(spanerr.FormatForCLI(err), "\n"), "\n")
	w.Status("❌", strings.TrimPrefix(lines[0], "Error: "))
	for _, l := range lines[1:] {
		w.Status("", strings.TrimSpace(l))
	}
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Count formats n with the noun pluralized by appending "s".
func Count(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// Span formats a half-open span.
func Span(start, end int) string {
	return fmt.Sprintf("[%d, %d)", start, end)
}
