package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
)

// Chrome colors.
const (
	ColorAccent   = "154"
	ColorWhite    = "255"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
	ColorInk      = "16"
)

// Styles holds the styles of everything around the document text.
type Styles struct {
	Header  lipgloss.Style
	Status  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Label   lipgloss.Style
	Cursor  lipgloss.Style
	Select  lipgloss.Style
	Panel   lipgloss.Style
}

// DefaultStyles returns the colored chrome.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Status:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Cursor:  lipgloss.NewStyle().Reverse(true),
		Select:  lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color(ColorWhite)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorDarkGray)).
			Padding(0, 1),
	}
}

// NoColorStyles keeps only attributes that survive without color.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true),
		Status:  lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Cursor:  lipgloss.NewStyle().Reverse(true),
		Select:  lipgloss.NewStyle().Underline(true),
		Panel:   lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

// Theme maps render styles to lipgloss styles for document text.
type Theme struct {
	noColor    bool
	overlap    lipgloss.Style
	labelColor func(labelID int64) string
	cache      map[themeKey]lipgloss.Style
}

type themeKey struct {
	style annotation.Style
	label int64
}

// NewTheme builds a theme. labelColor resolves the color of a label; it is
// usually the label record's color with the configured palette as fallback.
func NewTheme(noColor bool, overlapColor string, labelColor func(labelID int64) string) *Theme {
	if overlapColor == "" {
		overlapColor = "#626262"
	}
	t := &Theme{
		noColor:    noColor,
		labelColor: labelColor,
		cache:      make(map[themeKey]lipgloss.Style),
	}
	if noColor {
		t.overlap = lipgloss.NewStyle().Reverse(true)
	} else {
		t.overlap = lipgloss.NewStyle().
			Background(lipgloss.Color(overlapColor)).
			Foreground(lipgloss.Color(ColorWhite))
	}
	return t
}

// Style returns the lipgloss style of a painted segment.
func (t *Theme) Style(style annotation.Style, labelID int64) lipgloss.Style {
	if style == annotation.StyleOverlap {
		return t.overlap
	}
	key := themeKey{style, labelID}
	if s, ok := t.cache[key]; ok {
		return s
	}

	var s lipgloss.Style
	color := lipgloss.Color(t.labelColor(labelID))
	switch {
	case t.noColor && style == annotation.StyleActive:
		s = lipgloss.NewStyle().Bold(true).Underline(true).Reverse(true)
	case t.noColor:
		s = lipgloss.NewStyle().Underline(true)
	case style == annotation.StyleActive:
		s = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(color)
	default:
		s = lipgloss.NewStyle().Background(color).Foreground(lipgloss.Color(ColorInk))
	}
	t.cache[key] = s
	return s
}
