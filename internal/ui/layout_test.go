package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayout_WrapsAfterSpaces(t *testing.T) {
	// Given: text wider than the wrap width
	l := NewLayout([]rune("hello world foo"), 8)

	// Then: rows break after the last space that fits
	assert.Equal(t, []Line{{0, 6}, {6, 12}, {12, 15}}, l.Lines())
	assert.Equal(t, 15, l.Len())
	assert.Equal(t, 8, l.Width())
}

func TestLayout_Newlines(t *testing.T) {
	l := NewLayout([]rune("ab\ncd"), 0)

	assert.Equal(t, []Line{{0, 3}, {3, 5}}, l.Lines())

	_, ok := l.OffsetAt(0, 2)
	assert.False(t, ok, "the newline is not drawn")
	assert.Equal(t, 2, l.CaretAt(0, 5))

	row, col := l.Position(3)
	assert.Equal(t, 1, row)
	assert.Equal(t, 0, col)
}

func TestLayout_OffsetAt(t *testing.T) {
	l := NewLayout([]rune("hello world foo"), 8)

	tests := []struct {
		name     string
		row, col int
		want     int
		ok       bool
	}{
		{"row start", 1, 0, 6, true},
		{"trailing space", 1, 5, 11, true},
		{"past row end", 1, 6, 0, false},
		{"row out of range", 3, 0, 0, false},
		{"negative column", 0, -1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := l.OffsetAt(tt.row, tt.col)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLayout_Position(t *testing.T) {
	l := NewLayout([]rune("hello world foo"), 8)

	tests := []struct {
		offset   int
		row, col int
	}{
		{0, 0, 0},
		{5, 0, 5},
		{6, 1, 0},
		{12, 2, 0},
		{15, 2, 3},
		{99, 2, 3},
	}

	for _, tt := range tests {
		row, col := l.Position(tt.offset)
		assert.Equal(t, tt.row, row, "offset %d", tt.offset)
		assert.Equal(t, tt.col, col, "offset %d", tt.offset)
	}
	assert.Equal(t, 12, l.CaretAt(1, 40))
	assert.Equal(t, 15, l.CaretAt(9, 40), "rows clamp to the last one")
}

func TestLayout_WideRunes(t *testing.T) {
	l := NewLayout([]rune("日本語"), 4)

	assert.Equal(t, []Line{{0, 2}, {2, 3}}, l.Lines())
	for col, want := range []int{0, 0, 1, 1} {
		got, ok := l.OffsetAt(0, col)
		assert.True(t, ok)
		assert.Equal(t, want, got, "col %d", col)
	}
	row, col := l.Position(1)
	assert.Equal(t, 0, row)
	assert.Equal(t, 2, col)
}

func TestLayout_EmptyText(t *testing.T) {
	l := NewLayout(nil, 10)

	assert.Equal(t, []Line{{0, 0}}, l.Lines())
	assert.Equal(t, 0, l.CaretAt(5, 5))
	row, col := l.Position(0)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)
}

func TestRuneWidth(t *testing.T) {
	assert.Equal(t, 1, RuneWidth('a'))
	assert.Equal(t, 1, RuneWidth('\t'))
	assert.Equal(t, 2, RuneWidth('日'))
	assert.Equal(t, 1, RuneWidth('\u0301'), "zero-width runes still take a cell")
}
