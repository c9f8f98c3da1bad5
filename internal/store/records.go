package store

import (
	"time"
	"unicode/utf8"
)

// Document is a text that annotations refer to by rune offsets.
type Document struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content,omitempty"`
	Length    int       `json:"length"`
	CreatedAt time.Time `json:"created_at"`
}

// Label is a named annotation category.
type Label struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// runeLen is the document length in the engine's index space.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
