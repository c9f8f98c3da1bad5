package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/spanlabel/internal/search"
	"github.com/Aman-CERP/spanlabel/internal/store"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, 20},
		{-3, 20},
		{1, 1},
		{50, 50},
		{500, MaxFindResults},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.limit, 20, 1, MaxFindResults), "limit %d", tt.limit)
	}
}

func TestFormatAnnotations(t *testing.T) {
	out := ListAnnotationsOutput{
		Document: "news",
		Annotations: []AnnotationOutput{
			{ID: 1, Label: "PER", Start: 0, End: 12, Text: "Barack Obama"},
			{ID: 2, Label: "PER", Start: 7, End: 12, Text: "Obama", ExtraData: "surname"},
			{ID: 3, Label: "LOC", Start: 21, End: 26, Text: "Paris"},
		},
		Clusters: []ClusterOutput{
			{Start: 0, End: 12, Members: []int64{1, 2}, Text: "Barack Obama"},
			{Start: 21, End: 26, Members: []int64{3}, Text: "Paris"},
		},
	}

	got := FormatAnnotations(out)

	assert.Contains(t, got, "## Annotations in \"news\"")
	assert.Contains(t, got, "3 annotations in 2 clusters")
	assert.Contains(t, got, "- #2 `PER` [7, 12) \"Obama\" note: \"surname\"\n")
	assert.Contains(t, got, "### Overlapping clusters")
	assert.Contains(t, got, "- [0, 12) \"Barack Obama\": #1, #2\n")
	assert.NotContains(t, got, "[21, 26) \"Paris\": #3")
}

func TestFormatAnnotations_Empty(t *testing.T) {
	assert.Equal(t, "No annotations in \"memo\"", FormatAnnotations(ListAnnotationsOutput{Document: "memo"}))
}

func TestFormatAnnotations_NoOverlap(t *testing.T) {
	got := FormatAnnotations(ListAnnotationsOutput{
		Document:    "memo",
		Annotations: []AnnotationOutput{{ID: 4, Label: "LOC", Start: 0, End: 6, Text: "Berlin"}},
		Clusters:    []ClusterOutput{{Start: 0, End: 6, Members: []int64{4}, Text: "Berlin"}},
	})

	assert.Contains(t, got, "1 annotation in 1 cluster\n")
	assert.NotContains(t, got, "Overlapping")
}

func TestFormatDocuments(t *testing.T) {
	assert.Contains(t, FormatDocuments(nil), "No documents")

	got := FormatDocuments([]DocumentOutput{{Name: "news", Length: 26, Annotations: 3}})
	assert.Contains(t, got, "| news | 26 | 3 |")
}

func TestFormatLabels(t *testing.T) {
	assert.Contains(t, FormatLabels(ListLabelsOutput{}), "No labels")
	assert.Contains(t, FormatLabels(ListLabelsOutput{Labels: []store.Label{{Name: "PER"}, {Name: "LOC"}}}), "`PER`, `LOC`")
}

func TestFormatFindResults(t *testing.T) {
	assert.Equal(t, "No annotations found for \"tokyo\"", FormatFindResults("tokyo", nil))

	got := FormatFindResults("paris", []search.Result{
		{AnnotationID: 3, Document: "news", Label: "LOC", Start: 21, End: 26, Text: "Paris", Score: 1.25, ExtraData: "capital"},
	})
	assert.Contains(t, got, "Found 1 result\n")
	assert.Contains(t, got, "1. **news** #3 `LOC` [21, 26) \"Paris\" (score: 1.25) note: \"capital\"")
}
