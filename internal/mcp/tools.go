package mcp

import (
	"time"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	"github.com/Aman-CERP/spanlabel/internal/search"
	"github.com/Aman-CERP/spanlabel/internal/store"
)

// Tool names.
const (
	ToolListDocuments    = "list_documents"
	ToolListLabels       = "list_labels"
	ToolListAnnotations  = "list_annotations"
	ToolAddAnnotation    = "add_annotation"
	ToolDeleteAnnotation = "delete_annotation"
	ToolSetExtraData     = "set_extra_data"
	ToolFindAnnotations  = "find_annotations"
)

// toolDescriptions is shared by registerTools and ListTools.
var toolDescriptions = []ToolInfo{
	{
		Name:        ToolListDocuments,
		Description: "List the documents in the annotation database with their length and annotation count.",
	},
	{
		Name:        ToolListLabels,
		Description: "List the labels that annotations can carry.",
	},
	{
		Name:        ToolListAnnotations,
		Description: "List the annotations of one document in position order, and the overlap clusters they form. Offsets are character (rune) offsets; spans are half-open [start, end).",
	},
	{
		Name:        ToolAddAnnotation,
		Description: "Label the span [start, end) of a document. The same label cannot be applied twice to the same span.",
	},
	{
		Name:        ToolDeleteAnnotation,
		Description: "Delete an annotation by id.",
	},
	{
		Name:        ToolSetExtraData,
		Description: "Replace the free-form note attached to an annotation.",
	},
	{
		Name:        ToolFindAnnotations,
		Description: "Full-text search over annotations: the covered text, label name, note and document name. Supports field queries like label:PER or document:memo.",
	},
}

// ListDocumentsInput has no parameters.
type ListDocumentsInput struct{}

// ListDocumentsOutput lists every document.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents" jsonschema:"documents ordered by name"`
}

// DocumentOutput describes a document without its content.
type DocumentOutput struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Length      int       `json:"length" jsonschema:"length in characters"`
	Annotations int       `json:"annotations" jsonschema:"number of annotations"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListLabelsInput has no parameters.
type ListLabelsInput struct{}

// ListLabelsOutput lists every label.
type ListLabelsOutput struct {
	Labels []store.Label `json:"labels"`
}

// ListAnnotationsInput selects a document.
type ListAnnotationsInput struct {
	Document string `json:"document" jsonschema:"document name"`
}

// ListAnnotationsOutput is a document's annotations and clusters.
type ListAnnotationsOutput struct {
	Document    string             `json:"document"`
	Annotations []AnnotationOutput `json:"annotations" jsonschema:"annotations ordered by start, then id"`
	Clusters    []ClusterOutput    `json:"clusters" jsonschema:"maximal groups of overlapping annotations ordered by start"`
}

// AnnotationOutput is one annotation with its label name and covered text.
type AnnotationOutput struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Text      string `json:"text" jsonschema:"the covered text"`
	ExtraData string `json:"extra_data,omitempty"`
}

// ClusterOutput is one overlap cluster.
type ClusterOutput struct {
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Members []int64 `json:"members" jsonschema:"annotation ids in position order"`
	Text    string  `json:"text"`
}

// AddAnnotationInput labels a span.
type AddAnnotationInput struct {
	Document string `json:"document" jsonschema:"document name"`
	Label    string `json:"label" jsonschema:"label name"`
	Start    int    `json:"start" jsonschema:"first character offset, inclusive"`
	End      int    `json:"end" jsonschema:"end character offset, exclusive"`
}

// AnnotationResultOutput reports the annotation a tool created or changed.
type AnnotationResultOutput struct {
	Document   string           `json:"document"`
	Annotation AnnotationOutput `json:"annotation"`
}

// DeleteAnnotationInput names the annotation to delete.
type DeleteAnnotationInput struct {
	ID int64 `json:"id" jsonschema:"annotation id"`
}

// DeleteAnnotationOutput confirms a deletion.
type DeleteAnnotationOutput struct {
	Document string `json:"document"`
	ID       int64  `json:"id"`
	Deleted  bool   `json:"deleted"`
}

// SetExtraDataInput replaces an annotation's note.
type SetExtraDataInput struct {
	ID   int64  `json:"id" jsonschema:"annotation id"`
	Text string `json:"text" jsonschema:"the new note; empty clears it"`
}

// FindAnnotationsInput is a search query.
type FindAnnotationsInput struct {
	Query string `json:"query" jsonschema:"bleve query string, e.g. obama or +label:PER +document:news"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

// FindAnnotationsOutput holds search hits, best first.
type FindAnnotationsOutput struct {
	Results []search.Result `json:"results"`
}

// toAnnotationOutput resolves the label name and covered text of a.
func toAnnotationOutput(a annotation.Annotation, text []rune, labelName func(int64) string) AnnotationOutput {
	return AnnotationOutput{
		ID:        a.ID,
		Label:     labelName(a.LabelID),
		Start:     a.Start,
		End:       a.End,
		Text:      slice(text, a.Start, a.End),
		ExtraData: a.ExtraData,
	}
}

func slice(text []rune, start, end int) string {
	start = max(0, min(start, len(text)))
	end = max(start, min(end, len(text)))
	return string(text[start:end])
}
