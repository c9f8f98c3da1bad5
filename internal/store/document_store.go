package store

import (
	"context"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
)

// DocumentStore scopes the SQLite store to one open document so it can back
// an annotation.Engine.
type DocumentStore struct {
	store *SQLiteStore
	doc   Document
}

var _ annotation.Store = (*DocumentStore)(nil)

// ForDocument returns a store bound to the given document.
func (s *SQLiteStore) ForDocument(ctx context.Context, docID int64) (*DocumentStore, error) {
	doc, err := s.Document(ctx, docID)
	if err != nil {
		return nil, err
	}
	return &DocumentStore{store: s, doc: doc}, nil
}

// Document returns the bound document, including its content.
func (d *DocumentStore) Document() Document {
	return d.doc
}

// Store returns the underlying shared store.
func (d *DocumentStore) Store() *SQLiteStore {
	return d.store
}

// AddAnnotation implements annotation.Store.
func (d *DocumentStore) AddAnnotation(ctx context.Context, labelID int64, start, end int) (int64, error) {
	return d.store.AddAnnotation(ctx, d.doc.ID, labelID, start, end)
}

// DeleteAnnotation implements annotation.Store.
func (d *DocumentStore) DeleteAnnotation(ctx context.Context, id int64) error {
	return d.store.DeleteAnnotation(ctx, id)
}

// UpdateExtraData implements annotation.Store.
func (d *DocumentStore) UpdateExtraData(ctx context.Context, id int64, text string) error {
	return d.store.UpdateExtraData(ctx, id, text)
}

// AnnotationsForOpenDocument implements annotation.Store.
func (d *DocumentStore) AnnotationsForOpenDocument(ctx context.Context) ([]annotation.Annotation, error) {
	return d.store.Annotations(ctx, d.doc.ID)
}
