package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

// AddAnnotation labels [start, end) of a document and returns the new id.
// The span must lie within the document; an identical (document, label,
// start, end) tuple is rejected with ErrCodeDuplicateSpan.
func (s *SQLiteStore) AddAnnotation(ctx context.Context, docID, labelID int64, start, end int) (int64, error) {
	if start < 0 || start >= end {
		return 0, spanerr.New(spanerr.ErrCodeInvalidSpan, fmt.Sprintf("invalid span [%d,%d)", start, end), nil)
	}

	var id int64
	err := s.write(ctx, func(tx *sql.Tx) error {
		length, err := documentLength(ctx, tx, docID)
		if err != nil {
			return err
		}
		if end > length {
			return spanerr.New(spanerr.ErrCodeInvalidSpan,
				fmt.Sprintf("span [%d,%d) exceeds document length %d", start, end, length), nil)
		}
		if err := s.labelExists(ctx, tx, labelID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO annotations (document_id, label_id, start_char, end_char) VALUES (?, ?, ?, ?)`,
			docID, labelID, start, end)
		if err != nil {
			if isUniqueViolation(err) {
				return spanerr.New(spanerr.ErrCodeDuplicateSpan,
					fmt.Sprintf("span [%d,%d) already carries label %d", start, end, labelID), err)
			}
			return storeErr("failed to insert annotation", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// DeleteAnnotation removes an annotation by id.
func (s *SQLiteStore) DeleteAnnotation(ctx context.Context, id int64) error {
	return s.exec1(ctx, `DELETE FROM annotations WHERE id = ?`, "failed to delete annotation", id)
}

// UpdateExtraData replaces the free-form text of an annotation.
func (s *SQLiteStore) UpdateExtraData(ctx context.Context, id int64, text string) error {
	return s.exec1(ctx, `UPDATE annotations SET extra_data = ? WHERE id = ?`, "failed to update annotation", text, id)
}

// exec1 runs a statement that must touch exactly one annotation row. The
// annotation id is the last argument.
func (s *SQLiteStore) exec1(ctx context.Context, query, failure string, args ...any) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return storeErr(failure, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return spanerr.NotFound(spanerr.ErrCodeAnnotationNotFound, fmt.Sprintf("annotation %v", args[len(args)-1]))
		}
		return nil
	})
}

// Annotations lists a document's annotations in (start, id) order.
func (s *SQLiteStore) Annotations(ctx context.Context, docID int64) ([]annotation.Annotation, error) {
	var out []annotation.Annotation
	err := s.read(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, label_id, start_char, end_char, extra_data
			 FROM annotations WHERE document_id = ? ORDER BY start_char, id`, docID)
		if err != nil {
			return storeErr("failed to list annotations", err)
		}
		defer rows.Close()

		for rows.Next() {
			var a annotation.Annotation
			if err := rows.Scan(&a.ID, &a.LabelID, &a.Start, &a.End, &a.ExtraData); err != nil {
				return storeErr("failed to scan annotation", err)
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}

// AnnotationByID returns an annotation and the document it belongs to.
func (s *SQLiteStore) AnnotationByID(ctx context.Context, id int64) (annotation.Annotation, int64, error) {
	var (
		a     annotation.Annotation
		docID int64
	)
	err := s.read(func() error {
		err := s.db.QueryRowContext(ctx,
			`SELECT id, document_id, label_id, start_char, end_char, extra_data FROM annotations WHERE id = ?`, id).
			Scan(&a.ID, &docID, &a.LabelID, &a.Start, &a.End, &a.ExtraData)
		if errors.Is(err, sql.ErrNoRows) {
			return spanerr.NotFound(spanerr.ErrCodeAnnotationNotFound, fmt.Sprintf("annotation %d", id))
		}
		if err != nil {
			return storeErr("failed to query annotation", err)
		}
		return nil
	})
	return a, docID, err
}

// CountAnnotations returns the number of annotations on a document.
func (s *SQLiteStore) CountAnnotations(ctx context.Context, docID int64) (int, error) {
	var n int
	err := s.read(func() error {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM annotations WHERE document_id = ?`, docID).Scan(&n); err != nil {
			return storeErr("failed to count annotations", err)
		}
		return nil
	})
	return n, err
}
