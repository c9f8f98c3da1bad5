package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

// AddDocument stores a new document. Names are unique.
func (s *SQLiteStore) AddDocument(ctx context.Context, name, content string) (Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Document{}, spanerr.ValidationError("document name cannot be empty", nil)
	}

	doc := Document{Name: name, Content: content, Length: runeLen(content), CreatedAt: time.Unix(nowUnix(), 0)}
	err := s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO documents (name, content, created_at) VALUES (?, ?, ?)`,
			doc.Name, doc.Content, doc.CreatedAt.Unix())
		if err != nil {
			if isUniqueViolation(err) {
				return spanerr.New(spanerr.ErrCodeDuplicateName,
					fmt.Sprintf("document %q already exists", name), err)
			}
			return storeErr("failed to insert document", err)
		}
		doc.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return Document{}, err
	}

	s.logger.Debug("document added", "id", doc.ID, "name", doc.Name, "length", doc.Length)
	return doc, nil
}

// Document returns the document with its content.
func (s *SQLiteStore) Document(ctx context.Context, id int64) (Document, error) {
	return s.queryDocument(ctx, `WHERE id = ?`, id, fmt.Sprintf("document %d", id))
}

// DocumentByName returns the named document with its content.
func (s *SQLiteStore) DocumentByName(ctx context.Context, name string) (Document, error) {
	return s.queryDocument(ctx, `WHERE name = ?`, name, fmt.Sprintf("document %q", name))
}

func (s *SQLiteStore) queryDocument(ctx context.Context, where string, arg any, subject string) (Document, error) {
	var doc Document
	err := s.read(func() error {
		var created int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id, name, content, created_at FROM documents `+where, arg).
			Scan(&doc.ID, &doc.Name, &doc.Content, &created)
		if errors.Is(err, sql.ErrNoRows) {
			return spanerr.NotFound(spanerr.ErrCodeDocumentNotFound, subject).
				WithSuggestion("Run 'spanlabel doc list' to see available documents")
		}
		if err != nil {
			return storeErr("failed to query document", err)
		}
		doc.Length = runeLen(doc.Content)
		doc.CreatedAt = time.Unix(created, 0)
		return nil
	})
	return doc, err
}

// Documents lists every document without its content, ordered by name.
func (s *SQLiteStore) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := s.read(func() error {
		// length() counts characters for TEXT values, matching runeLen.
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, name, length(content), created_at FROM documents ORDER BY name`)
		if err != nil {
			return storeErr("failed to list documents", err)
		}
		defer rows.Close()

		for rows.Next() {
			var doc Document
			var created int64
			if err := rows.Scan(&doc.ID, &doc.Name, &doc.Length, &created); err != nil {
				return storeErr("failed to scan document", err)
			}
			doc.CreatedAt = time.Unix(created, 0)
			docs = append(docs, doc)
		}
		return rows.Err()
	})
	return docs, err
}

// DeleteDocument removes a document and, by cascade, its annotations.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id int64) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
		if err != nil {
			return storeErr("failed to delete document", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return spanerr.NotFound(spanerr.ErrCodeDocumentNotFound, fmt.Sprintf("document %d", id))
		}
		return nil
	})
}

// documentLength returns the rune length of a document inside a transaction.
func documentLength(ctx context.Context, tx *sql.Tx, docID int64) (int, error) {
	var content string
	err := tx.QueryRowContext(ctx, `SELECT content FROM documents WHERE id = ?`, docID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, spanerr.NotFound(spanerr.ErrCodeDocumentNotFound, fmt.Sprintf("document %d", docID))
	}
	if err != nil {
		return 0, storeErr("failed to query document", err)
	}
	return runeLen(content), nil
}
