package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

// AddLabel creates a label. Names are unique.
func (s *SQLiteStore) AddLabel(ctx context.Context, name, color string) (Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Label{}, spanerr.ValidationError("label name cannot be empty", nil)
	}

	l := Label{Name: name, Color: color}
	err := s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO labels (name, color) VALUES (?, ?)`, name, color)
		if err != nil {
			if isUniqueViolation(err) {
				return spanerr.New(spanerr.ErrCodeDuplicateName,
					fmt.Sprintf("label %q already exists", name), err)
			}
			return storeErr("failed to insert label", err)
		}
		l.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return Label{}, err
	}

	s.labels.Add(l.ID, l)
	return l, nil
}

// Label returns a label by id. Lookups are served from an LRU cache since
// renderers resolve the label of every highlighted range.
func (s *SQLiteStore) Label(ctx context.Context, id int64) (Label, error) {
	if l, ok := s.labels.Get(id); ok {
		return l, nil
	}

	var l Label
	err := s.read(func() error {
		err := s.db.QueryRowContext(ctx, `SELECT id, name, color FROM labels WHERE id = ?`, id).
			Scan(&l.ID, &l.Name, &l.Color)
		if errors.Is(err, sql.ErrNoRows) {
			return spanerr.NotFound(spanerr.ErrCodeLabelNotFound, fmt.Sprintf("label %d", id))
		}
		if err != nil {
			return storeErr("failed to query label", err)
		}
		return nil
	})
	if err != nil {
		return Label{}, err
	}

	s.labels.Add(id, l)
	return l, nil
}

// LabelByName returns a label by its name.
func (s *SQLiteStore) LabelByName(ctx context.Context, name string) (Label, error) {
	var l Label
	err := s.read(func() error {
		err := s.db.QueryRowContext(ctx, `SELECT id, name, color FROM labels WHERE name = ?`, name).
			Scan(&l.ID, &l.Name, &l.Color)
		if errors.Is(err, sql.ErrNoRows) {
			return spanerr.NotFound(spanerr.ErrCodeLabelNotFound, fmt.Sprintf("label %q", name)).
				WithSuggestion(fmt.Sprintf("Create it with 'spanlabel label add %s'", name))
		}
		if err != nil {
			return storeErr("failed to query label", err)
		}
		return nil
	})
	if err != nil {
		return Label{}, err
	}
	s.labels.Add(l.ID, l)
	return l, nil
}

// Labels lists every label ordered by id.
func (s *SQLiteStore) Labels(ctx context.Context) ([]Label, error) {
	var labels []Label
	err := s.read(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM labels ORDER BY id`)
		if err != nil {
			return storeErr("failed to list labels", err)
		}
		defer rows.Close()

		for rows.Next() {
			var l Label
			if err := rows.Scan(&l.ID, &l.Name, &l.Color); err != nil {
				return storeErr("failed to scan label", err)
			}
			labels = append(labels, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		s.labels.Add(l.ID, l)
	}
	return labels, nil
}

// labelExists checks a label inside a transaction, consulting the cache first.
func (s *SQLiteStore) labelExists(ctx context.Context, tx *sql.Tx, id int64) error {
	if s.labels.Contains(id) {
		return nil
	}
	var l Label
	err := tx.QueryRowContext(ctx, `SELECT id, name, color FROM labels WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &l.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return spanerr.NotFound(spanerr.ErrCodeLabelNotFound, fmt.Sprintf("label %d", id))
	}
	if err != nil {
		return storeErr("failed to query label", err)
	}
	s.labels.Add(id, l)
	return nil
}
