package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/cases"

	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/model"
)

// nameKey is the case-folded form of an option name used for uniqueness and
// ordering. SQLite's lower() folds ASCII only, so the key is computed here.
func nameKey(name string) string {
	return cases.Fold().String(name)
}

// ListOptions returns the options of kind ordered case-insensitively by name.
func (s *Store) ListOptions(ctx context.Context, kind model.Kind) ([]model.Option, error) {
	rows, err := s.query(ctx,
		`SELECT id, kind, name, owner, created_at FROM taxonomy_options
		 WHERE kind = ? ORDER BY name_key, name`,
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("listing taxonomy options: %w", err)
	}
	defer rows.Close()

	options := []model.Option{}
	for rows.Next() {
		var o model.Option
		if err := rows.Scan(&o.ID, &o.Kind, &o.Name, &o.Owner, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning taxonomy option: %w", err)
		}
		o.CreatedAt = o.CreatedAt.UTC()
		options = append(options, o)
	}
	return options, rows.Err()
}

// InsertOption adds name to kind unless a case-insensitive match exists.
// It reports whether a row was inserted.
func (s *Store) InsertOption(ctx context.Context, kind model.Kind, name string, now time.Time) (bool, error) {
	res, err := s.exec(ctx,
		`INSERT INTO taxonomy_options (kind, name, name_key, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		string(kind), name, nameKey(name), now,
	)
	if err != nil {
		return false, fmt.Errorf("inserting taxonomy option: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting taxonomy option: %w", err)
	}
	return n == 1, nil
}

// DeleteOptions removes the named options of kind by exact name and returns
// how many were removed.
func (s *Store) DeleteOptions(ctx context.Context, kind model.Kind, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	args := append([]any{string(kind)}, anySlice(names)...)
	res, err := s.exec(ctx,
		`DELETE FROM taxonomy_options WHERE kind = ? AND name IN (`+db.Placeholders(len(names))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting taxonomy options: %w", err)
	}
	return res.RowsAffected()
}
