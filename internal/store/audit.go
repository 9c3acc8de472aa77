package store

import (
	"context"
	"fmt"

	"github.com/erazemk/popis/internal/model"
)

// InsertAuditEntry appends e to the audit log and returns its ID.
func (s *Store) InsertAuditEntry(ctx context.Context, e *model.AuditEntry) (int64, error) {
	details := string(e.Details)
	if details == "" {
		details = "{}"
	}

	var id int64
	err := s.queryRow(ctx,
		`INSERT INTO audit_log (action, table_name, record_id, details, description, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.Action, e.TableName, e.RecordID, details, e.Description, e.Actor, e.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting audit entry: %w", err)
	}
	return id, nil
}

// ListAuditEntries returns audit entries newest first.
func (s *Store) ListAuditEntries(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT id, action, table_name, record_id, details, description, actor, created_at FROM audit_log`
	var args []any

	switch {
	case f.TableName != "" && f.RecordID != "":
		query += ` WHERE table_name = ? AND record_id = ?`
		args = append(args, f.TableName, f.RecordID)
	case f.TableName != "":
		query += ` WHERE table_name = ?`
		args = append(args, f.TableName)
	case f.RecordID != "":
		query += ` WHERE record_id = ?`
		args = append(args, f.RecordID)
	}

	query += ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var (
			e       model.AuditEntry
			details string
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.TableName, &e.RecordID, &details, &e.Description, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Details = []byte(details)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
