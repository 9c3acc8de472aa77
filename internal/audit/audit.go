// Package audit records mutating actions in the append-only audit log.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/popis/internal/apperr"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// Anonymous is the actor recorded when the context names none.
const Anonymous = "anonymous"

type actorKey struct{}

// WithActor returns a context naming the actor responsible for mutations.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored in ctx, or Anonymous.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && strings.TrimSpace(actor) != "" {
		return actor
	}
	return Anonymous
}

// Event describes an action to record.
type Event struct {
	Action      string
	Table       string
	RecordID    string
	Details     any
	Description string
}

// Log writes audit entries.
type Log struct {
	store *store.Store
	now   func() time.Time
}

// New returns an audit log backed by s.
func New(s *store.Store) *Log {
	return &Log{store: s, now: time.Now}
}

// On returns a log writing through s, typically an open transaction.
func (l *Log) On(s *store.Store) *Log {
	return &Log{store: s, now: l.now}
}

// Record appends ev to the log, attributing it to the actor in ctx.
func (l *Log) Record(ctx context.Context, ev Event) error {
	details := []byte("{}")
	if ev.Details != nil {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return apperr.Persistence(err, "encoding audit details")
		}
		details = b
	}

	entry := &model.AuditEntry{
		Action:      ev.Action,
		TableName:   ev.Table,
		Details:     details,
		Description: ev.Description,
		Actor:       ActorFrom(ctx),
		CreatedAt:   l.now().UTC().Truncate(time.Microsecond),
	}
	if ev.RecordID != "" {
		id := ev.RecordID
		entry.RecordID = &id
	}

	if _, err := l.store.InsertAuditEntry(ctx, entry); err != nil {
		return apperr.Persistence(err, "recording %s", ev.Action)
	}

	slog.Debug("audit", "action", ev.Action, "table", ev.Table, "record", ev.RecordID, "actor", entry.Actor)
	return nil
}

// List returns audit entries newest first.
func (l *Log) List(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error) {
	entries, err := l.store.ListAuditEntries(ctx, f)
	if err != nil {
		return nil, apperr.Persistence(err, "listing audit entries")
	}
	return entries, nil
}
