package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

func TestActorFrom(t *testing.T) {
	if got := ActorFrom(context.Background()); got != Anonymous {
		t.Errorf("expected anonymous, got %q", got)
	}
	if got := ActorFrom(WithActor(context.Background(), "maja")); got != "maja" {
		t.Errorf("expected maja, got %q", got)
	}
	if got := ActorFrom(WithActor(context.Background(), "  ")); got != Anonymous {
		t.Errorf("expected blank actor to fall back, got %q", got)
	}
}

func TestRecordAndList(t *testing.T) {
	log := New(store.New(db.NewTestDB(t)))
	ctx := WithActor(context.Background(), "maja")

	err := log.Record(ctx, Event{
		Action:      model.ActionCreate,
		Table:       model.TableItems,
		RecordID:    "7",
		Details:     map[string]any{"name": "Drill"},
		Description: "Created item Drill",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := log.Record(ctx, Event{Action: model.ActionTaxonomyAdd, Table: model.TableTaxonomy}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := log.List(ctx, model.AuditFilter{TableName: model.TableItems})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 item entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Actor != "maja" || e.RecordID == nil || *e.RecordID != "7" {
		t.Errorf("unexpected entry: %+v", e)
	}

	var details map[string]string
	if err := json.Unmarshal(e.Details, &details); err != nil {
		t.Fatalf("decoding details: %v", err)
	}
	if details["name"] != "Drill" {
		t.Errorf("unexpected details: %v", details)
	}
}
