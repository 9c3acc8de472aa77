package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/model"
)

func TestInsertOptionCaseInsensitiveUnique(t *testing.T) {
	s := New(db.NewTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	ok, err := s.InsertOption(ctx, model.KindVendor, "Acme", now)
	if err != nil || !ok {
		t.Fatalf("InsertOption: %v, %v", ok, err)
	}

	ok, err = s.InsertOption(ctx, model.KindVendor, "ACME", now)
	if err != nil {
		t.Fatalf("InsertOption duplicate: %v", err)
	}
	if ok {
		t.Error("expected case-insensitive duplicate to be skipped")
	}

	ok, err = s.InsertOption(ctx, model.KindVendor, "Šola", now)
	if err != nil || !ok {
		t.Fatalf("InsertOption: %v, %v", ok, err)
	}
	ok, err = s.InsertOption(ctx, model.KindVendor, "šOLA", now)
	if err != nil {
		t.Fatalf("InsertOption duplicate: %v", err)
	}
	if ok {
		t.Error("expected non-ASCII case-insensitive duplicate to be skipped")
	}

	// Same name in another kind is allowed.
	ok, err = s.InsertOption(ctx, model.KindProject, "acme", now)
	if err != nil || !ok {
		t.Errorf("expected insert in other kind, got %v, %v", ok, err)
	}
}

func TestListOptionsOrdered(t *testing.T) {
	s := New(db.NewTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	for _, name := range []string{"garage", "Attic", "basement"} {
		if _, err := s.InsertOption(ctx, model.KindRoom, name, now); err != nil {
			t.Fatalf("InsertOption: %v", err)
		}
	}

	options, err := s.ListOptions(ctx, model.KindRoom)
	if err != nil {
		t.Fatalf("ListOptions: %v", err)
	}
	want := []string{"Attic", "basement", "garage"}
	if len(options) != len(want) {
		t.Fatalf("expected %d options, got %d", len(want), len(options))
	}
	for i, name := range want {
		if options[i].Name != name {
			t.Errorf("option %d = %q, want %q", i, options[i].Name, name)
		}
	}
}

func TestDeleteOptions(t *testing.T) {
	s := New(db.NewTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	for _, name := range []string{"A", "B", "C"} {
		s.InsertOption(ctx, model.KindBinLocation, name, now)
	}

	n, err := s.DeleteOptions(ctx, model.KindBinLocation, []string{"A", "C", "missing"})
	if err != nil {
		t.Fatalf("DeleteOptions: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}

	options, _ := s.ListOptions(ctx, model.KindBinLocation)
	if len(options) != 1 || options[0].Name != "B" {
		t.Errorf("unexpected remaining options: %+v", options)
	}
}
