package taxonomy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erazemk/popis/internal/apperr"
	"github.com/erazemk/popis/internal/audit"
	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

func newRegistry(t *testing.T, opts ...RegistryOption) (*Registry, *audit.Log) {
	t.Helper()
	s := store.New(db.NewTestDB(t))
	log := audit.New(s)
	return New(s, log, opts...), log
}

func names(options []model.Option) []string {
	out := make([]string, len(options))
	for i, o := range options {
		out[i] = o.Name
	}
	return out
}

func TestListSeedsDefaults(t *testing.T) {
	r, _ := newRegistry(t, WithDefaults(map[model.Kind][]string{
		model.KindRoom: {"Kitchen", "attic", "Bedroom"},
	}))
	ctx := context.Background()

	options, err := r.List(ctx, model.KindRoom)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := names(options)
	want := []string{"attic", "Bedroom", "Kitchen"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("option %d = %q, want %q", i, got[i], want[i])
		}
	}

	// Listing again does not duplicate the seed.
	again, _ := r.List(ctx, model.KindRoom)
	if len(again) != 3 {
		t.Errorf("expected 3 options after relisting, got %d", len(again))
	}
}

func TestConcurrentSeedingDoesNotDuplicate(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.List(ctx, model.KindVendor)
		}()
	}
	wg.Wait()

	options, err := r.List(ctx, model.KindVendor)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(options) != len(Defaults[model.KindVendor]) {
		t.Errorf("expected %d vendors, got %d", len(Defaults[model.KindVendor]), len(options))
	}
}

func TestAddRejectsCaseInsensitiveDuplicate(t *testing.T) {
	r, log := newRegistry(t)
	ctx := context.Background()

	options, err := r.Add(ctx, model.KindVendor, "Acme")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(options) != len(Defaults[model.KindVendor])+1 {
		t.Errorf("expected defaults plus one, got %v", names(options))
	}

	_, err = r.Add(ctx, model.KindVendor, "ACME")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	after, _ := r.List(ctx, model.KindVendor)
	if len(after) != len(options) {
		t.Errorf("duplicate add changed the list: %v", names(after))
	}

	entries, _ := log.List(ctx, model.AuditFilter{TableName: model.TableTaxonomy})
	if len(entries) != 1 || entries[0].Action != model.ActionTaxonomyAdd {
		t.Errorf("expected a single taxonomy_add entry, got %+v", entries)
	}
}

func TestAddValidation(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	if _, err := r.Add(ctx, model.KindVendor, "   "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for blank name, got %v", err)
	}
	if _, err := r.Add(ctx, "colour", "red"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for unknown kind, got %v", err)
	}
	if _, err := r.List(ctx, "colour"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error listing unknown kind, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	r, _ := newRegistry(t, WithDefaults(map[model.Kind][]string{model.KindProject: {"Alpha", "Beta"}}))
	ctx := context.Background()

	options, err := r.Delete(ctx, model.KindProject, "Alpha")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := names(options); len(got) != 1 || got[0] != "Beta" {
		t.Errorf("unexpected options after delete: %v", got)
	}

	if _, err := r.Delete(ctx, model.KindProject, "Alpha"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	// Deletion matches the exact name.
	if _, err := r.Delete(ctx, model.KindProject, "beta"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for different case, got %v", err)
	}
}

func TestBulkDelete(t *testing.T) {
	r, log := newRegistry(t, WithDefaults(map[model.Kind][]string{model.KindBinLocation: {"A1", "A2", "B1"}}))
	ctx := context.Background()

	if _, err := r.List(ctx, model.KindBinLocation); err != nil {
		t.Fatalf("List: %v", err)
	}

	if _, err := r.BulkDelete(ctx, model.KindBinLocation, nil); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for empty selection, got %v", err)
	}

	n, err := r.BulkDelete(ctx, model.KindBinLocation, []string{"Z9"})
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 removed, got %d", n)
	}

	n, err = r.BulkDelete(ctx, model.KindBinLocation, []string{"A1", "A2"})
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}

	entries, _ := log.List(ctx, model.AuditFilter{TableName: model.TableTaxonomy})
	if len(entries) != 1 || entries[0].Action != model.ActionTaxonomyBulkDelete {
		t.Errorf("expected one bulk delete entry and none for the empty match, got %+v", entries)
	}
}

func TestDeleteSeedsDefaultsFirst(t *testing.T) {
	ctx := context.Background()

	r, _ := newRegistry(t, WithDefaults(map[model.Kind][]string{model.KindProject: {"Alpha", "Beta"}}))
	options, err := r.Delete(ctx, model.KindProject, "Alpha")
	if err != nil {
		t.Fatalf("Delete on fresh kind: %v", err)
	}
	if got := names(options); len(got) != 1 || got[0] != "Beta" {
		t.Errorf("expected [Beta], got %v", got)
	}

	r, _ = newRegistry(t, WithDefaults(map[model.Kind][]string{model.KindRoom: {"Attic", "Garage", "Kitchen"}}))
	n, err := r.BulkDelete(ctx, model.KindRoom, []string{"Attic", "Garage"})
	if err != nil {
		t.Fatalf("BulkDelete on fresh kind: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	options, err = r.List(ctx, model.KindRoom)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := names(options); len(got) != 1 || got[0] != "Kitchen" {
		t.Errorf("expected [Kitchen], got %v", got)
	}
}

func TestAddConflictFoldsNonASCII(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	if _, err := r.Add(ctx, model.KindVendor, "Čevljar"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Add(ctx, model.KindVendor, "čevljar"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict for lower-case duplicate, got %v", err)
	}
	if _, err := r.Add(ctx, model.KindVendor, "ŽELEZNINA"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Add(ctx, model.KindVendor, "Železnina"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict for mixed-case duplicate, got %v", err)
	}

	options, err := r.List(ctx, model.KindVendor)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := names(options); len(got) != 2 {
		t.Errorf("expected 2 vendors, got %v", got)
	}
}
