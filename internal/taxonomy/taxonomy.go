// Package taxonomy manages the shared vocabularies items are classified by.
package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/popis/internal/apperr"
	"github.com/erazemk/popis/internal/audit"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// Registry lists and edits taxonomy options.
type Registry struct {
	store    *store.Store
	audit    *audit.Log
	defaults map[model.Kind][]string
	now      func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaults replaces the seed values.
func WithDefaults(d map[model.Kind][]string) RegistryOption {
	return func(r *Registry) { r.defaults = d }
}

// New returns a registry seeded from Defaults.
func New(s *store.Store, log *audit.Log, opts ...RegistryOption) *Registry {
	r := &Registry{store: s, audit: log, defaults: Defaults, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func checkKind(kind model.Kind) error {
	if !kind.Valid() {
		return apperr.Validation("unknown taxonomy kind %q", kind)
	}
	return nil
}

func (r *Registry) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// List returns the options of kind ordered by name, seeding the defaults
// first when the kind has none.
func (r *Registry) List(ctx context.Context, kind model.Kind) ([]model.Option, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}

	options, err := r.store.ListOptions(ctx, kind)
	if err != nil {
		return nil, apperr.Persistence(err, "listing %s options", kind)
	}
	if len(options) > 0 || len(r.defaults[kind]) == 0 {
		return options, nil
	}

	now := r.timestamp()
	for _, name := range r.defaults[kind] {
		if _, err := r.store.InsertOption(ctx, kind, name, now); err != nil {
			return nil, apperr.Persistence(err, "seeding %s options", kind)
		}
	}
	slog.Info("taxonomy seeded", "kind", kind, "count", len(r.defaults[kind]))

	options, err = r.store.ListOptions(ctx, kind)
	if err != nil {
		return nil, apperr.Persistence(err, "listing %s options", kind)
	}
	return options, nil
}

// All returns the options of every kind.
func (r *Registry) All(ctx context.Context) (map[model.Kind][]model.Option, error) {
	all := make(map[model.Kind][]model.Option, len(model.Kinds))
	for _, kind := range model.Kinds {
		options, err := r.List(ctx, kind)
		if err != nil {
			return nil, err
		}
		all[kind] = options
	}
	return all, nil
}

// Add inserts name into kind and returns the updated list. Names are unique
// per kind ignoring case.
func (r *Registry) Add(ctx context.Context, kind model.Kind, name string) ([]model.Option, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("%s name is required", kind)
	}

	// Seed first so an add to a fresh kind does not suppress the defaults.
	if _, err := r.List(ctx, kind); err != nil {
		return nil, err
	}

	err := r.store.InTx(ctx, func(tx *store.Store) error {
		inserted, err := tx.InsertOption(ctx, kind, name, r.timestamp())
		if err != nil {
			return apperr.Persistence(err, "adding %s option", kind)
		}
		if !inserted {
			return apperr.Conflict("%s %q already exists", kind, name)
		}
		return r.audit.On(tx).Record(ctx, audit.Event{
			Action:      model.ActionTaxonomyAdd,
			Table:       model.TableTaxonomy,
			Details:     map[string]string{"kind": string(kind), "name": name},
			Description: fmt.Sprintf("Added %s %q", kind, name),
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("taxonomy option added", "actor", audit.ActorFrom(ctx), "kind", kind, "name", name)
	return r.List(ctx, kind)
}

// Delete removes the option with exactly name and returns the updated list.
// Items referring to the name are left untouched.
func (r *Registry) Delete(ctx context.Context, kind model.Kind, name string) ([]model.Option, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	if _, err := r.List(ctx, kind); err != nil {
		return nil, err
	}

	err := r.store.InTx(ctx, func(tx *store.Store) error {
		n, err := tx.DeleteOptions(ctx, kind, []string{name})
		if err != nil {
			return apperr.Persistence(err, "deleting %s option", kind)
		}
		if n == 0 {
			return apperr.NotFound("%s %q not found", kind, name)
		}
		return r.audit.On(tx).Record(ctx, audit.Event{
			Action:      model.ActionTaxonomyDelete,
			Table:       model.TableTaxonomy,
			Details:     map[string]string{"kind": string(kind), "name": name},
			Description: fmt.Sprintf("Deleted %s %q", kind, name),
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("taxonomy option deleted", "actor", audit.ActorFrom(ctx), "kind", kind, "name", name)
	return r.List(ctx, kind)
}

// BulkDelete removes every named option of kind in one statement and returns
// how many were removed. Removing nothing is not an error and is not audited.
func (r *Registry) BulkDelete(ctx context.Context, kind model.Kind, names []string) (int, error) {
	if err := checkKind(kind); err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, apperr.Validation("no %s options selected", kind)
	}
	if _, err := r.List(ctx, kind); err != nil {
		return 0, err
	}

	var removed int64
	err := r.store.InTx(ctx, func(tx *store.Store) error {
		n, err := tx.DeleteOptions(ctx, kind, names)
		if err != nil {
			return apperr.Persistence(err, "deleting %s options", kind)
		}
		removed = n
		if n == 0 {
			return nil
		}
		return r.audit.On(tx).Record(ctx, audit.Event{
			Action:      model.ActionTaxonomyBulkDelete,
			Table:       model.TableTaxonomy,
			Details:     map[string]any{"kind": string(kind), "names": names, "removed": n},
			Description: fmt.Sprintf("Deleted %d %s options", n, kind),
		})
	})
	if err != nil {
		return 0, err
	}

	if removed == 0 {
		slog.Info("taxonomy bulk delete matched nothing", "kind", kind, "requested", len(names))
	} else {
		slog.Info("taxonomy options deleted", "actor", audit.ActorFrom(ctx), "kind", kind, "count", removed)
	}
	return int(removed), nil
}
