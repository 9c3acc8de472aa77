// Package items implements the item lifecycle: creation with generated
// identifiers, edits, status transitions and bulk operations.
package items

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/apperr"
	"github.com/erazemk/popis/internal/audit"
	"github.com/erazemk/popis/internal/ident"
	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// DefaultPageSize applies when no page size is configured.
const DefaultPageSize = 50

// Manager owns every mutation of item records.
type Manager struct {
	store    *store.Store
	audit    *audit.Log
	urls     *ident.Resolver
	metrics  *metrics.Metrics
	pageSize func() int
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPageSize sets the source of the default listing page size.
func WithPageSize(size func() int) Option {
	return func(m *Manager) { m.pageSize = size }
}

// WithMetrics records item events on m.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// New returns a manager writing through s and recording to log.
func New(s *store.Store, log *audit.Log, urls *ident.Resolver, opts ...Option) *Manager {
	m := &Manager{
		store:    s,
		audit:    log,
		urls:     urls,
		pageSize: func() int { return DefaultPageSize },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateOption adjusts a single Create call.
type CreateOption func(*createConfig)

type createConfig struct {
	audit bool
}

// WithoutAudit skips the per-item audit entries, for callers that record a
// summary entry of their own.
func WithoutAudit() CreateOption {
	return func(c *createConfig) { c.audit = false }
}

func (m *Manager) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

// persist classifies unclassified store errors as persistence failures.
func persist(err error, action string) error {
	if err == nil || apperr.KindOf(err) != 0 {
		return err
	}
	return apperr.Persistence(err, "%s", action)
}

func normalizeStatus(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return model.StatusInStock, nil
	}
	status, ok := model.NormalizeStatus(s)
	if !ok {
		return "", apperr.Validation("invalid status %q", s)
	}
	return status, nil
}

func validate(item *model.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return apperr.Validation("Item name is required")
	}
	if item.Quantity < 0 {
		return apperr.Validation("quantity must not be negative, got %d", item.Quantity)
	}
	for _, p := range []struct {
		name  string
		price decimal.NullDecimal
	}{
		{"original price", item.OriginalPrice},
		{"sales price", item.SalesPrice},
		{"msrp", item.MSRP},
	} {
		if p.price.Valid && p.price.Decimal.IsNegative() {
			return apperr.Validation("%s must not be negative", p.name)
		}
	}
	if !model.ValidStatus(item.Status) {
		return apperr.Validation("invalid status %q", item.Status)
	}
	return nil
}

// applyStatusDates enforces the lifecycle dates for item.Status: in use
// keeps or stamps the in-use date, sold keeps or stamps the sold date, and
// in stock clears both.
func applyStatusDates(item *model.Item, now time.Time) {
	switch item.Status {
	case model.StatusInUse:
		if item.InUseDate == nil {
			t := now
			item.InUseDate = &t
		}
		item.SoldDate = nil
	case model.StatusSold:
		if item.SoldDate == nil {
			t := now
			item.SoldDate = &t
		}
		item.InUseDate = nil
	default:
		item.InUseDate = nil
		item.SoldDate = nil
	}
}

func (m *Manager) identify(ctx context.Context, item *model.Item) {
	ids := ident.Generate(m.urls.BaseURL(ctx), item.ID, item.SKU)
	item.BarcodeData = ids.Barcode
	item.QRCodeData = ids.QR
}

func recordID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Create validates in, inserts the item and writes its identifiers. Both
// writes share one transaction so a failure leaves no partial record.
func (m *Manager) Create(ctx context.Context, in model.NewItem, opts ...CreateOption) (*model.Item, error) {
	cfg := createConfig{audit: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	status, err := normalizeStatus(in.Status)
	if err != nil {
		return nil, err
	}

	now := m.timestamp()
	item := &model.Item{
		Name:            in.Name,
		Description:     in.Description,
		Quantity:        in.Quantity,
		Category:        in.Category,
		Subcategory:     in.Subcategory,
		SKU:             strings.TrimSpace(in.SKU),
		StorageLocation: in.StorageLocation,
		BinLocation:     in.BinLocation,
		Room:            in.Room,
		Vendor:          in.Vendor,
		Project:         in.Project,
		OriginalPrice:   in.OriginalPrice,
		SalesPrice:      in.SalesPrice,
		MSRP:            in.MSRP,
		Status:          status,
		PurchaseDate:    in.PurchaseDate,
		ReceiptImageURL: in.ReceiptImageURL,
		ProductImageURL: in.ProductImageURL,
		ProductURL:      in.ProductURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := validate(item); err != nil {
		return nil, err
	}
	applyStatusDates(item, now)

	err = m.store.InTx(ctx, func(tx *store.Store) error {
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return apperr.Persistence(err, "creating item")
		}
		item.ID = id

		m.identify(ctx, item)
		if err := tx.SetItemIdentifiers(ctx, id, item.BarcodeData, item.QRCodeData); err != nil {
			return apperr.Persistence(err, "generating identifiers")
		}

		if !cfg.audit {
			return nil
		}
		log := m.audit.On(tx)
		if err := log.Record(ctx, audit.Event{
			Action:      model.ActionCreate,
			Table:       model.TableItems,
			RecordID:    recordID(id),
			Details:     map[string]any{"name": item.Name, "quantity": item.Quantity, "status": item.Status},
			Description: fmt.Sprintf("Created item %q", item.Name),
		}); err != nil {
			return err
		}
		return log.Record(ctx, audit.Event{
			Action:      model.ActionGenerateIdentifiers,
			Table:       model.TableItems,
			RecordID:    recordID(id),
			Details:     map[string]string{"barcode": item.BarcodeData, "qr": item.QRCodeData},
			Description: fmt.Sprintf("Generated identifiers for item %q", item.Name),
		})
	})
	if err != nil {
		return nil, persist(err, "creating item")
	}

	m.metrics.ItemEvent(model.ActionCreate, 1)
	slog.Info("item created", "actor", audit.ActorFrom(ctx), "item", item.Name, "id", item.ID)
	return item, nil
}

// Get returns the item with id.
func (m *Manager) Get(ctx context.Context, id int64) (*model.Item, error) {
	item, err := m.store.GetItem(ctx, id)
	if err != nil {
		return nil, apperr.Persistence(err, "getting item")
	}
	if item == nil {
		return nil, apperr.NotFound("item %d not found", id)
	}
	return item, nil
}

// List returns one page of the items matching f. Pages are numbered from 1;
// a non-positive perPage uses the configured page size.
func (m *Manager) List(ctx context.Context, f model.ItemFilter, page, perPage int) (*model.ItemPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = m.pageSize()
	}
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	if f.Status != "" {
		status, ok := model.NormalizeStatus(f.Status)
		if !ok {
			return nil, apperr.Validation("invalid status %q", f.Status)
		}
		f.Status = status
	}

	f.Limit = perPage
	f.Offset = (page - 1) * perPage
	items, total, err := m.store.ListItems(ctx, f)
	if err != nil {
		return nil, apperr.Persistence(err, "listing items")
	}
	return &model.ItemPage{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

// All returns every item matching f.
func (m *Manager) All(ctx context.Context, f model.ItemFilter) ([]model.Item, error) {
	f.Limit, f.Offset = 0, 0
	items, _, err := m.store.ListItems(ctx, f)
	if err != nil {
		return nil, apperr.Persistence(err, "listing items")
	}
	return items, nil
}

// Update applies patch to the item with id in a single write. A status
// change runs the lifecycle date rules; identifiers are always recomputed.
func (m *Manager) Update(ctx context.Context, id int64, patch model.ItemPatch) (*model.Item, error) {
	var next model.Item
	var prevStatus string

	err := m.store.InTx(ctx, func(tx *store.Store) error {
		prev, err := tx.GetItem(ctx, id)
		if err != nil {
			return apperr.Persistence(err, "getting item")
		}
		if prev == nil {
			return apperr.NotFound("item %d not found", id)
		}
		prevStatus = prev.Status

		next = *prev
		patch.Apply(&next)
		next.SKU = strings.TrimSpace(next.SKU)
		if patch.Status != nil {
			status, err := normalizeStatus(*patch.Status)
			if err != nil {
				return err
			}
			next.Status = status
		}
		if err := validate(&next); err != nil {
			return err
		}

		now := m.timestamp()
		if next.Status != prev.Status {
			applyStatusDates(&next, now)
		}
		m.identify(ctx, &next)
		next.UpdatedAt = now
		if prev.UpdatedAt.After(now) {
			next.UpdatedAt = prev.UpdatedAt
		}

		n, err := tx.UpdateItem(ctx, &next)
		if err != nil {
			return apperr.Persistence(err, "updating item")
		}
		if n == 0 {
			return apperr.NotFound("item %d not found", id)
		}

		details := map[string]any{"name": next.Name}
		if next.Status != prev.Status {
			details["old_status"] = prev.Status
			details["new_status"] = next.Status
		}
		return m.audit.On(tx).Record(ctx, audit.Event{
			Action:      model.ActionUpdate,
			Table:       model.TableItems,
			RecordID:    recordID(id),
			Details:     details,
			Description: fmt.Sprintf("Updated item %q", next.Name),
		})
	})
	if err != nil {
		return nil, persist(err, "updating item")
	}

	m.metrics.ItemEvent(model.ActionUpdate, 1)
	slog.Info("item updated", "actor", audit.ActorFrom(ctx), "item", next.Name, "id", id)
	if next.Status != prevStatus {
		slog.Info("item status changed", "item", next.Name, "from", prevStatus, "to", next.Status)
	}
	return &next, nil
}

// Delete removes the item with id.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	var name string
	err := m.store.InTx(ctx, func(tx *store.Store) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			return apperr.Persistence(err, "getting item")
		}
		if item == nil {
			return apperr.NotFound("item %d not found", id)
		}
		name = item.Name

		n, err := tx.DeleteItems(ctx, []int64{id})
		if err != nil {
			return apperr.Persistence(err, "deleting item")
		}
		if n == 0 {
			return apperr.NotFound("item %d not found", id)
		}
		return m.audit.On(tx).Record(ctx, audit.Event{
			Action:      model.ActionDelete,
			Table:       model.TableItems,
			RecordID:    recordID(id),
			Details:     map[string]string{"name": name},
			Description: fmt.Sprintf("Deleted item %q", name),
		})
	})
	if err != nil {
		return persist(err, "deleting item")
	}

	m.metrics.ItemEvent(model.ActionDelete, 1)
	slog.Info("item deleted", "actor", audit.ActorFrom(ctx), "item", name, "id", id)
	return nil
}

// SetStatus moves the item with id to status. Setting the current status
// again leaves its dates unchanged.
func (m *Manager) SetStatus(ctx context.Context, id int64, requested string) (*model.Item, error) {
	status, ok := model.NormalizeStatus(requested)
	if !ok {
		return nil, apperr.Validation("invalid status %q", requested)
	}

	var next model.Item
	var prevStatus string
	err := m.store.InTx(ctx, func(tx *store.Store) error {
		prev, err := tx.GetItem(ctx, id)
		if err != nil {
			return apperr.Persistence(err, "getting item")
		}
		if prev == nil {
			return apperr.NotFound("item %d not found", id)
		}
		prevStatus = prev.Status

		now := m.timestamp()
		next = *prev
		next.Status = status
		applyStatusDates(&next, now)
		m.identify(ctx, &next)
		next.UpdatedAt = now
		if prev.UpdatedAt.After(now) {
			next.UpdatedAt = prev.UpdatedAt
		}

		n, err := tx.UpdateItem(ctx, &next)
		if err != nil {
			return apperr.Persistence(err, "setting item status")
		}
		if n == 0 {
			return apperr.NotFound("item %d not found", id)
		}
		return m.audit.On(tx).Record(ctx, audit.Event{
			Action:      model.ActionStatusChange,
			Table:       model.TableItems,
			RecordID:    recordID(id),
			Details:     map[string]string{"old_status": prevStatus, "new_status": status},
			Description: fmt.Sprintf("Changed status of %q from %s to %s", next.Name, prevStatus, status),
		})
	})
	if err != nil {
		return nil, persist(err, "setting item status")
	}

	m.metrics.ItemEvent(model.ActionStatusChange, 1)
	slog.Info("item status changed", "actor", audit.ActorFrom(ctx), "item", next.Name, "from", prevStatus, "to", status)
	return &next, nil
}

// BulkDelete removes every item in ids with one statement and returns how
// many were removed. Zero matches is not an error and is not audited.
func (m *Manager) BulkDelete(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("no items selected")
	}

	var removed int64
	err := m.store.InTx(ctx, func(tx *store.Store) error {
		n, err := tx.DeleteItems(ctx, ids)
		if err != nil {
			return apperr.Persistence(err, "deleting items")
		}
		removed = n
		if n == 0 {
			return nil
		}
		return m.audit.On(tx).Record(ctx, audit.Event{
			Action:      model.ActionBulkDelete,
			Table:       model.TableItems,
			Details:     map[string]any{"ids": ids, "deleted": n},
			Description: fmt.Sprintf("Deleted %d items", n),
		})
	})
	if err != nil {
		return 0, persist(err, "deleting items")
	}

	if removed == 0 {
		slog.Info("bulk delete matched no items", "requested", len(ids))
		return 0, nil
	}
	m.metrics.ItemEvent(model.ActionBulkDelete, int(removed))
	slog.Info("items deleted", "actor", audit.ActorFrom(ctx), "count", removed)
	return int(removed), nil
}

// BulkSetStatus moves every item in ids to status with one statement and
// returns how many were updated. Zero matches is not an error and is not
// audited.
func (m *Manager) BulkSetStatus(ctx context.Context, ids []int64, status string) (int, error) {
	normalized, ok := model.NormalizeStatus(status)
	if !ok {
		return 0, apperr.Validation("invalid status %q", status)
	}
	if len(ids) == 0 {
		return 0, apperr.Validation("no items selected")
	}

	var updated int64
	err := m.store.InTx(ctx, func(tx *store.Store) error {
		n, err := tx.SetItemsStatus(ctx, ids, normalized, m.timestamp())
		if err != nil {
			return apperr.Persistence(err, "setting item status")
		}
		updated = n
		if n == 0 {
			return nil
		}
		return m.audit.On(tx).Record(ctx, audit.Event{
			Action:      model.ActionBulkStatusChange,
			Table:       model.TableItems,
			Details:     map[string]any{"ids": ids, "status": normalized, "updated": n},
			Description: fmt.Sprintf("Set %d items to %s", n, normalized),
		})
	})
	if err != nil {
		return 0, persist(err, "setting item status")
	}

	if updated == 0 {
		slog.Info("bulk status change matched no items", "requested", len(ids))
		return 0, nil
	}
	m.metrics.ItemEvent(model.ActionBulkStatusChange, int(updated))
	slog.Info("item statuses changed", "actor", audit.ActorFrom(ctx), "count", updated, "status", normalized)
	return int(updated), nil
}
