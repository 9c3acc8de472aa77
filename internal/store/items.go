package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/model"
)

const itemColumns = `id, name, description, quantity, category, subcategory, sku,
	storage_location, bin_location, room, vendor, project,
	original_price, sales_price, msrp, status, barcode_data, qr_code_data,
	purchase_date, in_use_date, sold_date,
	receipt_image_url, product_image_url, product_url, created_at, updated_at`

func scanItem(row scanner) (*model.Item, error) {
	item := &model.Item{}
	err := row.Scan(
		&item.ID, &item.Name, &item.Description, &item.Quantity, &item.Category, &item.Subcategory, &item.SKU,
		&item.StorageLocation, &item.BinLocation, &item.Room, &item.Vendor, &item.Project,
		&item.OriginalPrice, &item.SalesPrice, &item.MSRP, &item.Status, &item.BarcodeData, &item.QRCodeData,
		&item.PurchaseDate, &item.InUseDate, &item.SoldDate,
		&item.ReceiptImageURL, &item.ProductImageURL, &item.ProductURL, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.PurchaseDate = utc(item.PurchaseDate)
	item.InUseDate = utc(item.InUseDate)
	item.SoldDate = utc(item.SoldDate)
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

// InsertItem inserts item without identifiers and returns the assigned ID.
func (s *Store) InsertItem(ctx context.Context, item *model.Item) (int64, error) {
	var id int64
	err := s.queryRow(ctx,
		`INSERT INTO items (name, description, quantity, category, subcategory, sku,
			storage_location, bin_location, room, vendor, project,
			original_price, sales_price, msrp, status,
			purchase_date, in_use_date, sold_date,
			receipt_image_url, product_image_url, product_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		item.Name, item.Description, item.Quantity, item.Category, item.Subcategory, item.SKU,
		item.StorageLocation, item.BinLocation, item.Room, item.Vendor, item.Project,
		item.OriginalPrice, item.SalesPrice, item.MSRP, item.Status,
		item.PurchaseDate, item.InUseDate, item.SoldDate,
		item.ReceiptImageURL, item.ProductImageURL, item.ProductURL, item.CreatedAt, item.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting item: %w", err)
	}
	return id, nil
}

// SetItemIdentifiers stores the barcode and QR payloads of an item.
func (s *Store) SetItemIdentifiers(ctx context.Context, id int64, barcode, qr string) error {
	res, err := s.exec(ctx,
		`UPDATE items SET barcode_data = ?, qr_code_data = ? WHERE id = ?`,
		barcode, qr, id,
	)
	if err != nil {
		return fmt.Errorf("setting item identifiers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting item identifiers: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("setting item identifiers: item %d not found", id)
	}
	return nil
}

// GetItem returns an item by ID.
func (s *Store) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	item, err := scanItem(s.queryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

func itemWhere(f model.ItemFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		conds = append(conds, `(lower(name) LIKE ? ESCAPE '\' OR lower(sku) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	for _, eq := range []struct {
		column string
		value  string
	}{
		{"status", f.Status},
		{"category", f.Category},
		{"vendor", f.Vendor},
		{"project", f.Project},
		{"room", f.Room},
	} {
		if eq.value != "" {
			conds = append(conds, eq.column+" = ?")
			args = append(args, eq.value)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListItems returns the items matching f ordered by name, together with the
// total number of matches ignoring Limit and Offset. A zero Limit returns
// every match.
func (s *Store) ListItems(ctx context.Context, f model.ItemFilter) ([]model.Item, int, error) {
	where, args := itemWhere(f)

	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM items`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting items: %w", err)
	}

	query := `SELECT ` + itemColumns + ` FROM items` + where + ` ORDER BY lower(name), id`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("listing items: %w", err)
	}
	return items, total, nil
}

// UpdateItem writes every mutable column of item in a single statement.
// It returns the number of rows affected.
func (s *Store) UpdateItem(ctx context.Context, item *model.Item) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE items SET name = ?, description = ?, quantity = ?, category = ?, subcategory = ?, sku = ?,
			storage_location = ?, bin_location = ?, room = ?, vendor = ?, project = ?,
			original_price = ?, sales_price = ?, msrp = ?, status = ?, barcode_data = ?, qr_code_data = ?,
			purchase_date = ?, in_use_date = ?, sold_date = ?,
			receipt_image_url = ?, product_image_url = ?, product_url = ?, updated_at = ?
		 WHERE id = ?`,
		item.Name, item.Description, item.Quantity, item.Category, item.Subcategory, item.SKU,
		item.StorageLocation, item.BinLocation, item.Room, item.Vendor, item.Project,
		item.OriginalPrice, item.SalesPrice, item.MSRP, item.Status, item.BarcodeData, item.QRCodeData,
		item.PurchaseDate, item.InUseDate, item.SoldDate,
		item.ReceiptImageURL, item.ProductImageURL, item.ProductURL, item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("updating item: %w", err)
	}
	return res.RowsAffected()
}

// DeleteItems removes the items with the given IDs and returns how many
// rows were deleted.
func (s *Store) DeleteItems(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.exec(ctx,
		`DELETE FROM items WHERE id IN (`+db.Placeholders(len(ids))+`)`,
		anySlice(ids)...,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting items: %w", err)
	}
	return res.RowsAffected()
}

// SetItemsStatus moves the given items to status in one statement, stamping
// the matching lifecycle date with now where it is unset and clearing the
// other. It returns how many rows were updated.
func (s *Store) SetItemsStatus(ctx context.Context, ids []int64, status string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var (
		dates string
		args  = []any{status}
	)
	switch status {
	case model.StatusInUse:
		dates = `in_use_date = COALESCE(in_use_date, ?), sold_date = NULL`
		args = append(args, now)
	case model.StatusSold:
		dates = `sold_date = COALESCE(sold_date, ?), in_use_date = NULL`
		args = append(args, now)
	default:
		dates = `in_use_date = NULL, sold_date = NULL`
	}
	args = append(args, now)
	args = append(args, anySlice(ids)...)

	res, err := s.exec(ctx,
		`UPDATE items SET status = ?, `+dates+`, updated_at = ?
		 WHERE id IN (`+db.Placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("setting item status: %w", err)
	}
	return res.RowsAffected()
}
