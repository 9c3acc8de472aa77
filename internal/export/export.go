// Package export writes items out in the bulk import layout, so an export
// can be edited and imported again.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/erazemk/popis/internal/importer"
	"github.com/erazemk/popis/internal/model"
)

func price(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// Row renders item in importer.Columns order.
func Row(item model.Item) []string {
	values := map[string]string{
		"name":              item.Name,
		"description":       item.Description,
		"quantity":          strconv.Itoa(item.Quantity),
		"category":          item.Category,
		"subcategory":       item.Subcategory,
		"sku":               item.SKU,
		"storage_location":  item.StorageLocation,
		"bin_location":      item.BinLocation,
		"room":              item.Room,
		"vendor":            item.Vendor,
		"project":           item.Project,
		"purchase_price":    price(item.OriginalPrice),
		"sales_price":       price(item.SalesPrice),
		"msrp":              price(item.MSRP),
		"status":            item.Status,
		"purchase_date":     date(item.PurchaseDate),
		"receipt_image_url": item.ReceiptImageURL,
		"product_image_url": item.ProductImageURL,
		"product_url":       item.ProductURL,
	}

	row := make([]string, len(importer.Columns))
	for i, col := range importer.Columns {
		row[i] = values[col]
	}
	return row
}

// CSV writes items as CSV with a header row.
func CSV(w io.Writer, items []model.Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(importer.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, item := range items {
		if err := cw.Write(Row(item)); err != nil {
			return fmt.Errorf("writing item %d: %w", item.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes items as a single-sheet workbook with a header row.
func XLSX(w io.Writer, items []model.Item) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Items"
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(importer.Columns))
	for i, col := range importer.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("addressing row %d: %w", i+2, err)
		}
		values := Row(item)
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing item %d: %w", item.ID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
