// Package receipt reads purchase receipts into item drafts.
package receipt

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/model"
)

// LineItem is one purchased product on a receipt.
type LineItem struct {
	Name      string `json:"name" jsonschema:"description=Product name as printed"`
	SKU       string `json:"sku" jsonschema:"description=Article number or barcode if printed; otherwise empty"`
	Quantity  int    `json:"quantity" jsonschema:"description=Number of units bought"`
	UnitPrice string `json:"unit_price" jsonschema:"description=Price of one unit as a plain decimal such as 12.50; empty if unknown"`
}

// Fields are the values extracted from a receipt image.
type Fields struct {
	Vendor       string     `json:"vendor" jsonschema:"description=Name of the store or seller"`
	PurchaseDate string     `json:"purchase_date" jsonschema:"description=Purchase date as YYYY-MM-DD; empty if not printed"`
	Currency     string     `json:"currency" jsonschema:"description=ISO 4217 currency code; empty if unknown"`
	Items        []LineItem `json:"items"`
}

// Extractor reads receipt fields from an image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mime string) (*Fields, error)
}

// Drafts turns extracted fields into item inputs, one per line item.
// Unparseable prices and dates are left empty.
func Drafts(f *Fields, receiptURL string) []model.NewItem {
	drafts := make([]model.NewItem, 0, len(f.Items))
	for _, line := range f.Items {
		name := strings.TrimSpace(line.Name)
		if name == "" {
			continue
		}
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}

		in := model.NewItem{
			Name:            name,
			Quantity:        qty,
			SKU:             strings.TrimSpace(line.SKU),
			Vendor:          strings.TrimSpace(f.Vendor),
			Status:          model.StatusInStock,
			ReceiptImageURL: receiptURL,
		}
		if p, err := decimal.NewFromString(strings.TrimSpace(line.UnitPrice)); err == nil && !p.IsNegative() {
			in.OriginalPrice = decimal.NewNullDecimal(p)
		}
		if t, err := model.ParseDate(f.PurchaseDate); err == nil {
			in.PurchaseDate = &t
		}
		drafts = append(drafts, in)
	}
	return drafts
}

// Summary is a short human-readable description of extracted fields.
func Summary(f *Fields) string {
	vendor := f.Vendor
	if vendor == "" {
		vendor = "unknown vendor"
	}
	return strconv.Itoa(len(f.Items)) + " items from " + vendor
}
