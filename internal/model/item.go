package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single inventory record.
type Item struct {
	ID              int64               `json:"id"`
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	Quantity        int                 `json:"quantity"`
	Category        string              `json:"category"`
	Subcategory     string              `json:"subcategory"`
	SKU             string              `json:"sku"`
	StorageLocation string              `json:"storage_location"`
	BinLocation     string              `json:"bin_location"`
	Room            string              `json:"room"`
	Vendor          string              `json:"vendor"`
	Project         string              `json:"project"`
	OriginalPrice   decimal.NullDecimal `json:"original_price"`
	SalesPrice      decimal.NullDecimal `json:"sales_price"`
	MSRP            decimal.NullDecimal `json:"msrp"`
	Status          string              `json:"status"`
	BarcodeData     string              `json:"barcode_data"`
	QRCodeData      string              `json:"qr_code_data"`
	PurchaseDate    *time.Time          `json:"purchase_date"`
	InUseDate       *time.Time          `json:"in_use_date"`
	SoldDate        *time.Time          `json:"sold_date"`
	ReceiptImageURL string              `json:"receipt_image_url"`
	ProductImageURL string              `json:"product_image_url"`
	ProductURL      string              `json:"product_url"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Item statuses.
const (
	StatusInStock = "in stock"
	StatusInUse   = "in use"
	StatusSold    = "sold"
)

// Statuses lists every valid item status in lifecycle order.
var Statuses = []string{StatusInStock, StatusInUse, StatusSold}

// ValidStatus reports whether s is one of the item statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusInStock, StatusInUse, StatusSold:
		return true
	}
	return false
}

// NormalizeStatus maps loosely written statuses ("In_Stock", "in-use") onto
// the canonical values. The second result is false if s matches none.
func NormalizeStatus(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	if ValidStatus(s) {
		return s, true
	}
	return "", false
}

// NewItem holds the caller-supplied fields for creating an item.
type NewItem struct {
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	Quantity        int                 `json:"quantity"`
	Category        string              `json:"category"`
	Subcategory     string              `json:"subcategory"`
	SKU             string              `json:"sku"`
	StorageLocation string              `json:"storage_location"`
	BinLocation     string              `json:"bin_location"`
	Room            string              `json:"room"`
	Vendor          string              `json:"vendor"`
	Project         string              `json:"project"`
	OriginalPrice   decimal.NullDecimal `json:"original_price"`
	SalesPrice      decimal.NullDecimal `json:"sales_price"`
	MSRP            decimal.NullDecimal `json:"msrp"`
	Status          string              `json:"status"`
	PurchaseDate    *time.Time          `json:"purchase_date"`
	ReceiptImageURL string              `json:"receipt_image_url"`
	ProductImageURL string              `json:"product_image_url"`
	ProductURL      string              `json:"product_url"`
}

// ItemPatch holds a partial update; nil fields are left unchanged.
type ItemPatch struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	Quantity        *int             `json:"quantity"`
	Category        *string          `json:"category"`
	Subcategory     *string          `json:"subcategory"`
	SKU             *string          `json:"sku"`
	StorageLocation *string          `json:"storage_location"`
	BinLocation     *string          `json:"bin_location"`
	Room            *string          `json:"room"`
	Vendor          *string          `json:"vendor"`
	Project         *string          `json:"project"`
	OriginalPrice   *decimal.Decimal `json:"original_price"`
	SalesPrice      *decimal.Decimal `json:"sales_price"`
	MSRP            *decimal.Decimal `json:"msrp"`
	Status          *string          `json:"status"`
	PurchaseDate    *time.Time       `json:"purchase_date"`
	ReceiptImageURL *string          `json:"receipt_image_url"`
	ProductImageURL *string          `json:"product_image_url"`
	ProductURL      *string          `json:"product_url"`
}

// Apply copies every set field except Status onto item.
func (p ItemPatch) Apply(item *Item) {
	setString(&item.Name, p.Name)
	setString(&item.Description, p.Description)
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	setString(&item.Category, p.Category)
	setString(&item.Subcategory, p.Subcategory)
	setString(&item.SKU, p.SKU)
	setString(&item.StorageLocation, p.StorageLocation)
	setString(&item.BinLocation, p.BinLocation)
	setString(&item.Room, p.Room)
	setString(&item.Vendor, p.Vendor)
	setString(&item.Project, p.Project)
	setPrice(&item.OriginalPrice, p.OriginalPrice)
	setPrice(&item.SalesPrice, p.SalesPrice)
	setPrice(&item.MSRP, p.MSRP)
	if p.PurchaseDate != nil {
		d := *p.PurchaseDate
		item.PurchaseDate = &d
	}
	setString(&item.ReceiptImageURL, p.ReceiptImageURL)
	setString(&item.ProductImageURL, p.ProductImageURL)
	setString(&item.ProductURL, p.ProductURL)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setPrice(dst *decimal.NullDecimal, v *decimal.Decimal) {
	if v != nil {
		*dst = decimal.NewNullDecimal(*v)
	}
}

// ItemFilter narrows an item listing. Empty fields match everything.
type ItemFilter struct {
	Query    string
	Status   string
	Category string
	Vendor   string
	Project  string
	Room     string
	Limit    int
	Offset   int
}

// ItemPage is one page of a filtered item listing.
type ItemPage struct {
	Items   []Item `json:"items"`
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}
