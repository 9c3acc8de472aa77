package importer

import "strings"

// Columns is the recognised import header in template order.
var Columns = []string{
	"name",
	"description",
	"quantity",
	"category",
	"subcategory",
	"sku",
	"storage_location",
	"bin_location",
	"room",
	"vendor",
	"project",
	"purchase_price",
	"sales_price",
	"msrp",
	"status",
	"purchase_date",
	"receipt_image_url",
	"product_image_url",
	"product_url",
}

var columnAliases = map[string]string{
	"original_price": "purchase_price",
}

var headerReplacer = strings.NewReplacer(" ", "_", "-", "_")

// normalizeHeader folds a header cell onto its canonical column name.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = headerReplacer.Replace(strings.ToLower(strings.TrimSpace(h)))
	if alias, ok := columnAliases[h]; ok {
		return alias
	}
	return h
}

// header maps canonical column names to record indexes.
type header map[string]int

func parseHeader(record []string) header {
	h := make(header, len(record))
	for i, cell := range record {
		name := normalizeHeader(cell)
		if name == "" {
			continue
		}
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	return h
}

func (h header) missing(required ...string) []string {
	var out []string
	for _, col := range required {
		if _, ok := h[col]; !ok {
			out = append(out, col)
		}
	}
	return out
}

func (h header) get(record []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

var templateExample = map[string]string{
	"name":             "Cordless drill",
	"description":      "18V with two batteries",
	"quantity":         "1",
	"category":         "Tools",
	"subcategory":      "Power Tools",
	"storage_location": "Garage",
	"bin_location":     "A1",
	"vendor":           "Home Depot",
	"purchase_price":   "129.00",
	"status":           "in stock",
	"purchase_date":    "2024-03-15",
}

// Template returns a CSV file with the import header and one example row.
func Template() []byte {
	example := make([]string, len(Columns))
	for i, col := range Columns {
		example[i] = templateExample[col]
	}
	return []byte(strings.Join(Columns, ",") + "\n" + strings.Join(example, ",") + "\n")
}
