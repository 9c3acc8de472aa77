package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/audit"
	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/ident"
	"github.com/erazemk/popis/internal/importer"
	"github.com/erazemk/popis/internal/items"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

func sample() []model.Item {
	bought := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return []model.Item{{
		ID:            1,
		Name:          "Drill, cordless",
		Quantity:      2,
		Vendor:        "Acme",
		OriginalPrice: decimal.NewNullDecimal(decimal.RequireFromString("129.5")),
		Status:        model.StatusInUse,
		PurchaseDate:  &bought,
	}}
}

func TestRowOrder(t *testing.T) {
	row := Row(sample()[0])
	if len(row) != len(importer.Columns) {
		t.Fatalf("expected %d cells, got %d", len(importer.Columns), len(row))
	}
	if row[0] != "Drill, cordless" || row[2] != "2" || row[11] != "129.50" || row[14] != "in use" || row[15] != "2024-03-15" {
		t.Errorf("unexpected row: %q", row)
	}
}

func TestCSVRoundTripsThroughImport(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, sample()); err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "name,description,quantity,") {
		t.Errorf("unexpected header: %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}

	s := store.New(db.NewTestDB(t))
	log := audit.New(s)
	m := items.New(s, log, ident.NewResolver(""))
	res, err := importer.New(m, log, nil).ImportCSV(context.Background(), &buf, "export.csv")
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if res.SuccessCount != 1 || res.ErrorCount != 0 {
		t.Fatalf("unexpected import result: %+v", res)
	}

	all, _ := m.All(context.Background(), model.ItemFilter{})
	got := all[0]
	if got.Name != "Drill, cordless" || got.Vendor != "Acme" || got.Status != model.StatusInUse {
		t.Errorf("unexpected reimported item: %+v", got)
	}
	if !got.OriginalPrice.Decimal.Equal(decimal.RequireFromString("129.5")) {
		t.Errorf("price = %v", got.OriginalPrice)
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := XLSX(&buf, sample()); err != nil {
		t.Fatalf("XLSX: %v", err)
	}

	data, err := importer.WorkbookToCSV(&buf)
	if err != nil {
		t.Fatalf("WorkbookToCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", lines)
	}
	if !strings.HasPrefix(lines[1], `"Drill, cordless",,2,`) {
		t.Errorf("unexpected row: %q", lines[1])
	}
}
