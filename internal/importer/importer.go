// Package importer ingests items in bulk from CSV text or XLSX workbooks.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/erazemk/popis/internal/apperr"
	"github.com/erazemk/popis/internal/audit"
	"github.com/erazemk/popis/internal/items"
	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/internal/model"
)

// Creator creates a single item.
type Creator interface {
	Create(ctx context.Context, in model.NewItem, opts ...items.CreateOption) (*model.Item, error)
}

// Importer turns delimited rows into items, one row at a time.
type Importer struct {
	items   Creator
	audit   *audit.Log
	metrics *metrics.Metrics
}

// New returns an importer creating items through c.
func New(c Creator, log *audit.Log, m *metrics.Metrics) *Importer {
	return &Importer{items: c, audit: log, metrics: m}
}

// run carries the state of a single import.
type run struct {
	result *model.ImportResult
	lines  []string
}

func (r *run) fail(row int, msg, raw string) {
	r.result.Errors = append(r.result.Errors, model.ImportError{Row: row, Message: msg, Raw: raw})
	r.result.ErrorCount++
}

// line returns physical line n without its line ending.
func (r *run) line(n int) string {
	if n < 1 || n > len(r.lines) {
		return ""
	}
	return strings.TrimRight(r.lines[n-1], "\r")
}

// rawRecord renders a parsed record back to CSV, keeping quoted fields that
// span several lines whole.
func rawRecord(record []string) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(record); err != nil {
		return strings.Join(record, ",")
	}
	w.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ImportCSV creates an item for every data row of the CSV in r. Rows are
// independent: a failing row is reported in the result and the rest carry
// on. Row numbers are physical line numbers with the header on row 1.
//
// If ctx is cancelled the import stops before the next row, keeping the
// items already created, and returns the partial result with ctx's error.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader, source string) (*model.ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading import file: %w", err)
	}

	run := &run{
		result: &model.ImportResult{RunID: uuid.NewString(), Errors: []model.ImportError{}},
		lines:  strings.Split(string(data), "\n"),
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	record, err := cr.Read()
	for err == nil && blank(record) {
		record, err = cr.Read()
	}
	if err == io.EOF {
		return nil, apperr.Validation("import file is empty")
	}
	if err != nil {
		return nil, apperr.Validation("reading header: %v", err)
	}

	h := parseHeader(record)
	var runErr error
	if missing := h.missing("name", "quantity"); len(missing) > 0 {
		runErr = im.rejectAll(cr, run, missing)
	} else {
		runErr = im.ingest(ctx, cr, h, run)
	}

	im.finish(ctx, run.result, source, runErr)
	if runErr != nil {
		return run.result, runErr
	}
	return run.result, nil
}

// rejectAll fails the whole file for a missing mandatory column. Every data
// line counts as an error and a single aggregate message is reported.
func (im *Importer) rejectAll(cr *csv.Reader, run *run, missing []string) error {
	lines := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if err != nil && !errors.As(err, &perr) {
			return fmt.Errorf("reading import file: %w", err)
		}
		if err == nil && blank(record) {
			continue
		}
		lines++
	}

	run.result.Errors = append(run.result.Errors, model.ImportError{
		Row:     1,
		Message: "Missing required columns: " + strings.Join(missing, ", "),
		Raw:     run.line(1),
	})
	run.result.ErrorCount = lines
	return nil
}

func (im *Importer) ingest(ctx context.Context, cr *csv.Reader, h header, run *run) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return fmt.Errorf("reading import file: %w", err)
			}
			run.fail(perr.StartLine, fmt.Sprintf("Malformed row: %v", perr.Err), run.line(perr.StartLine))
			continue
		}
		if blank(record) {
			continue
		}

		row, _ := cr.FieldPos(0)
		in, msg := mapRow(h, record)
		if msg != "" {
			run.fail(row, msg, rawRecord(record))
			continue
		}

		if _, err := im.items.Create(ctx, in, items.WithoutAudit()); err != nil {
			run.fail(row, err.Error(), rawRecord(record))
			continue
		}
		run.result.SuccessCount++
	}
}

// mapRow validates one record and maps it onto an item input. Mandatory
// fields produce an error message; malformed optional fields are dropped.
func mapRow(h header, record []string) (model.NewItem, string) {
	in := model.NewItem{
		Name:            h.get(record, "name"),
		Description:     h.get(record, "description"),
		Category:        h.get(record, "category"),
		Subcategory:     h.get(record, "subcategory"),
		SKU:             h.get(record, "sku"),
		StorageLocation: h.get(record, "storage_location"),
		BinLocation:     h.get(record, "bin_location"),
		Room:            h.get(record, "room"),
		Vendor:          h.get(record, "vendor"),
		Project:         h.get(record, "project"),
		ReceiptImageURL: h.get(record, "receipt_image_url"),
		ProductImageURL: h.get(record, "product_image_url"),
		ProductURL:      h.get(record, "product_url"),
	}
	if in.Name == "" {
		return in, "Item name is required"
	}

	raw := h.get(record, "quantity")
	qty, err := strconv.Atoi(raw)
	if err != nil || qty < 0 {
		return in, fmt.Sprintf("Invalid quantity %q: must be a non-negative integer", raw)
	}
	in.Quantity = qty

	in.OriginalPrice = parsePrice(h.get(record, "purchase_price"))
	in.SalesPrice = parsePrice(h.get(record, "sales_price"))
	in.MSRP = parsePrice(h.get(record, "msrp"))

	if d := h.get(record, "purchase_date"); d != "" {
		if t, err := model.ParseDate(d); err == nil {
			in.PurchaseDate = &t
		}
	}

	in.Status = model.StatusInStock
	if s, ok := model.NormalizeStatus(h.get(record, "status")); ok {
		in.Status = s
	}
	return in, ""
}

var (
	priceReplacer = strings.NewReplacer("$", "", "€", "", " ", "")
	thousands     = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
)

// parsePrice returns a non-negative price, or null for blank or malformed
// input. Commas are accepted only as thousands separators, so decimal commas
// such as "12,50" are malformed.
func parsePrice(s string) decimal.NullDecimal {
	s = priceReplacer.Replace(s)
	if thousands.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func (im *Importer) finish(ctx context.Context, res *model.ImportResult, source string, runErr error) {
	ctx = context.WithoutCancel(ctx)

	details := map[string]any{
		"run_id":        res.RunID,
		"source":        source,
		"success_count": res.SuccessCount,
		"error_count":   res.ErrorCount,
	}
	if runErr != nil {
		details["interrupted"] = runErr.Error()
	}
	if err := im.audit.Record(ctx, audit.Event{
		Action:      model.ActionImport,
		Table:       model.TableItems,
		Details:     details,
		Description: fmt.Sprintf("Imported %d items from %s (%d errors)", res.SuccessCount, source, res.ErrorCount),
	}); err != nil {
		slog.Error("recording import", "run", res.RunID, "error", err)
	}

	im.metrics.ImportRun(res.SuccessCount, res.ErrorCount)
	slog.Info("import finished", "actor", audit.ActorFrom(ctx), "run", res.RunID, "source", source,
		"imported", res.SuccessCount, "failed", res.ErrorCount)
}

// ImportXLSX converts the active sheet of the workbook in r to CSV and
// imports it. Sheet rows keep their row numbers.
func (im *Importer) ImportXLSX(ctx context.Context, r io.Reader, source string) (*model.ImportResult, error) {
	data, err := WorkbookToCSV(r)
	if err != nil {
		return nil, err
	}
	return im.ImportCSV(ctx, bytes.NewReader(data), source)
}

// WorkbookToCSV renders the active sheet of an XLSX workbook as CSV text.
func WorkbookToCSV(r io.Reader) ([]byte, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation("opening workbook: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperr.Validation("reading sheet %q: %v", sheet, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if len(row) == 0 {
			buf.WriteString("\n")
			continue
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("converting sheet: %w", err)
		}
		w.Flush()
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("converting sheet: %w", err)
	}
	return buf.Bytes(), nil
}
