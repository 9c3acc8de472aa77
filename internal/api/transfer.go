package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/popis/internal/config"
	"github.com/erazemk/popis/internal/export"
	"github.com/erazemk/popis/internal/importer"
	"github.com/erazemk/popis/internal/items"
	"github.com/erazemk/popis/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TransferHandler handles bulk import and export of items.
type TransferHandler struct {
	Items    *items.Manager
	Importer *importer.Importer
	Settings *config.Live
}

// spreadsheet reports whether the request asks for the XLSX format.
func spreadsheet(r *http.Request) bool {
	if format := r.URL.Query().Get("format"); format != "" {
		return strings.EqualFold(format, "xlsx")
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), xlsxContentType)
}

// Import handles POST /api/items/import. The body is the CSV text, or an
// XLSX workbook with ?format=xlsx.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Settings.MaxImportBytes())
	defer r.Body.Close()

	source := r.URL.Query().Get("source")
	xlsx := spreadsheet(r)
	if source == "" {
		source = "upload.csv"
		if xlsx {
			source = "upload.xlsx"
		}
	}

	var (
		result *model.ImportResult
		err    error
	)
	if xlsx {
		result, err = h.Importer.ImportXLSX(r.Context(), r.Body, source)
	} else {
		result, err = h.Importer.ImportCSV(r.Context(), r.Body, source)
	}
	if err != nil && result == nil {
		serviceError(w, r, err, "failed to import items")
		return
	}
	if err != nil {
		slog.Warn("import interrupted", "run", result.RunID, "error", err)
	}
	jsonResponse(w, http.StatusOK, result)
}

// Template handles GET /api/items/import/template.
func (h *TransferHandler) Template(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="popis-import-template.csv"`)
	w.Write(importer.Template())
}

// Export handles GET /api/items/export?format=csv|xlsx with the same
// filters as the item listing.
func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		jsonError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	list, err := h.Items.All(r.Context(), itemFilter(r))
	if err != nil {
		serviceError(w, r, err, "failed to export items")
		return
	}

	if format == "xlsx" {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="popis-items.xlsx"`)
		err = export.XLSX(w, list)
	} else {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="popis-items.csv"`)
		err = export.CSV(w, list)
	}
	if err != nil {
		slog.Error("writing export", "format", format, "error", err)
		return
	}
	slog.Info("items exported", "format", format, "count", len(list))
}
