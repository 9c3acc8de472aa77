// Package api serves the inventory over a JSON HTTP API.
package api

import (
	"net/http"

	"github.com/erazemk/popis/internal/audit"
	"github.com/erazemk/popis/internal/blob"
	"github.com/erazemk/popis/internal/config"
	"github.com/erazemk/popis/internal/ident"
	"github.com/erazemk/popis/internal/imaging"
	"github.com/erazemk/popis/internal/importer"
	"github.com/erazemk/popis/internal/items"
	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/internal/receipt"
	"github.com/erazemk/popis/internal/taxonomy"
)

// Deps are the services the API is built on. Receipts may be nil, which
// disables receipt extraction. Revocations may be nil, which accepts every
// valid token.
type Deps struct {
	Items    *items.Manager
	Taxonomy *taxonomy.Registry
	Audit    *audit.Log
	Importer *importer.Importer
	Media    blob.Store
	Receipts receipt.Extractor
	Metrics  *metrics.Metrics
	Settings *config.Live
	URLs     *ident.Resolver
	Images   imaging.Options

	Secret      string
	Revocations Revocations
}

// NewRouter creates the API router with all endpoints registered and the
// request middleware applied.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	itemsHandler := &ItemsHandler{Items: d.Items}
	imagesHandler := &ImagesHandler{Items: d.Items, Media: d.Media, URLs: d.URLs, Options: d.Images}
	transferHandler := &TransferHandler{Items: d.Items, Importer: d.Importer, Settings: d.Settings}
	taxonomyHandler := &TaxonomyHandler{Registry: d.Taxonomy}
	auditHandler := &AuditHandler{Log: d.Audit}
	receiptsHandler := &ReceiptsHandler{Extractor: d.Receipts, Media: d.Media, URLs: d.URLs, Options: d.Images}
	settingsHandler := &SettingsHandler{Settings: d.Settings, Media: d.Media, ReceiptsEnabled: d.Receipts != nil}

	mux.HandleFunc("GET /health", health)
	mux.Handle("GET /metrics", d.Metrics.Handler())

	// Items.
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("POST /api/items", itemsHandler.Create)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.HandleFunc("PUT /api/items/{id}", itemsHandler.Update)
	mux.HandleFunc("DELETE /api/items/{id}", itemsHandler.Delete)
	mux.HandleFunc("PUT /api/items/{id}/status", itemsHandler.SetStatus)
	mux.HandleFunc("POST /api/items/bulk-delete", itemsHandler.BulkDelete)
	mux.HandleFunc("POST /api/items/bulk-status", itemsHandler.BulkStatus)
	mux.HandleFunc("PUT /api/items/{id}/images/{kind}", imagesHandler.Upload)

	// Import and export.
	mux.HandleFunc("POST /api/items/import", transferHandler.Import)
	mux.HandleFunc("GET /api/items/import/template", transferHandler.Template)
	mux.HandleFunc("GET /api/items/export", transferHandler.Export)

	// Taxonomy.
	mux.HandleFunc("GET /api/taxonomy", taxonomyHandler.All)
	mux.HandleFunc("GET /api/taxonomy/{kind}", taxonomyHandler.List)
	mux.HandleFunc("POST /api/taxonomy/{kind}", taxonomyHandler.Add)
	mux.HandleFunc("DELETE /api/taxonomy/{kind}/{name}", taxonomyHandler.Delete)
	mux.HandleFunc("POST /api/taxonomy/{kind}/bulk-delete", taxonomyHandler.BulkDelete)

	mux.HandleFunc("GET /api/audit", auditHandler.List)
	mux.HandleFunc("POST /api/receipts/extract", receiptsHandler.Extract)
	mux.HandleFunc("GET /api/settings", settingsHandler.Get)
	mux.HandleFunc("GET /media/{key...}", imagesHandler.Serve)

	var handler http.Handler = mux
	handler = ActorMiddleware(d.Secret, d.Revocations)(handler)
	handler = BaseURLMiddleware(handler)
	handler = LoggingMiddleware(d.Metrics)(handler)
	handler = RequestIDMiddleware(handler)
	return handler
}

// health handles GET /health.
func health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
