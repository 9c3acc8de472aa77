package api

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/erazemk/popis/internal/audit"
	"github.com/erazemk/popis/internal/blob"
	"github.com/erazemk/popis/internal/ident"
	"github.com/erazemk/popis/internal/imaging"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/receipt"
)

// ReceiptsHandler turns receipt photos into item drafts.
type ReceiptsHandler struct {
	Extractor receipt.Extractor
	Media     blob.Store
	URLs      *ident.Resolver
	Options   imaging.Options
}

type extractResponse struct {
	Fields          *receipt.Fields `json:"fields"`
	Drafts          []model.NewItem `json:"drafts"`
	Summary         string          `json:"summary"`
	ReceiptImageURL string          `json:"receipt_image_url"`
}

// Extract handles POST /api/receipts/extract. The photo is stored so the
// drafts can link to it; nothing else is persisted.
func (h *ReceiptsHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if h.Extractor == nil {
		jsonError(w, http.StatusServiceUnavailable, "receipt extraction is not configured")
		return
	}

	photo, ok := readImage(w, r, h.Options)
	if !ok {
		return
	}

	key := "receipts/" + photo.Hash[:16] + photo.Ext()
	if err := h.Media.Put(r.Context(), key, bytes.NewReader(photo.Data), photo.MIME); err != nil {
		slog.Error("storing receipt", "key", key, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save receipt")
		return
	}
	url := blob.URL(h.URLs.BaseURL(r.Context()), key)

	fields, err := h.Extractor.Extract(r.Context(), photo.Data, photo.MIME)
	if err != nil {
		slog.Error("extracting receipt", "key", key, "error", err)
		jsonError(w, http.StatusBadGateway, "failed to read receipt")
		return
	}

	drafts := receipt.Drafts(fields, url)
	slog.Info("receipt extracted", "actor", audit.ActorFrom(r.Context()), "key", key, "drafts", len(drafts))
	jsonResponse(w, http.StatusOK, extractResponse{
		Fields:          fields,
		Drafts:          drafts,
		Summary:         receipt.Summary(fields),
		ReceiptImageURL: url,
	})
}
