package api

import (
	"net/http"

	"github.com/erazemk/popis/internal/audit"
	"github.com/erazemk/popis/internal/model"
)

// AuditHandler serves the audit log.
type AuditHandler struct {
	Log *audit.Log
}

// List handles GET /api/audit.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit == 0 || limit > 1000 {
		limit = 100
	}

	entries, err := h.Log.List(r.Context(), model.AuditFilter{
		TableName: r.URL.Query().Get("table"),
		RecordID:  r.URL.Query().Get("record_id"),
		Limit:     limit,
	})
	if err != nil {
		serviceError(w, r, err, "failed to list audit log")
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	jsonResponse(w, http.StatusOK, entries)
}
