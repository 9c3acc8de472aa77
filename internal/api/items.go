package api

import (
	"net/http"
	"strings"

	"github.com/erazemk/popis/internal/items"
	"github.com/erazemk/popis/internal/model"
)

// ItemsHandler handles item lifecycle endpoints.
type ItemsHandler struct {
	Items *items.Manager
}

type statusRequest struct {
	Status string `json:"status"`
}

type bulkRequest struct {
	IDs    []int64 `json:"ids"`
	Status string  `json:"status"`
}

// itemFilter reads the listing filters shared by listing and export.
func itemFilter(r *http.Request) model.ItemFilter {
	q := r.URL.Query()
	return model.ItemFilter{
		Query:    strings.TrimSpace(q.Get("q")),
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Vendor:   q.Get("vendor"),
		Project:  q.Get("project"),
		Room:     q.Get("room"),
	}
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid page")
		return
	}
	perPage, ok := queryInt(r, "per_page")
	if !ok || perPage > 1000 {
		jsonError(w, http.StatusBadRequest, "invalid per_page")
		return
	}

	result, err := h.Items.List(r.Context(), itemFilter(r), page, perPage)
	if err != nil {
		serviceError(w, r, err, "failed to list items")
		return
	}
	if result.Items == nil {
		result.Items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, result)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.NewItem
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Items.Create(r.Context(), req)
	if err != nil {
		serviceError(w, r, err, "failed to create item")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.Items.Get(r.Context(), id)
	if err != nil {
		serviceError(w, r, err, "failed to get item")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}. Omitted fields keep their values.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var patch model.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Items.Update(r.Context(), id, patch)
	if err != nil {
		serviceError(w, r, err, "failed to update item")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.Items.Delete(r.Context(), id); err != nil {
		serviceError(w, r, err, "failed to delete item")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// SetStatus handles PUT /api/items/{id}/status.
func (h *ItemsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Items.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		serviceError(w, r, err, "failed to change item status")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// BulkDelete handles POST /api/items/bulk-delete.
func (h *ItemsHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.Items.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		serviceError(w, r, err, "failed to delete items")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"deleted": n})
}

// BulkStatus handles POST /api/items/bulk-status.
func (h *ItemsHandler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.Items.BulkSetStatus(r.Context(), req.IDs, req.Status)
	if err != nil {
		serviceError(w, r, err, "failed to change item statuses")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"updated": n})
}
