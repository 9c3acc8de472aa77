package api

import (
	"net/http"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/taxonomy"
)

// TaxonomyHandler handles the controlled vocabularies.
type TaxonomyHandler struct {
	Registry *taxonomy.Registry
}

type optionRequest struct {
	Name string `json:"name"`
}

type bulkOptionsRequest struct {
	Names []string `json:"names"`
}

// All handles GET /api/taxonomy.
func (h *TaxonomyHandler) All(w http.ResponseWriter, r *http.Request) {
	all, err := h.Registry.All(r.Context())
	if err != nil {
		serviceError(w, r, err, "failed to list taxonomy")
		return
	}
	jsonResponse(w, http.StatusOK, all)
}

// List handles GET /api/taxonomy/{kind}.
func (h *TaxonomyHandler) List(w http.ResponseWriter, r *http.Request) {
	options, err := h.Registry.List(r.Context(), model.Kind(r.PathValue("kind")))
	if err != nil {
		serviceError(w, r, err, "failed to list options")
		return
	}
	jsonResponse(w, http.StatusOK, nonNil(options))
}

// Add handles POST /api/taxonomy/{kind}.
func (h *TaxonomyHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req optionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	options, err := h.Registry.Add(r.Context(), model.Kind(r.PathValue("kind")), req.Name)
	if err != nil {
		serviceError(w, r, err, "failed to add option")
		return
	}
	jsonResponse(w, http.StatusCreated, nonNil(options))
}

// Delete handles DELETE /api/taxonomy/{kind}/{name}.
func (h *TaxonomyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	options, err := h.Registry.Delete(r.Context(), model.Kind(r.PathValue("kind")), r.PathValue("name"))
	if err != nil {
		serviceError(w, r, err, "failed to delete option")
		return
	}
	jsonResponse(w, http.StatusOK, nonNil(options))
}

// BulkDelete handles POST /api/taxonomy/{kind}/bulk-delete.
func (h *TaxonomyHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkOptionsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.Registry.BulkDelete(r.Context(), model.Kind(r.PathValue("kind")), req.Names)
	if err != nil {
		serviceError(w, r, err, "failed to delete options")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"deleted": n})
}

func nonNil(options []model.Option) []model.Option {
	if options == nil {
		return []model.Option{}
	}
	return options
}
