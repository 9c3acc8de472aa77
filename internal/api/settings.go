package api

import (
	"net/http"

	"github.com/erazemk/popis/internal/blob"
	"github.com/erazemk/popis/internal/config"
	"github.com/erazemk/popis/internal/model"
)

// SettingsHandler exposes the runtime settings clients need.
type SettingsHandler struct {
	Settings        *config.Live
	Media           blob.Store
	ReceiptsEnabled bool
}

type settingsResponse struct {
	config.Settings
	Statuses        []string     `json:"statuses"`
	Kinds           []model.Kind `json:"taxonomy_kinds"`
	MediaDriver     blob.Driver  `json:"media_driver"`
	ReceiptsEnabled bool         `json:"receipts_enabled"`
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, settingsResponse{
		Settings:        h.Settings.Settings(),
		Statuses:        model.Statuses,
		Kinds:           model.Kinds,
		MediaDriver:     h.Media.Driver(),
		ReceiptsEnabled: h.ReceiptsEnabled,
	})
}
