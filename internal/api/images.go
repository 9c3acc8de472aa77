package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/popis/internal/audit"
	"github.com/erazemk/popis/internal/blob"
	"github.com/erazemk/popis/internal/ident"
	"github.com/erazemk/popis/internal/imaging"
	"github.com/erazemk/popis/internal/items"
	"github.com/erazemk/popis/internal/model"
)

// maxImageBytes bounds a single photo upload.
const maxImageBytes = 10 << 20

// ImagesHandler stores item photos and serves stored media.
type ImagesHandler struct {
	Items   *items.Manager
	Media   blob.Store
	URLs    *ident.Resolver
	Options imaging.Options
}

// readImage normalises the multipart "image" field of r.
func readImage(w http.ResponseWriter, r *http.Request, opts imaging.Options) (*imaging.Photo, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return nil, false
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return nil, false
	}
	defer file.Close()

	photo, err := imaging.Normalize(file, opts)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image must be JPEG, PNG, or WebP")
		return nil, false
	}
	return photo, true
}

// Upload handles PUT /api/items/{id}/images/{kind}, kind being product or
// receipt.
func (h *ImagesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	kind := r.PathValue("kind")
	if kind != "product" && kind != "receipt" {
		jsonError(w, http.StatusBadRequest, "image kind must be product or receipt")
		return
	}

	if _, err := h.Items.Get(r.Context(), id); err != nil {
		serviceError(w, r, err, "failed to get item")
		return
	}

	photo, ok := readImage(w, r, h.Options)
	if !ok {
		return
	}

	key := fmt.Sprintf("items/%d/%s-%s%s", id, kind, photo.Hash[:16], photo.Ext())
	if err := h.Media.Put(r.Context(), key, bytes.NewReader(photo.Data), photo.MIME); err != nil {
		slog.Error("storing image", "item", id, "key", key, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	url := blob.URL(h.URLs.BaseURL(r.Context()), key)
	var patch model.ItemPatch
	if kind == "product" {
		patch.ProductImageURL = &url
	} else {
		patch.ReceiptImageURL = &url
	}

	item, err := h.Items.Update(r.Context(), id, patch)
	if err != nil {
		serviceError(w, r, err, "failed to save image")
		return
	}

	slog.Info("item image stored", "actor", audit.ActorFrom(r.Context()), "item", item.Name, "kind", kind,
		"key", key, "width", photo.Width, "height", photo.Height)
	jsonResponse(w, http.StatusOK, item)
}

// Serve handles GET /media/{key...}.
func (h *ImagesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key, err := blob.CleanKey(r.PathValue("key"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid media key")
		return
	}

	body, obj, err := h.Media.Get(r.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		slog.Error("reading media", "key", key, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to read media")
		return
	}
	defer body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("sending media", "key", key, "error", err)
	}
}
