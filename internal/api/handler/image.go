package handler

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deshpanderitwik/temenos-sub000/internal/audit"
	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
	"github.com/deshpanderitwik/temenos-sub000/internal/store"
)

// ImageHandler handles image upload, listing and retrieval.
type ImageHandler struct {
	images *store.ImageStore
	trail  *audit.Trail
	logger *slog.Logger
}

// NewImageHandler creates a new image handler.
func NewImageHandler(images *store.ImageStore, trail *audit.Trail, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		images: images,
		trail:  trail,
		logger: logger,
	}
}

// UploadRequest is the JSON request body for image upload.
type UploadRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded image bytes
}

// ImageListResponse contains the metadata index, newest first.
type ImageListResponse struct {
	Images []domain.ImageMeta `json:"images"`
	Total  int                `json:"total"`
}

// GetResponse carries one image's metadata plus its base64 content.
type GetResponse struct {
	domain.ImageMeta
	Data string `json:"data"`
}

// List handles GET /api/v1/images. Reads only the index; no blob is
// decrypted.
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	index, err := h.images.List(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "list images", err)
		return
	}

	if index == nil {
		index = []domain.ImageMeta{}
	}
	writeJSON(w, http.StatusOK, ImageListResponse{
		Images: index,
		Total:  len(index),
	})
}

// Get handles GET /api/v1/images/{id}
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing image ID")
		return
	}

	meta, data, err := h.images.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "get image", err)
		return
	}

	writeJSON(w, http.StatusOK, GetResponse{
		ImageMeta: *meta,
		Data:      base64.StdEncoding.EncodeToString(data),
	})
}

// ServeContent handles GET /api/v1/images/{id}/content, returning the raw
// decrypted bytes with the indexed mime type so the client can use the URL
// directly in an <img> tag.
func (h *ImageHandler) ServeContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing image ID")
		return
	}

	meta, data, err := h.images.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "get image", err)
		return
	}

	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Upload handles POST /api/v1/images
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image data is not valid base64")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "image data is empty")
		return
	}

	meta := &domain.ImageMeta{
		ID:       req.ID,
		Title:    req.Title,
		Filename: req.Filename,
		MimeType: req.MimeType,
	}

	if err := h.images.Save(r.Context(), meta, data); err != nil {
		writeStoreError(w, h.logger, "save image", err)
		return
	}

	h.trail.Record(r.Context(), string(domain.ClassImages), "save", meta.ID)
	writeJSON(w, http.StatusCreated, meta)
}

// Delete handles DELETE /api/v1/images/{id}
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing image ID")
		return
	}

	if err := h.images.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "delete image", err)
		return
	}

	h.trail.Record(r.Context(), string(domain.ClassImages), "delete", id)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
