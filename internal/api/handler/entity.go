package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deshpanderitwik/temenos-sub000/internal/audit"
	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
	"github.com/deshpanderitwik/temenos-sub000/internal/store"
)

// EntityHandler serves the CRUD surface for one JSON entity class. The same
// handler type backs conversations, narratives, system prompts and context
// notes; only the store's record type differs.
type EntityHandler[T domain.Entity] struct {
	store  *store.Store[T]
	trail  *audit.Trail
	logger *slog.Logger
}

// NewEntityHandler creates a handler bound to one store.
func NewEntityHandler[T domain.Entity](st *store.Store[T], trail *audit.Trail, logger *slog.Logger) *EntityHandler[T] {
	return &EntityHandler[T]{
		store:  st,
		trail:  trail,
		logger: logger,
	}
}

// ListResponse contains record summaries, newest first.
type ListResponse struct {
	Records []domain.Summary `json:"records"`
	Total   int              `json:"total"`
}

// List handles GET /api/v1/{class}
func (h *EntityHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "list", err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Records: summaries,
		Total:   len(summaries),
	})
}

// Get handles GET /api/v1/{class}/{id}
func (h *EntityHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing record ID")
		return
	}

	rec, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "get", err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Create handles POST /api/v1/{class}. A body without an ID gets one
// assigned; a body carrying an ID overwrites that record.
func (h *EntityHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	rec := h.store.NewRecord()
	if err := json.NewDecoder(r.Body).Decode(rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.Save(r.Context(), rec); err != nil {
		writeStoreError(w, h.logger, "save", err)
		return
	}

	h.trail.Record(r.Context(), string(h.store.Class()), "save", rec.EntityID())
	writeJSON(w, http.StatusCreated, rec)
}

// Update handles PUT /api/v1/{class}/{id}. The path ID wins over any ID in
// the body; the save replaces the record wholesale.
func (h *EntityHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing record ID")
		return
	}

	rec := h.store.NewRecord()
	if err := json.NewDecoder(r.Body).Decode(rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec.SetEntityID(id)

	if err := h.store.Save(r.Context(), rec); err != nil {
		writeStoreError(w, h.logger, "save", err)
		return
	}

	h.trail.Record(r.Context(), string(h.store.Class()), "save", id)
	writeJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/v1/{class}/{id}
func (h *EntityHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing record ID")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "delete", err)
		return
	}

	h.trail.Record(r.Context(), string(h.store.Class()), "delete", id)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
