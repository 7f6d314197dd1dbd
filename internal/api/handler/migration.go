package handler

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/deshpanderitwik/temenos-sub000/internal/audit"
	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
	"github.com/deshpanderitwik/temenos-sub000/internal/migrate"
	"github.com/deshpanderitwik/temenos-sub000/internal/store"
)

// MigrationHandler exposes the batch re-encryption job over HTTP.
type MigrationHandler struct {
	job      *migrate.Job
	dataRoot string
	images   *store.ImageStore
	trail    *audit.Trail
	logger   *slog.Logger

	// One run per class at a time; a concurrent trigger for the same class
	// would race on the same files.
	mu      sync.Mutex
	running map[domain.EntityClass]bool
}

// NewMigrationHandler creates a new migration handler.
func NewMigrationHandler(job *migrate.Job, dataRoot string, images *store.ImageStore, trail *audit.Trail, logger *slog.Logger) *MigrationHandler {
	return &MigrationHandler{
		job:      job,
		dataRoot: dataRoot,
		images:   images,
		trail:    trail,
		logger:   logger,
		running:  make(map[domain.EntityClass]bool),
	}
}

func (h *MigrationHandler) acquire(class domain.EntityClass) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running[class] {
		return false
	}
	h.running[class] = true
	return true
}

func (h *MigrationHandler) release(class domain.EntityClass) {
	h.mu.Lock()
	delete(h.running, class)
	h.mu.Unlock()
}

// Run handles POST /api/v1/migration/{class}/run
func (h *MigrationHandler) Run(w http.ResponseWriter, r *http.Request) {
	class, err := domain.ParseEntityClass(chi.URLParam(r, "class"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.acquire(class) {
		writeError(w, http.StatusConflict, "migration already running for this class")
		return
	}
	defer h.release(class)

	var result *migrate.Result
	if class == domain.ClassImages {
		result, err = h.job.RunImages(r.Context(), h.images)
	} else {
		result, err = h.job.RunDir(r.Context(), class, filepath.Join(h.dataRoot, string(class)))
	}
	if err != nil {
		h.logger.Error("migration run failed", "class", class, "error", err)
		writeError(w, http.StatusInternalServerError, "migration failed")
		return
	}

	h.trail.RecordMigration(r.Context(), string(class), result.MigratedCount, result.SkippedCount, result.ErrorCount)
	writeJSON(w, http.StatusOK, result)
}

// Status handles GET /api/v1/migration/{class}/status
func (h *MigrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	class, err := domain.ParseEntityClass(chi.URLParam(r, "class"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var status *migrate.Status
	if class == domain.ClassImages {
		status, err = h.job.StatusImages(r.Context(), h.images)
	} else {
		status, err = h.job.StatusDir(r.Context(), class, filepath.Join(h.dataRoot, string(class)))
	}
	if err != nil {
		h.logger.Error("migration status failed", "class", class, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute migration status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}
