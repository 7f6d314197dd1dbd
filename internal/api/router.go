package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deshpanderitwik/temenos-sub000/internal/api/handler"
	mw "github.com/deshpanderitwik/temenos-sub000/internal/api/middleware"
	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Conversations *handler.EntityHandler[*domain.Conversation]
	Narratives    *handler.EntityHandler[*domain.Narrative]
	SystemPrompts *handler.EntityHandler[*domain.SystemPrompt]
	Contexts      *handler.EntityHandler[*domain.ContextNote]
	Images        *handler.ImageHandler
	Migration     *handler.MigrationHandler
	Transport     *handler.TransportHandler
	Health        *handler.HealthHandler
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h Handlers, apiKey string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS for the browser client
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", h.Health.Live)
	r.Get("/ready", h.Health.Ready)

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Get("/stats", h.Health.Stats)

		mountEntity(r, "/conversations", h.Conversations)
		mountEntity(r, "/narratives", h.Narratives)
		mountEntity(r, "/system-prompts", h.SystemPrompts)
		mountEntity(r, "/contexts", h.Contexts)

		// Images split blob and metadata, so listing is index-only
		r.Post("/images", h.Images.Upload)
		r.Get("/images", h.Images.List)
		r.Get("/images/{id}", h.Images.Get)
		r.Get("/images/{id}/content", h.Images.ServeContent)
		r.Delete("/images/{id}", h.Images.Delete)

		// Batch re-encryption of legacy records
		r.Post("/migration/{class}/run", h.Migration.Run)
		r.Get("/migration/{class}/status", h.Migration.Status)

		// Transport cipher primitives for short-lived payloads
		r.Post("/transport/seal", h.Transport.Seal)
		r.Post("/transport/open", h.Transport.Open)
	})

	return r
}

func mountEntity[T domain.Entity](r chi.Router, path string, h *handler.EntityHandler[T]) {
	r.Route(path, func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}
