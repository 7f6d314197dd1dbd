package handler

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
)

var startTime = time.Now()

// Counter reports how many records an entity class holds.
type Counter func(ctx context.Context) (int, error)

// HealthHandler handles health check and stats endpoints.
type HealthHandler struct {
	dataRoot string
	counters map[domain.EntityClass]Counter
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(dataRoot string, counters map[domain.EntityClass]Counter) *HealthHandler {
	return &HealthHandler{
		dataRoot: dataRoot,
		counters: counters,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatsResponse reports record counts per entity class.
type StatsResponse struct {
	UptimeSeconds int64          `json:"uptime_seconds"`
	Records       map[string]int `json:"records"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. The service is ready when its
// data root exists and is reachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(h.dataRoot); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Stats handles GET /api/v1/stats. Counting never decrypts a record.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	records := make(map[string]int, len(h.counters))
	for class, count := range h.counters {
		n, err := count(r.Context())
		if err != nil {
			n = -1
		}
		records[string(class)] = n
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Records:       records,
	})
}
