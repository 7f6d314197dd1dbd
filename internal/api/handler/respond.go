package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
	"github.com/deshpanderitwik/temenos-sub000/pkg/crypto"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeStoreError maps the error taxonomy onto HTTP statuses. Callers never
// see raw cryptographic errors: a decrypt failure is reported as such, with
// the detail kept in the server log.
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, domain.ErrSerialization):
		logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "record data is corrupt")
	case errors.Is(err, crypto.ErrIntegrity),
		errors.Is(err, crypto.ErrInvalidFormat),
		errors.Is(err, crypto.ErrInvalidVersion):
		logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "decrypt failed")
	case errors.Is(err, crypto.ErrKeyNotConfigured), errors.Is(err, crypto.ErrMalformedKey):
		logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "encryption key not configured")
	default:
		logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
