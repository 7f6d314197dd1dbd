package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/deshpanderitwik/temenos-sub000/pkg/crypto"
)

// TransportHandler exposes the transport cipher primitives: sealing and
// opening short-lived payloads (chat turns, prompt text) exchanged with the
// client. Transport blobs are keyed separately from the at-rest data and
// are never persisted.
type TransportHandler struct {
	transport *crypto.Cipher
	logger    *slog.Logger
}

// NewTransportHandler creates a new transport handler.
func NewTransportHandler(transport *crypto.Cipher, logger *slog.Logger) *TransportHandler {
	return &TransportHandler{
		transport: transport,
		logger:    logger,
	}
}

// SealRequest is the JSON request body for sealing.
type SealRequest struct {
	Plaintext string `json:"plaintext"`
}

// SealResponse carries the sealed blob.
type SealResponse struct {
	Blob string `json:"blob"`
}

// OpenRequest is the JSON request body for opening.
type OpenRequest struct {
	Blob string `json:"blob"`
}

// OpenResponse carries the recovered plaintext.
type OpenResponse struct {
	Plaintext string `json:"plaintext"`
}

// Seal handles POST /api/v1/transport/seal
func (h *TransportHandler) Seal(w http.ResponseWriter, r *http.Request) {
	var req SealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	blob, err := h.transport.Encrypt([]byte(req.Plaintext))
	if err != nil {
		h.logger.Error("transport seal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "encrypt failed")
		return
	}

	writeJSON(w, http.StatusOK, SealResponse{Blob: blob})
}

// Open handles POST /api/v1/transport/open. A blob sealed under a
// different key, or tampered in flight, is the client's error, not the
// server's: it maps to 400.
func (h *TransportHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plaintext, err := h.transport.SmartDecrypt(req.Blob)
	if err != nil {
		if errors.Is(err, crypto.ErrIntegrity) ||
			errors.Is(err, crypto.ErrInvalidFormat) ||
			errors.Is(err, crypto.ErrInvalidVersion) {
			writeError(w, http.StatusBadRequest, "payload cannot be opened")
			return
		}
		h.logger.Error("transport open failed", "error", err)
		writeError(w, http.StatusInternalServerError, "decrypt failed")
		return
	}

	writeJSON(w, http.StatusOK, OpenResponse{Plaintext: string(plaintext)})
}
