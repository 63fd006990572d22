package handlers

import (
	"encoding/json"
	"net/http"

	"memoryland-backend/internal/services"
)

// TransactionHandler handles the caller's upload transaction
type TransactionHandler struct {
	txs            *services.TransactionService
	maxUploadBytes int64
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(txs *services.TransactionService, maxUploadBytes int64) *TransactionHandler {
	return &TransactionHandler{
		txs:            txs,
		maxUploadBytes: maxUploadBytes,
	}
}

// BeginTransactionRequest is the body of POST /api/v1/transaction
type BeginTransactionRequest struct {
	AlbumID  int64  `json:"album_id"`
	PathHint string `json:"path_hint"`
}

// Begin handles POST /api/v1/transaction
func (h *TransactionHandler) Begin(w http.ResponseWriter, r *http.Request) {
	var req BeginTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tx, err := h.txs.Begin(r.Context(), identity(r), req.AlbumID, req.PathHint)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// Get handles GET /api/v1/transaction
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.txs.Get(r.Context(), identity(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Close handles DELETE /api/v1/transaction
func (h *TransactionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.txs.Close(r.Context(), identity(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Upload handles POST /api/v1/transaction/photos
func (h *TransactionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	fileName, data, ok := readUpload(w, r, h.maxUploadBytes)
	if !ok {
		return
	}

	photo, err := h.txs.Upload(r.Context(), identity(r), fileName, data)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, photo)
}
