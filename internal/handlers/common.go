package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"memoryland-backend/internal/middleware"
	"memoryland-backend/internal/models"
	"memoryland-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// displayTokenHeader carries a display access token for clients that can't
// put it in the query string
const displayTokenHeader = "X-Display-Token"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// NameRequest is the body of create and rename requests
type NameRequest struct {
	Name string `json:"name"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// respondServiceError maps a service error onto a status code. Anything
// outside the service taxonomy is logged and reported as a 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, verr.Reason, http.StatusBadRequest)
	case errors.Is(err, services.ErrUnauthenticated):
		respondError(w, "authentication required", http.StatusUnauthorized)
	case errors.Is(err, services.ErrUnauthorized):
		respondError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, services.ErrNotFound):
		respondError(w, "not found", http.StatusNotFound)
	case errors.Is(err, services.ErrConflict):
		respondError(w, "conflict", http.StatusConflict)
	default:
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}

// identity returns the session identity put in context by the auth
// middleware. Routes behind Authenticate always have one.
func identity(r *http.Request) models.Identity {
	if id := middleware.GetIdentity(r.Context()); id != nil {
		return *id
	}
	return models.Identity{}
}

// pathID parses a numeric URL parameter
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// displayCredential collects whatever the caller presented for a display
func displayCredential(r *http.Request) services.Credential {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get(displayTokenHeader)
	}
	return services.Credential{
		Identity: middleware.GetIdentity(r.Context()),
		Token:    token,
	}
}

func decodeName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req NameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return "", false
	}
	return req.Name, true
}
