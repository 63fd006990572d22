package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// DisplayHandler handles display, slot and access token requests
type DisplayHandler struct {
	displays *services.DisplayService
	tokens   *services.TokenService
}

// NewDisplayHandler creates a new display handler
func NewDisplayHandler(displays *services.DisplayService, tokens *services.TokenService) *DisplayHandler {
	return &DisplayHandler{
		displays: displays,
		tokens:   tokens,
	}
}

// CreateDisplayRequest is the body of POST /api/v1/displays
type CreateDisplayRequest struct {
	Name   string `json:"name"`
	TypeID int64  `json:"type_id"`
}

// AssignSlotRequest is the body of PUT /api/v1/displays/{id}/slots/{position}
type AssignSlotRequest struct {
	PhotoID int64 `json:"photo_id"`
}

// ListDisplayTypes handles GET /api/v1/display-types
func (h *DisplayHandler) ListDisplayTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.displays.ListDisplayTypes(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"display_types": types})
}

// ListDisplays handles GET /api/v1/displays
func (h *DisplayHandler) ListDisplays(w http.ResponseWriter, r *http.Request) {
	displays, err := h.displays.GetDisplaysForOwner(r.Context(), identity(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"displays": displays})
}

// CreateDisplay handles POST /api/v1/displays
func (h *DisplayHandler) CreateDisplay(w http.ResponseWriter, r *http.Request) {
	var req CreateDisplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	caller := identity(r)
	display, err := h.displays.CreateDisplay(r.Context(), caller, req.Name, req.TypeID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	log.Info().
		Int64("user_id", caller.UserID).
		Int64("display_id", display.ID).
		Msg("Display created")

	respondJSON(w, http.StatusCreated, display)
}

// GetDisplay handles GET /api/v1/displays/{id}. The caller may present a
// session, a display token, or both.
func (h *DisplayHandler) GetDisplay(w http.ResponseWriter, r *http.Request) {
	displayID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid display id", http.StatusBadRequest)
		return
	}

	view, err := h.displays.GetFullDisplay(r.Context(), displayID, displayCredential(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// RenameDisplay handles PATCH /api/v1/displays/{id}
func (h *DisplayHandler) RenameDisplay(w http.ResponseWriter, r *http.Request) {
	displayID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid display id", http.StatusBadRequest)
		return
	}
	name, ok := decodeName(w, r)
	if !ok {
		return
	}

	if err := h.displays.RenameDisplay(r.Context(), identity(r), displayID, name); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDisplay handles DELETE /api/v1/displays/{id}
func (h *DisplayHandler) DeleteDisplay(w http.ResponseWriter, r *http.Request) {
	displayID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid display id", http.StatusBadRequest)
		return
	}

	if err := h.displays.DeleteDisplay(r.Context(), identity(r), displayID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignSlot handles PUT /api/v1/displays/{id}/slots/{position}
func (h *DisplayHandler) AssignSlot(w http.ResponseWriter, r *http.Request) {
	displayID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid display id", http.StatusBadRequest)
		return
	}
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		respondError(w, "invalid position", http.StatusBadRequest)
		return
	}
	var req AssignSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	slot, err := h.displays.AssignSlot(r.Context(), identity(r), displayID, position, req.PhotoID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, slot)
}

// RemoveSlot handles DELETE /api/v1/slots/{id}
func (h *DisplayHandler) RemoveSlot(w http.ResponseWriter, r *http.Request) {
	slotID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid slot id", http.StatusBadRequest)
		return
	}

	if err := h.displays.RemoveSlot(r.Context(), identity(r), slotID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTokens handles GET /api/v1/displays/{id}/tokens
func (h *DisplayHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	displayID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid display id", http.StatusBadRequest)
		return
	}

	tokens, err := h.tokens.List(r.Context(), displayID, identity(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

// IssueToken handles POST /api/v1/displays/{id}/tokens/{kind}. Issuing a
// kind that already has a token rotates it.
func (h *DisplayHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	displayID, kind, ok := tokenParams(w, r)
	if !ok {
		return
	}

	token, err := h.tokens.Issue(r.Context(), displayID, kind, identity(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, token)
}

// RevokeToken handles DELETE /api/v1/displays/{id}/tokens/{kind}
func (h *DisplayHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	displayID, kind, ok := tokenParams(w, r)
	if !ok {
		return
	}

	if err := h.tokens.Revoke(r.Context(), displayID, kind, identity(r).UserID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func tokenParams(w http.ResponseWriter, r *http.Request) (int64, models.TokenKind, bool) {
	displayID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid display id", http.StatusBadRequest)
		return 0, "", false
	}
	kind := models.TokenKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		respondError(w, "token kind must be internal or public", http.StatusBadRequest)
		return 0, "", false
	}
	return displayID, kind, true
}
