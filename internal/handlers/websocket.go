package handlers

import (
	"net/http"

	"memoryland-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // displays are served from arbitrary kiosk origins
	},
}

// WebSocketHandler handles live display viewer connections
type WebSocketHandler struct {
	hub      *services.DisplayHub
	displays *services.DisplayService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.DisplayHub, displays *services.DisplayService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		displays: displays,
	}
}

// HandleDisplay handles GET /ws/displays/{id}. The caller is checked the
// same way as GET /api/v1/displays/{id} before the upgrade.
func (h *WebSocketHandler) HandleDisplay(w http.ResponseWriter, r *http.Request) {
	displayID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid display id", http.StatusBadRequest)
		return
	}

	cred := displayCredential(r)
	if _, err := h.displays.AuthorizeView(r.Context(), displayID, cred); err != nil {
		respondServiceError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	viewer := h.hub.Register(displayID, cred.Token, conn)
	defer h.hub.Unregister(viewer)

	log.Info().Int64("display_id", displayID).Msg("WebSocket connection established")

	// Viewers only listen; reading drives close detection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Int64("display_id", displayID).Msg("WebSocket error")
			}
			return
		}
	}
}
