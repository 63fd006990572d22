package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DisplayNotifier is told about changes that live viewers must see
type DisplayNotifier interface {
	DisplayChanged(displayID int64)
	TokenRevoked(displayID int64, token string)
	DisplayDeleted(displayID int64)
}

type noopNotifier struct{}

func (noopNotifier) DisplayChanged(int64)       {}
func (noopNotifier) TokenRevoked(int64, string) {}
func (noopNotifier) DisplayDeleted(int64)       {}

// WS message types
const (
	MessageDisplayUpdated = "display_updated"
	MessageTokenRevoked   = "token_revoked"
	MessageDisplayDeleted = "display_deleted"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string `json:"type"`
	DisplayID int64  `json:"display_id"`
	Timestamp int64  `json:"timestamp"`
}

const (
	// Time allowed to write a message to a viewer
	writeWait = 10 * time.Second

	// Messages queued per viewer before it counts as stalled
	viewerQueueSize = 16
)

// ViewerConn is the part of a websocket connection the hub writes to
type ViewerConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type outbound struct {
	data  []byte
	close bool
}

// Viewer is one live connection watching a display. Token is empty for
// viewers that connected with a session. Messages reach the connection
// through a queue drained by the viewer's own writer goroutine, so a
// stalled peer never blocks the request that triggered the broadcast.
type Viewer struct {
	DisplayID int64
	Token     string

	conn      ViewerConn
	queue     chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

// enqueue hands a message to the writer without blocking. It reports false
// when the queue is full or the viewer is already closed.
func (v *Viewer) enqueue(msg outbound) bool {
	select {
	case <-v.done:
		return false
	default:
	}
	select {
	case v.queue <- msg:
		return true
	default:
		return false
	}
}

// shutdown closes the connection once, which also unblocks a pending write
func (v *Viewer) shutdown() {
	v.closeOnce.Do(func() {
		close(v.done)
		v.conn.Close()
	})
}

func (v *Viewer) writeLoop(h *DisplayHub) {
	for {
		select {
		case <-v.done:
			return
		case msg := <-v.queue:
			if msg.data != nil {
				v.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := v.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					log.Warn().Err(err).Int64("display_id", v.DisplayID).Msg("Failed to send display message")
					h.Unregister(v)
					// already detached when the message was a farewell
					v.shutdown()
					return
				}
			}
			if msg.close {
				v.shutdown()
				return
			}
		}
	}
}

// DisplayHub manages live display viewers
type DisplayHub struct {
	mu      sync.RWMutex
	viewers map[int64]map[*Viewer]struct{}
}

// NewDisplayHub creates a new display hub
func NewDisplayHub() *DisplayHub {
	return &DisplayHub{
		viewers: make(map[int64]map[*Viewer]struct{}),
	}
}

// Register adds a connection watching displayID
func (h *DisplayHub) Register(displayID int64, token string, conn ViewerConn) *Viewer {
	v := &Viewer{
		DisplayID: displayID,
		Token:     token,
		conn:      conn,
		queue:     make(chan outbound, viewerQueueSize),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	if h.viewers[displayID] == nil {
		h.viewers[displayID] = make(map[*Viewer]struct{})
	}
	h.viewers[displayID][v] = struct{}{}
	h.mu.Unlock()

	go v.writeLoop(h)

	log.Info().Int64("display_id", displayID).Msg("Display viewer registered")
	return v
}

// Unregister removes and closes a viewer. It is safe to call twice.
func (h *DisplayHub) Unregister(v *Viewer) {
	if h.detach(v) {
		v.shutdown()
		log.Info().Int64("display_id", v.DisplayID).Msg("Display viewer unregistered")
	}
}

// detach removes a viewer from the hub without closing it. It reports
// whether the viewer was still registered.
func (h *DisplayHub) detach(v *Viewer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.viewers[v.DisplayID]
	if !ok {
		return false
	}
	if _, present := set[v]; !present {
		return false
	}
	delete(set, v)
	if len(set) == 0 {
		delete(h.viewers, v.DisplayID)
	}
	return true
}

// ViewerCount returns the number of live viewers of a display
func (h *DisplayHub) ViewerCount(displayID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers[displayID])
}

// CloseAll disconnects every viewer, used on shutdown
func (h *DisplayHub) CloseAll() {
	h.mu.Lock()
	var all []*Viewer
	for _, set := range h.viewers {
		for v := range set {
			all = append(all, v)
		}
	}
	h.viewers = make(map[int64]map[*Viewer]struct{})
	h.mu.Unlock()

	for _, v := range all {
		v.shutdown()
	}
	log.Info().Int("viewers", len(all)).Msg("Display viewers closed")
}

func (h *DisplayHub) snapshot(displayID int64, match func(*Viewer) bool) []*Viewer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Viewer
	for v := range h.viewers[displayID] {
		if match == nil || match(v) {
			out = append(out, v)
		}
	}
	return out
}

func encode(messageType string, displayID int64) ([]byte, error) {
	data, err := json.Marshal(WSMessage{
		Type:      messageType,
		DisplayID: displayID,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// broadcast queues a message for matching viewers. With disconnect the
// viewers leave the hub at once and their connections close after the
// message is written. A viewer whose queue is full is dropped.
func (h *DisplayHub) broadcast(displayID int64, messageType string, match func(*Viewer) bool, disconnect bool) {
	viewers := h.snapshot(displayID, match)
	if len(viewers) == 0 {
		return
	}
	data, err := encode(messageType, displayID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode display message")
		return
	}
	for _, v := range viewers {
		if disconnect {
			if !h.detach(v) {
				continue
			}
			if !v.enqueue(outbound{data: data, close: true}) {
				v.shutdown()
			}
			continue
		}
		if !v.enqueue(outbound{data: data}) {
			log.Warn().Int64("display_id", displayID).Msg("Display viewer stalled, dropping it")
			h.Unregister(v)
		}
	}
}

// DisplayChanged tells every viewer to reload the display
func (h *DisplayHub) DisplayChanged(displayID int64) {
	h.broadcast(displayID, MessageDisplayUpdated, nil, false)
}

// TokenRevoked disconnects viewers that connected with token
func (h *DisplayHub) TokenRevoked(displayID int64, token string) {
	h.broadcast(displayID, MessageTokenRevoked, func(v *Viewer) bool {
		return v.Token != "" && v.Token == token
	}, true)
}

// DisplayDeleted disconnects every viewer of the display
func (h *DisplayHub) DisplayDeleted(displayID int64) {
	h.broadcast(displayID, MessageDisplayDeleted, nil, true)
}
