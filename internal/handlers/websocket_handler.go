package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skintrack/server/internal/observability"
	"github.com/skintrack/server/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Callers are already authenticated by key and owner
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub    *services.WebSocketHub
	logger *observability.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.WebSocketHub, logger *observability.Logger) *WebSocketHandler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &WebSocketHandler{hub: hub, logger: logger.WithField("handler", "websocket")}
}

// HandleConnection upgrades HTTP to WebSocket and registers the caller for
// summary pushes
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := h.hub.NewClient(uuid.New().String(), ownerID, conn)
	h.hub.Register(client)

	// Start the write pump in a goroutine
	go client.WritePump()

	// Run the read pump (blocks until connection closes)
	client.ReadPump(h.handleMessage)
}

// handleMessage answers pings; clients send nothing else
func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg services.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.WithError(err).Debug("Invalid WebSocket message")
		return
	}

	switch msg.Type {
	case services.WSTypePing:
		h.hub.SendToOwner(client.OwnerID, services.WSMessage{Type: services.WSTypePong})
	default:
		h.logger.Debugf("Unknown WebSocket message type: %s", msg.Type)
	}
}
