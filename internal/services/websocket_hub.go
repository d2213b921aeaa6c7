package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skintrack/server/internal/checkin"
	"github.com/skintrack/server/internal/observability"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Message types
const (
	WSTypeSummaryReady = "summary_ready"
	WSTypeError        = "error"
	WSTypePing         = "ping"
	WSTypePong         = "pong"
)

// SummaryReadyPayload is pushed to the owner when a summary resolves
type SummaryReadyPayload struct {
	TestCheckinID string                `json:"testCheckinId"`
	Status        checkin.SummaryStatus `json:"status"`
	Summary       string                `json:"summary,omitempty"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	ID         string
	OwnerID    string
	Conn       *websocket.Conn
	Send       chan []byte
	hub        *WebSocketHub
	mu         sync.Mutex
	closedOnce sync.Once
}

// WebSocketHub fans messages out to every connection of an owner
type WebSocketHub struct {
	clients    map[*WSClient]bool
	ownerConns map[string]map[*WSClient]bool
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan *ownerMsg
	done       chan struct{}
	mu         sync.RWMutex
	logger     *observability.Logger
}

type ownerMsg struct {
	ownerID string
	message []byte
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(logger *observability.Logger) *WebSocketHub {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &WebSocketHub{
		clients:    make(map[*WSClient]bool),
		ownerConns: make(map[string]map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan *ownerMsg, 256),
		done:       make(chan struct{}),
		logger:     logger.WithField("component", "websocket_hub"),
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.ownerConns[client.OwnerID] == nil {
				h.ownerConns[client.OwnerID] = make(map[*WSClient]bool)
			}
			h.ownerConns[client.OwnerID][client] = true
			h.mu.Unlock()
			h.logger.WithField("client_id", client.ID).Debug("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			h.logger.WithField("client_id", client.ID).Debug("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.ownerConns[msg.ownerID] {
				select {
				case client.Send <- msg.message:
				default:
					// Client buffer full, drop it
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *WebSocketHub) removeLocked(client *WSClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if conns, ok := h.ownerConns[client.OwnerID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.ownerConns, client.OwnerID)
		}
	}
	close(client.Send)
}

// Register adds a client to the hub
func (h *WebSocketHub) Register(client *WSClient) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister removes a client from the hub
func (h *WebSocketHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToOwner sends a message to all connections of one owner
func (h *WebSocketHub) SendToOwner(ownerID string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("Error marshaling WebSocket message")
		return
	}

	select {
	case h.broadcast <- &ownerMsg{ownerID: ownerID, message: data}:
	case <-h.done:
	default:
		h.logger.WithField("owner_id", ownerID).Warn("WebSocket broadcast queue full, dropping message")
	}
}

// NotifySummary pushes a resolved summary to its owner. It has the shape
// of the check-in manager's OnSummary hook.
func (h *WebSocketHub) NotifySummary(ownerID string, result checkin.SummaryResult) {
	h.SendToOwner(ownerID, WSMessage{
		Type: WSTypeSummaryReady,
		Payload: SummaryReadyPayload{
			TestCheckinID: result.TestCheckinID,
			Status:        result.Status,
			Summary:       result.Summary,
		},
	})
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetOwnerConnectionCount returns the number of connections an owner has open
func (h *WebSocketHub) GetOwnerConnectionCount(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ownerConns[ownerID])
}

// NewClient creates a new WebSocket client for an owner
func (h *WebSocketHub) NewClient(id, ownerID string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ID:      id,
		OwnerID: ownerID,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		hub:     h,
	}
}

// Close closes the client connection
func (c *WSClient) Close() {
	c.closedOnce.Do(func() {
		c.hub.Unregister(c)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// WritePump pumps messages from the hub to the websocket connection
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.mu.Lock()
			err := c.Conn.WriteMessage(websocket.TextMessage, message)
			c.mu.Unlock()

			if err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads client frames until the connection drops
func (c *WSClient) ReadPump(onMessage func(client *WSClient, messageType int, data []byte)) {
	defer c.Close()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Warn("WebSocket read error")
			}
			break
		}

		if onMessage != nil {
			onMessage(c, messageType, message)
		}
	}
}
