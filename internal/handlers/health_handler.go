package handlers

import (
	"net/http"
	"time"

	"github.com/skintrack/server/internal/models"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	sessions    func() int
	connections func() int
}

// NewHealthHandler creates a new HealthHandler. Either counter may be nil.
func NewHealthHandler(sessions, connections func() int) *HealthHandler {
	return &HealthHandler{sessions: sessions, connections: connections}
}

// HealthCheck returns the server health status
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	}
	if h.sessions != nil {
		response.LiveSessions = h.sessions()
	}
	if h.connections != nil {
		response.Connections = h.connections()
	}

	respondJSON(w, http.StatusOK, response)
}
