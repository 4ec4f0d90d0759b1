package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for timer_update pushes
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	broadcaster       *Broadcaster
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, broadcaster *Broadcaster) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		broadcaster:       broadcaster,
	}
}

// HandleTimerConnection upgrades the request and pushes the current snapshot
// right away so a reconnecting panel does not wait for the next tick
func (h *WebSocketHandler) HandleTimerConnection(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client")
	if clientID == "" {
		clientID = "anonymous"
	}

	if _, err := h.connectionManager.UpgradeConnection(w, r, clientID, h.broadcaster.Sample(ReasonConnect)); err != nil {
		// The upgrader has already replied to the client
		log.Error().
			Err(err).
			Str("client_id", clientID).
			Msg("failed to upgrade WebSocket connection")
		return
	}
}

// HandleConnectionStats returns statistics about active subscribers
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.Stats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/timer", h.HandleTimerConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
