package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Subscriber receives pushed timer events.
// Deliver returns false once the subscriber is gone; the manager then drops it.
type Subscriber interface {
	ID() string
	Deliver(payload []byte) bool
}

// ConnectionManager is the registry of push subscribers: WebSocket clients and
// any always-on sinks.
type ConnectionManager struct {
	subscribers map[string]Subscriber
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig
}

// Connection represents a WebSocket connection to a control panel
type Connection struct {
	id       string
	ClientID string
	Conn     *websocket.Conn
	Manager  *ConnectionManager

	send   chan []byte
	mu     sync.Mutex
	closed bool

	// Connection metadata
	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// ConnectionStats summarizes the registry
type ConnectionStats struct {
	TotalSubscribers int `json:"total_subscribers"`
	WebSockets       int `json:"websockets"`
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			// Control panels are served from other hosts on the venue network
			return true
		},
	}
}

// NewConnectionManager creates a new subscriber registry
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}

	return &ConnectionManager{
		subscribers: make(map[string]Subscriber),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// Subscribe registers sub. Subscribing an already registered ID is a no-op;
// the return value reports whether sub was added.
func (cm *ConnectionManager) Subscribe(sub Subscriber) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.subscribers[sub.ID()]; exists {
		return false
	}
	cm.subscribers[sub.ID()] = sub

	log.Debug().
		Str("subscriber_id", sub.ID()).
		Int("total_subscribers", len(cm.subscribers)).
		Msg("subscriber registered")
	return true
}

// Unsubscribe removes the subscriber with id, if present
func (cm *ConnectionManager) Unsubscribe(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.subscribers[id]; !exists {
		return
	}
	delete(cm.subscribers, id)

	log.Debug().
		Str("subscriber_id", id).
		Int("total_subscribers", len(cm.subscribers)).
		Msg("subscriber unregistered")
}

// Broadcast delivers event to every subscriber and returns how many accepted it.
// Subscribers that are gone are dropped silently.
func (cm *ConnectionManager) Broadcast(event *TimerEvent) int {
	// Marshal the event once
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return 0
	}

	// Snapshot the subscribers to avoid holding the lock during delivery
	cm.mu.RLock()
	targets := make([]Subscriber, 0, len(cm.subscribers))
	for _, sub := range cm.subscribers {
		targets = append(targets, sub)
	}
	cm.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		if sub.Deliver(payload) {
			delivered++
			continue
		}
		cm.Unsubscribe(sub.ID())
	}

	log.Trace().
		Str("event_type", string(event.Type)).
		Str("reason", string(event.Reason)).
		Int("subscribers", delivered).
		Msg("event broadcasted")

	return delivered
}

// Stats returns statistics about registered subscribers
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{TotalSubscribers: len(cm.subscribers)}
	for _, sub := range cm.subscribers {
		if _, ok := sub.(*Connection); ok {
			stats.WebSockets++
		}
	}
	return stats
}

// UpgradeConnection upgrades an HTTP connection to WebSocket, registers it
// and queues initial as its first message.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, clientID string, initial *TimerEvent) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		id:          uuid.New().String(),
		ClientID:    clientID,
		Conn:        conn,
		Manager:     cm,
		send:        make(chan []byte, cm.config.SendBufferSize),
		ConnectedAt: time.Now(),
	}

	if initial != nil {
		if payload, err := json.Marshal(initial); err == nil {
			connection.Deliver(payload)
		}
	}

	cm.Subscribe(connection)

	// Start connection handlers
	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.id).
		Str("client_id", clientID).
		Msg("WebSocket connection established")

	return connection, nil
}

// ID implements Subscriber
func (c *Connection) ID() string {
	return c.id
}

// Deliver queues payload for the write pump. A closed connection or a full
// buffer reports false; a full buffer also closes the connection.
func (c *Connection) Deliver(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		log.Warn().
			Str("connection_id", c.id).
			Str("client_id", c.ClientID).
			Msg("connection send buffer full, closing connection")
		c.closeLocked()
		return false
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Connection) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Manager.Unsubscribe(c.id)
		c.close()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump keeps the read deadline alive and detects disconnects
func (c *Connection) readPump() {
	defer func() {
		c.Manager.Unsubscribe(c.id)
		c.close()

		log.Info().
			Str("connection_id", c.id).
			Str("client_id", c.ClientID).
			Msg("connection unregistered")
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		// Panels only listen; anything they send is logged and dropped
		log.Debug().
			Str("connection_id", c.id).
			Int("bytes", len(message)).
			Msg("received client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
