package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/eventclock/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// Service is the timer gateway: REST control and poll endpoints, the
// WebSocket push channel, and the broadcaster feeding it
type Service struct {
	connectionManager *ConnectionManager
	broadcaster       *Broadcaster
	wsHandler         *WebSocketHandler
	timerHandler      *TimerHandler
}

// Config holds configuration for the timer gateway service
type Config struct {
	ConnectionConfig  ConnectionConfig
	BroadcastInterval time.Duration
	Presets           map[string]timer.StartRequest
}

// Journal records applied commands and lists them back
type Journal interface {
	CommandObserver
	JournalReader
}

// DefaultConfig returns default configuration for the timer gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig:  DefaultConnectionConfig(),
		BroadcastInterval: 500 * time.Millisecond,
	}
}

// NewService creates a new timer gateway service around controller
func NewService(config Config, controller Controller, clock clockwork.Clock) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	broadcaster := NewBroadcaster(controller, connectionManager, clock, config.BroadcastInterval)

	timerHandler := NewTimerHandler(controller, broadcaster)
	for name, preset := range config.Presets {
		timerHandler.presets[name] = preset
	}

	return &Service{
		connectionManager: connectionManager,
		broadcaster:       broadcaster,
		wsHandler:         NewWebSocketHandler(connectionManager, broadcaster),
		timerHandler:      timerHandler,
	}
}

// AddSink registers an always-on subscriber such as a NATSSink
func (s *Service) AddSink(sink Subscriber) {
	s.connectionManager.Subscribe(sink)
}

// SetJournal enables command journaling and the journal endpoint
func (s *Service) SetJournal(j Journal) {
	s.timerHandler.observers = append(s.timerHandler.observers, j)
	s.timerHandler.journal = j
}

// Start runs the broadcaster until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting timer gateway service")

	s.broadcaster.Run(ctx)

	log.Info().Msg("timer gateway service stopped")
	return nil
}

// RegisterRoutes registers the REST and WebSocket routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.timerHandler.RegisterRoutes(mux)
	log.Info().Msg("timer gateway routes registered")
}

// Stats returns statistics about connected subscribers
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}

// LastEvent returns the most recent push, or nil before the first one
func (s *Service) LastEvent() *TimerEvent {
	return s.broadcaster.LastEvent()
}
