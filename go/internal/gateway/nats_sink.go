package gateway

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for mirroring timer_update events to NATS
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       "eventclock.timer.update",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// natsConn is the part of *nats.Conn the sink uses
type natsConn interface {
	Publish(subject string, data []byte) error
	IsClosed() bool
	Drain() error
}

// NATSSink is an always-on subscriber that republishes every timer_update
// on a NATS subject, so overlays and recorders can follow the clock without
// holding a WebSocket.
type NATSSink struct {
	conn    natsConn
	subject string
}

// NewNATSSink connects to NATS and returns a sink publishing on cfg.Subject
func NewNATSSink(cfg NATSConfig) (*NATSSink, error) {
	opts := []nats.Option{
		nats.Name("eventclock"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("subject", cfg.Subject).
		Msg("NATS timer sink connected")

	return newNATSSink(nc, cfg.Subject), nil
}

func newNATSSink(conn natsConn, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

// ID implements Subscriber
func (s *NATSSink) ID() string {
	return "nats:" + s.subject
}

// Deliver publishes payload. Publish errors while reconnecting are logged and
// the sink stays subscribed; only a closed connection unsubscribes it.
func (s *NATSSink) Deliver(payload []byte) bool {
	if s.conn.IsClosed() {
		return false
	}

	if err := s.conn.Publish(s.subject, payload); err != nil {
		log.Warn().
			Err(err).
			Str("subject", s.subject).
			Msg("failed to publish timer update to NATS")
	}
	return true
}

// Close drains pending publishes and closes the connection
func (s *NATSSink) Close() error {
	if err := s.conn.Drain(); err != nil {
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
