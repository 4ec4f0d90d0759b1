package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/eventclock/go/internal/dbconfig"
	"github.com/mcdev12/eventclock/go/internal/gateway"
	"github.com/mcdev12/eventclock/go/internal/journal"
	"github.com/mcdev12/eventclock/go/internal/timer"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Engine  *timer.Engine
	Gateway *gateway.Service

	recorder *journal.Recorder
	nats     *gateway.NATSSink
	pool     *pgxpool.Pool
}

func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	// Clock → Engine → Gateway, then the optional sinks
	clock := clockwork.NewRealClock()
	engine := timer.NewEngine(clock)

	connConfig := gateway.DefaultConnectionConfig()
	connConfig.WriteTimeout = cfg.WSWriteTimeout
	connConfig.ReadTimeout = cfg.WSReadTimeout
	connConfig.PingInterval = cfg.WSPingInterval

	gatewayConfig := gateway.Config{
		ConnectionConfig:  connConfig,
		BroadcastInterval: cfg.BroadcastInterval,
		Presets:           cfg.Presets,
	}

	services := &Services{
		Engine:  engine,
		Gateway: gateway.NewService(gatewayConfig, engine, clock),
	}

	if cfg.NATSURL != "" {
		natsConfig := gateway.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Subject = cfg.NATSSubject

		sink, err := gateway.NewNATSSink(natsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		services.nats = sink
		services.Gateway.AddSink(sink)
		log.Info().Str("url", cfg.NATSURL).Str("subject", cfg.NATSSubject).Msg("NATS sink enabled")
	}

	if cfg.JournalEnabled {
		if err := services.setupJournal(ctx, clock); err != nil {
			services.Close()
			return nil, err
		}
	}

	return services, nil
}

func (s *Services) setupJournal(ctx context.Context, clock clockwork.Clock) error {
	poolCfg, err := dbconfig.NewConfigFromEnv().PoolConfig()
	if err != nil {
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	repo := journal.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return err
	}

	s.pool = pool
	s.recorder = journal.NewRecorder(repo, clock, journal.DefaultConfig())
	s.Gateway.SetJournal(s.recorder)

	log.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Uint16("port", poolCfg.ConnConfig.Port).
		Str("database", poolCfg.ConnConfig.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("timer journal enabled")
	return nil
}

// Run blocks running the broadcaster and, when enabled, the journal writer.
// It returns only after the journal has flushed its queue.
func (s *Services) Run(ctx context.Context) {
	var wg sync.WaitGroup
	if s.recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.recorder.Run(ctx)
		}()
	}

	if err := s.Gateway.Start(ctx); err != nil {
		log.Error().Err(err).Msg("timer gateway stopped with error")
	}
	wg.Wait()
}

// Close releases external connections
func (s *Services) Close() {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to drain NATS connection")
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
