package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/eventclock/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// Store is what the recorder needs from the repository
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

type Config struct {
	BufferSize   int
	WriteTimeout time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:   256,
		WriteTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryDelay:   time.Second,
	}
}

// Recorder writes applied commands to the store off the command path.
// Commands never wait on the database; when the buffer is full entries are dropped.
type Recorder struct {
	store   Store
	clock   clockwork.Clock
	config  Config
	entries chan Entry
}

func NewRecorder(store Store, clock clockwork.Clock, cfg Config) *Recorder {
	return &Recorder{
		store:   store,
		clock:   clock,
		config:  cfg,
		entries: make(chan Entry, cfg.BufferSize),
	}
}

// CommandApplied queues an entry for command and the snapshot it produced
func (r *Recorder) CommandApplied(command string, snap timer.Snapshot) {
	entry := Entry{
		ID:        uuid.New(),
		Command:   command,
		Snapshot:  snap,
		CreatedAt: r.clock.Now(),
	}

	select {
	case r.entries <- entry:
	default:
		log.Warn().
			Str("command", command).
			Msg("journal buffer full, dropping entry")
	}
}

// Recent returns up to limit entries, newest first
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return r.store.Recent(ctx, limit)
}

// Run drains queued entries into the store until ctx is cancelled
func (r *Recorder) Run(ctx context.Context) {
	log.Info().Int("buffer_size", r.config.BufferSize).Msg("journal recorder started")

	for {
		select {
		case <-ctx.Done():
			r.flush()
			log.Info().Msg("journal recorder stopped")
			return
		case entry := <-r.entries:
			if err := r.appendWithRetry(ctx, entry); err != nil {
				log.Error().
					Err(err).
					Str("entry_id", entry.ID.String()).
					Str("command", entry.Command).
					Msg("failed to journal command")
			}
		}
	}
}

// flush writes whatever is still queued, one attempt each
func (r *Recorder) flush() {
	for {
		select {
		case entry := <-r.entries:
			ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
			if err := r.store.Append(ctx, entry); err != nil {
				log.Error().Err(err).Str("entry_id", entry.ID.String()).Msg("failed to flush journal entry")
			}
			cancel()
		default:
			return
		}
	}
}

func (r *Recorder) appendWithRetry(ctx context.Context, entry Entry) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(r.config.RetryDelay * time.Duration(attempt)):
			}
		}

		writeCtx, cancel := context.WithTimeout(ctx, r.config.WriteTimeout)
		err := r.store.Append(writeCtx, entry)
		cancel()
		if err == nil {
			return nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Str("entry_id", entry.ID.String()).
			Int("attempt", attempt+1).
			Msg("failed to journal command, retrying")
	}

	return fmt.Errorf("failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}
