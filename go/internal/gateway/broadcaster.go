package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/eventclock/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// SnapshotSource is the single read accessor both push and poll paths use
type SnapshotSource interface {
	Snapshot() timer.Snapshot
}

// Publisher fans an event out to subscribers
type Publisher interface {
	Broadcast(event *TimerEvent) int
}

// Broadcaster samples the timer on a fixed cadence and pushes timer_update
// events. Each push reads a fresh snapshot, so late or missed ticks never
// accumulate error.
type Broadcaster struct {
	source    SnapshotSource
	publisher Publisher
	clock     clockwork.Clock
	interval  time.Duration
	wakeCh    chan struct{}

	mu   sync.RWMutex
	last *TimerEvent
}

// NewBroadcaster creates a broadcaster pushing every interval
func NewBroadcaster(source SnapshotSource, publisher Publisher, clock clockwork.Clock, interval time.Duration) *Broadcaster {
	return &Broadcaster{
		source:    source,
		publisher: publisher,
		clock:     clock,
		interval:  interval,
		wakeCh:    make(chan struct{}, 1),
	}
}

// Run pushes on every tick and on every Notify until ctx is cancelled
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", b.interval).Msg("timer broadcaster started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("timer broadcaster shutting down")
			return
		case <-ticker.Chan():
			b.Publish(ReasonTick)
		case <-b.wakeCh:
			b.Publish(ReasonCommand)
		}
	}
}

// Notify requests an out-of-cadence push. It never blocks; multiple
// notifications before the loop wakes collapse into one push.
func (b *Broadcaster) Notify() {
	select {
	case b.wakeCh <- struct{}{}:
	default:
	}
}

// Sample reads the timer into an event without pushing it
func (b *Broadcaster) Sample(reason Reason) *TimerEvent {
	return NewTimerUpdate(b.source.Snapshot(), reason, b.clock.Now())
}

// Publish samples the timer and broadcasts it immediately
func (b *Broadcaster) Publish(reason Reason) *TimerEvent {
	event := b.Sample(reason)

	b.mu.Lock()
	b.last = event
	b.mu.Unlock()

	b.publisher.Broadcast(event)
	return event
}

// LastEvent returns the most recently pushed event, or nil before the first push
func (b *Broadcaster) LastEvent() *TimerEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last
}
