package timer

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrStartIgnored is returned by Start when the timer is already running or
// has stopped at its bound. The accompanying snapshot is valid.
var ErrStartIgnored = errors.New("start ignored: timer is running or stopped")

// Status is the state machine position of a timer
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped" // auto stop at the bound; needs Reset
)

// Snapshot is an immutable read of the timer at one instant.
// Field names are lower_snake only; the PascalCase variants older panels
// tolerated are no longer emitted.
type Snapshot struct {
	Status        Status `json:"status"`
	Running       bool   `json:"running"`
	Direction     string `json:"direction"`
	Precision     string `json:"broadcast_precision"`
	ElapsedMs     int64  `json:"elapsed_ms"`
	OverflowMs    int64  `json:"overflow_ms"`
	IsOverflow    bool   `json:"is_overflow"`
	FormattedTime string `json:"formatted_time"`
	MaxDurationMs *int64 `json:"max_duration_ms,omitempty"`
}

// Engine owns the state of one logical timer. Elapsed time is never ticked;
// it is derived from the resume instant every time the engine is read or
// commanded, under a single lock.
type Engine struct {
	clock Clock

	mu          sync.Mutex
	cfg         *Config
	status      Status
	accumulated time.Duration // UP: elapsed, DOWN: remaining (negative = overflow)
	resumedAt   time.Time     // valid only while running
}

// NewEngine creates an idle engine reading time from clock
func NewEngine(clock Clock) *Engine {
	return &Engine{
		clock:  clock,
		status: StatusIdle,
	}
}

// Snapshot returns the current state. If an auto-stop timer has reached its
// bound since the last read, this call stops it and reports running=false.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.snapshotLocked(e.clock.Now())
}

// Start installs cfg and starts an idle timer, or resumes a paused one keeping
// its original config and accumulated time. Running and stopped timers are
// left untouched and ErrStartIgnored is returned with the current snapshot.
// An invalid cfg is rejected before any state changes.
func (e *Engine) Start(cfg Config) (Snapshot, error) {
	if err := cfg.Validate(); err != nil {
		return Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.settleLocked(now)

	switch e.status {
	case StatusIdle:
		installed := cfg
		if cfg.MaxDurationMs != nil {
			maxMs := *cfg.MaxDurationMs
			installed.MaxDurationMs = &maxMs
		}
		e.cfg = &installed
		e.accumulated = 0
		if installed.Direction == DirectionDown {
			e.accumulated = installed.maxDuration()
		}
		e.resumedAt = now
		e.status = StatusRunning

		log.Info().
			Str("direction", installed.Direction.String()).
			Str("precision", installed.BroadcastPrecision.String()).
			Str("stop_behavior", installed.StopBehavior.String()).
			Int64("accumulated_ms", e.accumulated.Milliseconds()).
			Msg("timer started")

	case StatusPaused:
		e.resumedAt = now
		e.status = StatusRunning

		log.Info().
			Int64("accumulated_ms", e.accumulated.Milliseconds()).
			Msg("timer resumed")

	default:
		log.Debug().
			Str("status", string(e.status)).
			Msg("start ignored")
		return e.snapshotLocked(now), ErrStartIgnored
	}

	return e.snapshotLocked(now), nil
}

// Pause commits the elapsed time and stops the clock. Pausing a timer that is
// not running is a no-op.
func (e *Engine) Pause() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	effective := e.settleLocked(now)

	if e.status == StatusRunning {
		e.accumulated = effective
		e.status = StatusPaused
		e.resumedAt = time.Time{}

		log.Info().
			Int64("accumulated_ms", e.accumulated.Milliseconds()).
			Msg("timer paused")
	}

	return e.snapshotLocked(now)
}

// Reset returns the engine to idle from any state and discards the config
func (e *Engine) Reset() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = nil
	e.status = StatusIdle
	e.accumulated = 0
	e.resumedAt = time.Time{}

	log.Info().Msg("timer reset")

	return e.snapshotLocked(e.clock.Now())
}

// effectiveLocked is the one formula for the current time value. It works at
// full clock resolution; milliseconds are only derived for snapshots.
func (e *Engine) effectiveLocked(now time.Time) time.Duration {
	if e.status != StatusRunning {
		return e.accumulated
	}

	elapsed := now.Sub(e.resumedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if e.cfg.Direction == DirectionDown {
		return e.accumulated - elapsed
	}
	return e.accumulated + elapsed
}

// settleLocked evaluates the effective value and, for auto-stop timers that
// have reached their bound, freezes the timer at the bound.
func (e *Engine) settleLocked(now time.Time) time.Duration {
	effective := e.effectiveLocked(now)
	if e.status != StatusRunning || !e.cfg.Bounded() || e.cfg.StopBehavior != StopBehaviorAuto {
		return effective
	}

	var bound time.Duration
	switch e.cfg.Direction {
	case DirectionDown:
		if effective > 0 {
			return effective
		}
		bound = 0
	default:
		if effective < e.cfg.maxDuration() {
			return effective
		}
		bound = e.cfg.maxDuration()
	}

	e.accumulated = bound
	e.status = StatusStopped
	e.resumedAt = time.Time{}

	log.Info().
		Str("direction", e.cfg.Direction.String()).
		Int64("bound_ms", bound.Milliseconds()).
		Int64("observed_ms", effective.Milliseconds()).
		Msg("timer reached max duration, stopped")

	return bound
}

func (e *Engine) snapshotLocked(now time.Time) Snapshot {
	if e.cfg == nil {
		return idleSnapshot()
	}

	effective := e.settleLocked(now).Milliseconds()

	var overflowMs int64
	if e.cfg.Direction == DirectionDown {
		if effective < 0 {
			overflowMs = -effective
		}
	} else if e.cfg.Bounded() && effective > *e.cfg.MaxDurationMs {
		overflowMs = effective - *e.cfg.MaxDurationMs
	}

	var maxMs *int64
	if e.cfg.MaxDurationMs != nil {
		v := *e.cfg.MaxDurationMs
		maxMs = &v
	}

	return Snapshot{
		Status:        e.status,
		Running:       e.status == StatusRunning,
		Direction:     e.cfg.Direction.String(),
		Precision:     e.cfg.BroadcastPrecision.String(),
		ElapsedMs:     effective,
		OverflowMs:    overflowMs,
		IsOverflow:    overflowMs > 0,
		FormattedTime: FormatMillis(effective, e.cfg.BroadcastPrecision),
		MaxDurationMs: maxMs,
	}
}

func idleSnapshot() Snapshot {
	return Snapshot{
		Status:        StatusIdle,
		Direction:     DirectionUp.String(),
		Precision:     PrecisionSecond.String(),
		FormattedTime: FormatMillis(0, PrecisionSecond),
	}
}
