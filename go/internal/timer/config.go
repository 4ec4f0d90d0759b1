package timer

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidConfig is returned when a start request cannot produce a usable config
var ErrInvalidConfig = errors.New("invalid timer config")

// MaxDurationLimitMs is the largest max duration a time.Duration can hold
const MaxDurationLimitMs = math.MaxInt64 / int64(time.Millisecond)

// Direction is the counting direction of a timer
type Direction int

const (
	DirectionUp   Direction = iota // 0 -> max (or unbounded)
	DirectionDown                  // max -> 0, then negative
)

func (d Direction) String() string {
	if d == DirectionDown {
		return "down"
	}
	return "up"
}

// Precision is the granularity of the formatted display string
type Precision int

const (
	PrecisionSecond Precision = iota
	PrecisionDecisecond
	PrecisionCentisecond
	PrecisionMillisecond
)

func (p Precision) String() string {
	switch p {
	case PrecisionDecisecond:
		return "ds"
	case PrecisionCentisecond:
		return "cs"
	case PrecisionMillisecond:
		return "ms"
	default:
		return "s"
	}
}

// Duration returns the length of one display unit
func (p Precision) Duration() time.Duration {
	switch p {
	case PrecisionDecisecond:
		return 100 * time.Millisecond
	case PrecisionCentisecond:
		return 10 * time.Millisecond
	case PrecisionMillisecond:
		return time.Millisecond
	default:
		return time.Second
	}
}

// StopBehavior controls what happens when a bounded timer reaches its bound
type StopBehavior int

const (
	StopBehaviorAuto StopBehavior = iota // halt at the bound
	StopBehaviorNone                     // keep running into overflow
)

func (s StopBehavior) String() string {
	if s == StopBehaviorNone {
		return "none"
	}
	return "auto"
}

// Config is installed by Start and stays immutable until Reset.
// Measurement is always in milliseconds; Precision only affects formatting.
type Config struct {
	Direction          Direction
	BroadcastPrecision Precision
	MaxDurationMs      *int64
	StopBehavior       StopBehavior
}

// Bounded reports whether the config carries a max duration
func (c Config) Bounded() bool {
	return c.MaxDurationMs != nil
}

func (c Config) maxDuration() time.Duration {
	return time.Duration(*c.MaxDurationMs) * time.Millisecond
}

// Validate checks the invariants a config must hold before it can be installed
func (c Config) Validate() error {
	if c.MaxDurationMs != nil && *c.MaxDurationMs <= 0 {
		return fmt.Errorf("%w: max duration must be positive, got %dms", ErrInvalidConfig, *c.MaxDurationMs)
	}
	if c.MaxDurationMs != nil && *c.MaxDurationMs > MaxDurationLimitMs {
		return fmt.Errorf("%w: max duration %dms is too large", ErrInvalidConfig, *c.MaxDurationMs)
	}
	if c.Direction == DirectionDown && c.MaxDurationMs == nil {
		return fmt.Errorf("%w: direction down requires max_duration_ms", ErrInvalidConfig)
	}
	return nil
}

// StartRequest is the wire form of a start command.
//
// MaxDuration (whole seconds), MeasurementPrecision and stop_behavior "continue"
// are deprecated inputs kept for older control panels.
type StartRequest struct {
	Direction            string `json:"direction" yaml:"direction"`
	BroadcastPrecision   string `json:"broadcast_precision" yaml:"broadcast_precision"`
	MaxDurationMs        *int64 `json:"max_duration_ms,omitempty" yaml:"max_duration_ms,omitempty"`
	StopBehavior         string `json:"stop_behavior" yaml:"stop_behavior"`
	MaxDuration          *int64 `json:"max_duration,omitempty" yaml:"max_duration,omitempty"`
	MeasurementPrecision string `json:"measurement_precision,omitempty" yaml:"-"`
}

// ToConfig converts the request into a validated Config, applying defaults
// for empty fields (up, ds, auto).
func (r StartRequest) ToConfig() (Config, error) {
	var cfg Config

	switch strings.ToLower(strings.TrimSpace(r.Direction)) {
	case "", "up":
		cfg.Direction = DirectionUp
	case "down":
		cfg.Direction = DirectionDown
	default:
		return Config{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidConfig, r.Direction)
	}

	precision, err := ParsePrecision(r.BroadcastPrecision)
	if err != nil {
		return Config{}, err
	}
	cfg.BroadcastPrecision = precision

	switch strings.ToLower(strings.TrimSpace(r.StopBehavior)) {
	case "", "auto":
		cfg.StopBehavior = StopBehaviorAuto
	case "none", "continue":
		cfg.StopBehavior = StopBehaviorNone
	default:
		return Config{}, fmt.Errorf("%w: unknown stop behavior %q", ErrInvalidConfig, r.StopBehavior)
	}

	switch {
	case r.MaxDurationMs != nil:
		maxMs := *r.MaxDurationMs
		cfg.MaxDurationMs = &maxMs
	case r.MaxDuration != nil:
		if *r.MaxDuration > MaxDurationLimitMs/1000 {
			return Config{}, fmt.Errorf("%w: max_duration %ds is too large", ErrInvalidConfig, *r.MaxDuration)
		}
		maxMs := *r.MaxDuration * 1000
		cfg.MaxDurationMs = &maxMs
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParsePrecision parses "s", "ds", "cs" or "ms". Empty input means "ds".
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ds":
		return PrecisionDecisecond, nil
	case "s":
		return PrecisionSecond, nil
	case "cs":
		return PrecisionCentisecond, nil
	case "ms":
		return PrecisionMillisecond, nil
	default:
		return PrecisionSecond, fmt.Errorf("%w: unknown precision %q", ErrInvalidConfig, s)
	}
}
