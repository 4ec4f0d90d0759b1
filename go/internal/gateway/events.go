package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/eventclock/go/internal/timer"
)

// TimerEvent is the envelope pushed to subscribers
type TimerEvent struct {
	ID        string         `json:"id"`        // Event UUID
	Type      EventType      `json:"type"`      // Event type
	Reason    Reason         `json:"reason"`    // What caused the push
	Timestamp time.Time      `json:"timestamp"` // Server time of the snapshot
	Data      timer.Snapshot `json:"data"`
}

// EventType represents the type of pushed event
type EventType string

const (
	EventTypeTimerUpdate EventType = "timer_update"
)

// Reason tells a subscriber why it received an update
type Reason string

const (
	ReasonTick    Reason = "tick"
	ReasonCommand Reason = "command"
	ReasonConnect Reason = "connect"
)

// NewTimerUpdate wraps a snapshot in a timer_update envelope
func NewTimerUpdate(snap timer.Snapshot, reason Reason, at time.Time) *TimerEvent {
	return &TimerEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeTimerUpdate,
		Reason:    reason,
		Timestamp: at,
		Data:      snap,
	}
}

// ParseTimerEvent decodes a pushed message, rejecting unknown event types
func ParseTimerEvent(data []byte) (*TimerEvent, error) {
	var event TimerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if event.Type != EventTypeTimerUpdate {
		return nil, fmt.Errorf("unexpected event type %q", event.Type)
	}
	return &event, nil
}
