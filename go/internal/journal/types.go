package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/eventclock/go/internal/timer"
)

// Command names recorded in the journal
const (
	CommandStart = "start"
	CommandPause = "pause"
	CommandReset = "reset"
)

// Entry is one applied timer command and the snapshot it produced
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	Command   string         `json:"command"`
	Snapshot  timer.Snapshot `json:"snapshot"`
	CreatedAt time.Time      `json:"created_at"`
}
