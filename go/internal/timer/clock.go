package timer

import "time"

// Clock is the time source the engine reads from.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
}
