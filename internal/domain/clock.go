package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze "today" via
// SetClock. Production code uses the real clock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// TodayIn returns the current instant in the given zone. The extractor's
// date pattern is built from its calendar date, so "today" follows the
// configured time zone, not the host's.
func TodayIn(loc *time.Location) time.Time {
	return clock.Now().In(loc)
}
