// Package clock provides an abstraction for time operations to improve testability.
// Instead of calling time.Now() or time.AfterFunc() directly, code uses the
// Clock interface. Production code runs on the system clock; tests drive a
// clockwork fake clock to fire timers on demand.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a pending call created by Clock.AfterFunc.
type Timer = clockwork.Timer

// Clock is an interface for the time operations cadence schedules with.
// Both clockwork.NewRealClock and clockwork.NewFakeClock satisfy it.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for the duration to elapse and then calls f in its
	// own goroutine. The returned Timer can cancel the call.
	AfterFunc(d time.Duration, f func()) Timer
}

// New returns a Clock backed by the system time.
func New() Clock {
	return clockwork.NewRealClock()
}

// NewFake returns a fake clock set to start. Its timers fire only when
// the clock is advanced.
func NewFake(start time.Time) *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(start)
}

// Ensure the clockwork clocks implement Clock.
var (
	_ Clock = clockwork.NewRealClock()
	_ Clock = (*clockwork.FakeClock)(nil)
)
