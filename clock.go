package threadloop

import (
	"time"
)

// Tick is a monotonic counter, in units of 1/[TickFrequency] seconds,
// measured from an arbitrary process-wide anchor. It is unaffected by
// changes to the wall clock.
type Tick int64

// TickFrequency is the number of ticks per second.
const TickFrequency Tick = Tick(time.Second)

// tickAnchor is read via time.Since, which uses the monotonic clock reading.
var tickAnchor = time.Now()

// SystemTick returns the current tick.
func SystemTick() Tick {
	return Tick(time.Since(tickAnchor))
}

// DurationTicks converts a duration to a number of ticks. Whole seconds are
// scaled separately from the remainder, so the conversion cannot overflow.
func DurationTicks(d time.Duration) Tick {
	return Tick(d/time.Second)*TickFrequency +
		Tick(d%time.Second)*TickFrequency/Tick(time.Second)
}

// Duration converts a number of ticks to a duration.
func (t Tick) Duration() time.Duration {
	return time.Duration(t/TickFrequency)*time.Second +
		time.Duration(t%TickFrequency*Tick(time.Second)/TickFrequency)
}

// wallNow returns the current wall-clock time, stripped of its monotonic
// reading, so comparisons against user supplied times are wall-clock only.
func wallNow() time.Time {
	return time.Now().Round(0)
}
