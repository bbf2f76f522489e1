package threadloop

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemTick_monotonic(t *testing.T) {
	a := SystemTick()
	time.Sleep(5 * time.Millisecond)
	b := SystemTick()
	assert.GreaterOrEqual(t, (b - a).Duration(), 5*time.Millisecond)
}

func TestDurationTicks(t *testing.T) {
	assert.Equal(t, TickFrequency, DurationTicks(time.Second))
	assert.Equal(t, 250*time.Millisecond, DurationTicks(250*time.Millisecond).Duration())
	assert.Zero(t, DurationTicks(0))

	for _, d := range []time.Duration{
		10 * time.Second,
		time.Hour,
		1000 * time.Hour,
		-10 * time.Second,
		time.Duration(math.MaxInt64),
	} {
		assert.Equal(t, d, DurationTicks(d).Duration(), d.String())
	}
	assert.Equal(t, 10*TickFrequency, DurationTicks(10*time.Second))
	assert.Positive(t, DurationTicks(time.Duration(math.MaxInt64)))
}

func TestWallNow_noMonotonicReading(t *testing.T) {
	now := wallNow()
	assert.Equal(t, now.String(), now.Round(0).String())
}
