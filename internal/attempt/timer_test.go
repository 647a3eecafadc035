package attempt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemainingDerivesFromAbsoluteDeadline(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	timer := NewCountdownTimer(start.Add(60*time.Minute), clock.Now, nil, nil)

	assert.Equal(t, 60*time.Minute, timer.Remaining())

	// Jumping the clock forward (a suspended process, a slow tick) is
	// absorbed: remaining is recomputed, not decremented.
	clock.Advance(17 * time.Minute)
	assert.Equal(t, 43*time.Minute, timer.Remaining())

	prev := timer.Remaining()
	for i := 0; i < 100; i++ {
		clock.Advance(30 * time.Second)
		cur := timer.Remaining()
		assert.LessOrEqual(t, cur, prev, "remaining must never increase")
		assert.GreaterOrEqual(t, cur, time.Duration(0), "remaining must never go negative")
		prev = cur
	}
}

func TestExpiryFiresExactlyOnce(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)

	fired := 0
	timer := NewCountdownTimer(start.Add(3*time.Second), clock.Now, nil, func() { fired++ })

	require.False(t, timer.Tick())
	clock.Advance(5 * time.Second)

	// Rapid repeated ticks after zero must not fire again.
	for i := 0; i < 10; i++ {
		assert.True(t, timer.Tick())
	}
	assert.Equal(t, 1, fired)
}

func TestResumedDeadlineReflectsElapsedTime(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	expiresAt := start.Add(60 * time.Minute)

	// Simulate a reload 25 minutes in: a new timer against the same
	// absolute deadline must show the time already spent.
	clock.Advance(25 * time.Minute)
	resumed := NewCountdownTimer(expiresAt, clock.Now, nil, nil)

	assert.Equal(t, 35*time.Minute, resumed.Remaining())
	assert.Less(t, resumed.Remaining(), 60*time.Minute)
}

func TestTickReportsRemaining(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)

	var seen []time.Duration
	timer := NewCountdownTimer(start.Add(2*time.Second), clock.Now,
		func(remaining time.Duration) { seen = append(seen, remaining) }, nil)

	timer.Tick()
	clock.Advance(time.Second)
	timer.Tick()
	clock.Advance(2 * time.Second)
	timer.Tick()

	require.Len(t, seen, 3)
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second, 0}, seen)
}
