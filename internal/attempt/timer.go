package attempt

import (
	"sync"
	"time"
)

// CountdownTimer derives remaining time from an absolute deadline. It never
// decrements a counter: every tick recomputes remaining = expiresAt - now,
// so a paused process, a slow tick, or clock drift cannot accumulate error.
// The expiry callback fires exactly once.
type CountdownTimer struct {
	expiresAt time.Time
	clock     Clock
	interval  time.Duration

	onTick   func(remaining time.Duration)
	onExpire func()

	expireOnce sync.Once
	stopOnce   sync.Once
	stop       chan struct{}
}

// NewCountdownTimer creates a timer against the given absolute deadline.
// onTick and onExpire may be nil.
func NewCountdownTimer(expiresAt time.Time, clock Clock, onTick func(time.Duration), onExpire func()) *CountdownTimer {
	return &CountdownTimer{
		expiresAt: expiresAt,
		clock:     clock,
		interval:  time.Second,
		onTick:    onTick,
		onExpire:  onExpire,
		stop:      make(chan struct{}),
	}
}

// Remaining returns max(0, expiresAt - now). Pure with respect to the clock.
func (t *CountdownTimer) Remaining() time.Duration {
	remaining := t.expiresAt.Sub(t.clock())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the deadline has passed.
func (t *CountdownTimer) Expired() bool {
	return t.Remaining() == 0
}

// Start begins ticking at 1 Hz in a goroutine. If the deadline has already
// passed, expiry fires immediately without a tick.
func (t *CountdownTimer) Start() {
	go t.run()
}

func (t *CountdownTimer) run() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	if t.Tick() {
		return
	}
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if t.Tick() {
				return
			}
		}
	}
}

// Tick performs one recomputation: reports the remaining value and, at zero,
// fires expiry. Returns true once the timer is done. Safe to call from tests
// without Start; repeated calls after zero never fire expiry again.
func (t *CountdownTimer) Tick() bool {
	remaining := t.Remaining()
	if t.onTick != nil {
		t.onTick(remaining)
	}
	if remaining > 0 {
		return false
	}
	t.expireOnce.Do(func() {
		if t.onExpire != nil {
			t.onExpire()
		}
	})
	return true
}

// Stop halts visible ticking. The deadline itself lives on the session, so a
// stopped timer carries no authority; it only detaches the display.
func (t *CountdownTimer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
