// Package timer derives "time remaining" for a round from the server-assigned
// absolute start timestamp rather than a naive decrementing counter, so a
// client that attaches mid-round or wakes from a tab suspend lands on the
// right value immediately.
package timer

import "time"

// Countdown tracks the remaining seconds of a fixed-duration round. It owns
// no goroutines; the surface's event loop calls Tick on its own cadence.
type Countdown struct {
	duration  time.Duration
	now       func() time.Time
	startAt   time.Time
	remaining int
	running   bool
	signalled bool
}

// New creates a stopped countdown showing the full duration.
func New(duration time.Duration) *Countdown {
	return NewWithClock(duration, time.Now)
}

// NewWithClock allows deterministic time in tests.
func NewWithClock(duration time.Duration, now func() time.Time) *Countdown {
	c := &Countdown{duration: duration, now: now}
	c.Reset(nil)
	return c
}

// Reset re-derives remaining from a new start timestamp. A nil start means
// "full duration, not running". A start far enough in the past yields zero
// remaining and a stopped timer without ever signalling time end.
func (c *Countdown) Reset(start *time.Time) {
	c.signalled = false
	if start == nil {
		c.startAt = time.Time{}
		c.remaining = int(c.duration / time.Second)
		c.running = false
		return
	}
	c.startAt = *start
	c.remaining = c.compute()
	c.running = c.remaining > 0
	if c.remaining == 0 {
		c.signalled = true
	}
}

// Stop freezes the remaining value. Idempotent; used on local submission.
func (c *Countdown) Stop() {
	c.running = false
}

// Tick recomputes remaining against the wall clock. It returns true exactly
// once, when a running countdown reaches zero; the countdown stops itself at
// that point.
func (c *Countdown) Tick() bool {
	if !c.running {
		return false
	}
	c.remaining = c.compute()
	if c.remaining > 0 {
		return false
	}
	c.running = false
	if c.signalled {
		return false
	}
	c.signalled = true
	return true
}

// Remaining returns the last derived remaining seconds.
func (c *Countdown) Remaining() int { return c.remaining }

// Running reports whether the countdown is still live.
func (c *Countdown) Running() bool { return c.running }

func (c *Countdown) compute() int {
	elapsed := int(c.now().Sub(c.startAt) / time.Second)
	remaining := int(c.duration/time.Second) - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
