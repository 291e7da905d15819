package testfixtures

import (
	"sync"
	"time"
)

// Clock is a hand-driven time source for session services under test. It
// never moves backwards, so a session that has started or ended stays that
// way for the rest of the test.
type Clock struct {
	mu sync.Mutex
	at time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{at: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

// NowFunc returns Now for injection into a service. A nil clock yields
// time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.at = c.at.Add(d)
	}
	return c.at
}

// AdvanceTo moves the clock to t unless t is already in the past.
func (c *Clock) AdvanceTo(t time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.at) {
		c.at = t
	}
	return c.at
}
