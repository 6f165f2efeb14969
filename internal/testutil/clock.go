package testutil

import (
	"sync"
	"time"
)

// ManualClock is a wall clock that only moves when a test moves it.
//
// Implements engine.Clock. Times are whole Unix seconds, matching ledger
// resolution.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock creates a clock reading unix.
func NewManualClock(unix int64) *ManualClock {
	return &ManualClock{now: unix}
}

// Now returns the current reading.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.now, 0)
}

// Unix returns the current reading in seconds.
func (c *ManualClock) Unix() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to unix. Moving backwards is allowed.
func (c *ManualClock) Set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = unix
}

// Advance moves the clock forward by seconds and returns the new reading.
func (c *ManualClock) Advance(seconds int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
	return c.now
}
