// Package clock abstracts wall time so poll loops and time-of-day decisions
// can be driven from tests.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by the device.
type Clock interface {
	Now() time.Time

	// After sends the current time on the returned channel once d elapses.
	After(d time.Duration) <-chan time.Time
}

// RealClock reads the system clock in a fixed location.
type RealClock struct {
	loc *time.Location
}

// NewRealClock returns a clock reporting times in loc. A nil loc means
// time.Local.
func NewRealClock(loc *time.Location) *RealClock {
	if loc == nil {
		loc = time.Local
	}
	return &RealClock{loc: loc}
}

func (c *RealClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// MockClock only moves when Advance or Set is called.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []waiter
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewMockClock returns a MockClock starting at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *MockClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	deadline := c.current.Add(d)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	c.waiters = append(c.waiters, waiter{deadline: deadline, ch: ch})
	return ch
}

// Advance moves the clock forward by d and fires every expired waiter.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current
	remaining := c.waiters[:0]
	var fired []chan time.Time
	for _, w := range c.waiters {
		if w.deadline.After(now) {
			remaining = append(remaining, w)
		} else {
			fired = append(fired, w.ch)
		}
	}
	c.waiters = remaining
	c.mu.Unlock()

	for _, ch := range fired {
		ch <- now
	}
}

// Set jumps to t. Moving forward fires expired waiters; moving backward
// only changes Now.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	old := c.current
	if !t.After(old) {
		c.current = t
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.Advance(t.Sub(old))
}

// Waiters reports how many After channels are pending.
func (c *MockClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
