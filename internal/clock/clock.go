package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by the services.
type Clock interface {
	Now() time.Time
}

type clock struct{}

// New returns a Clock backed by the wall clock, in UTC.
func New() Clock {
	return &clock{}
}

func (c *clock) Now() time.Time {
	return time.Now().UTC()
}

// ManagedClock is a hand-driven clock for tests. Each call to Now advances
// the clock by Step so that successive events are strictly ordered.
type ManagedClock struct {
	mu      sync.Mutex
	current time.Time
	Step    time.Duration
}

func NewManaged(start time.Time, step time.Duration) *ManagedClock {
	return &ManagedClock{current: start.UTC(), Step: step}
}

func (c *ManagedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.Step)
	return now
}

// WarpForward moves the clock forward by offset and returns the new time.
func (c *ManagedClock) WarpForward(offset time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(offset)
	return c.current
}
