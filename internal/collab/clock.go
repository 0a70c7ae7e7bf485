package collab

import (
	"sync"
	"time"
)

// clock hands out strictly increasing millisecond timestamps, even when the
// wall clock stalls or steps backwards.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newClock(now func() time.Time) *clock {
	if now == nil {
		now = time.Now
	}
	return &clock{now: now}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Round(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t

	return t
}
