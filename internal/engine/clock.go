package engine

import "sync/atomic"

// Clock is a monotonic logical clock. The engine stamps every registry
// notification with Next(), so notification order is reproducible and never
// depends on wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), though
// only the Run goroutine calls Next in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start, so that a resumed session
// continues numbering where a previous one stopped.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
