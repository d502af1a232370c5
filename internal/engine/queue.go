package engine

import (
	"context"
	"sync"

	"github.com/roach88/anchorsync/internal/anchorstore"
	"github.com/roach88/anchorsync/internal/tracking"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeChanges carries one tracking batch.
	EventTypeChanges EventType = iota + 1
	// EventTypeStoreReady carries the outcome of the store opener.
	EventTypeStoreReady
	// EventTypeCommand carries an application command to run on the loop.
	EventTypeCommand
)

func (t EventType) String() string {
	switch t {
	case EventTypeChanges:
		return "changes"
	case EventTypeStoreReady:
		return "store_ready"
	case EventTypeCommand:
		return "command"
	default:
		return "unknown"
	}
}

// StoreResult is what a store opener produced.
type StoreResult struct {
	Client anchorstore.Client
	Err    error
}

// Event is one unit of work for the Run loop.
type Event struct {
	Type    EventType
	Changes *tracking.Changes
	Store   *StoreResult
	Command func(ctx context.Context)
}

// eventQueue is an unbounded, thread-safe FIFO.
//
// Tracker callbacks must never block on the registry, so Enqueue never waits
// for capacity. The signal channel lets Run wait for work in a select
// alongside context cancellation.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1; closed on Close
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Non-blocking: a pending signal already covers this event.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]

	// Clear the slot so the backing array does not pin the closure or batch.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that fires when events may be available, and is
// closed once the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting events and wakes any waiter. Events already queued
// stay available to Drain.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Drain removes and returns every queued event.
func (q *eventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.events
	q.events = nil
	return out
}
