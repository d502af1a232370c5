package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/tracking"
)

func changesEvent(id anchor.ID) Event {
	return Event{Type: EventTypeChanges, Changes: &tracking.Changes{Removed: []anchor.ID{id}}}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	for _, id := range []anchor.ID{"a", "b", "c"} {
		require.True(t, q.Enqueue(changesEvent(id)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []anchor.ID{"a", "b", "c"} {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, e.Changes.Removed[0])
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_SignalCoalesces(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(changesEvent("a"))
	q.Enqueue(changesEvent("b"))

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signal should coalesce to one")
	default:
	}
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(changesEvent("a"))
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(changesEvent("b")))

	// Wait stays readable after close.
	<-q.Wait()
	<-q.Wait()

	drained := q.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, anchor.ID("a"), drained[0].Changes.Removed[0])
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()
	const producers, each = 8, 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				q.Enqueue(Event{Type: EventTypeCommand})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, producers*each, q.Len())
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "changes", EventTypeChanges.String())
	assert.Equal(t, "store_ready", EventTypeStoreReady.String())
	assert.Equal(t, "command", EventTypeCommand.String())
	assert.Equal(t, "unknown", EventType(0).String())
}
