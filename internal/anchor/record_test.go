package anchor

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackingState_TextRoundTrip(t *testing.T) {
	for _, state := range []TrackingState{NotTracking, Limited, Tracking} {
		text, err := state.MarshalText()
		require.NoError(t, err)

		var parsed TrackingState
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, state, parsed)
	}
}

func TestTrackingState_Unknown(t *testing.T) {
	_, err := ParseTrackingState("lost")
	assert.Error(t, err)

	_, err = TrackingState(17).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "tracking_state(17)", TrackingState(17).String())
}

func TestRecord_View(t *testing.T) {
	r := Record{ID: "a", Name: "kitchen", Persisted: true, TrackingState: Limited}
	assert.Equal(t, View{ID: "a", Name: "kitchen", Persisted: true, TrackingState: Limited}, r.View())
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.NewID()
	parsed, err := uuid.Parse(string(id))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("")
	assert.Equal(t, ID("anchor-0001"), g.NewID())
	assert.Equal(t, ID("anchor-0002"), g.NewID())

	g = NewSequenceGenerator("load")
	assert.Equal(t, ID("load-0001"), g.NewID())
}

func TestSequenceGenerator_Concurrent(t *testing.T) {
	g := NewSequenceGenerator("c")
	const n = 200

	var wg sync.WaitGroup
	ids := make(chan ID, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.NewID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[ID]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %s minted twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
