package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchorsync/internal/anchor"
)

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := NewState("")
	s, _, err := Reduce(s, LoadRequested{ID: "p1", Name: "A"})
	require.NoError(t, err)

	before := s
	next, notes, err := Reduce(s, Added{ID: "p1", Pose: at(1), TrackingState: anchor.Tracking})
	require.NoError(t, err)
	require.Len(t, notes, 1)

	assert.Len(t, before.Pending(), 1, "input still holds the pending request")
	assert.Empty(t, before.Records())
	assert.Empty(t, next.Pending())
	assert.Len(t, next.Records(), 1)
}

func TestReduce_ErrorLeavesStateUnchanged(t *testing.T) {
	s := NewState("")
	for _, ev := range []Event{
		Updated{ID: "nope"},
		Removed{ID: "nope"},
		Persisted{ID: "nope", Name: "A"},
	} {
		next, notes, err := Reduce(s, ev)
		assert.True(t, IsUnknownIdentifier(err), "%T", ev)
		assert.Nil(t, notes)
		assert.Equal(t, s, next)
	}
}

func TestReduce_DefaultWorldName(t *testing.T) {
	assert.Equal(t, DefaultWorldAnchorName, NewState("").WorldAnchorName())
	assert.Equal(t, "W", NewState("W").WorldAnchorName())
}

func TestReduce_ClearedSkipsUnnamed(t *testing.T) {
	s := NewState("")
	s, _, _ = Reduce(s, Added{ID: "a"})
	s, _, _ = Reduce(s, Added{ID: "b"})
	s, _, _ = Reduce(s, Persisted{ID: "b", Name: "B"})

	_, notes, err := Reduce(s, Cleared{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, anchor.ID("b"), notes[0].View.ID)
	assert.Equal(t, NotifyRenamed, notes[0].Kind)
}

func TestReduce_RecordsKeepArrivalOrder(t *testing.T) {
	s := NewState("")
	for _, id := range []anchor.ID{"c", "a", "b"} {
		s, _, _ = Reduce(s, Added{ID: id})
	}
	s, _, _ = Reduce(s, Removed{ID: "a"})

	var ids []anchor.ID
	for _, r := range s.Records() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []anchor.ID{"c", "b"}, ids)
}

func TestReduce_HoldersOfReservedName(t *testing.T) {
	s := NewState("W")
	s, _, _ = Reduce(s, Added{ID: "a"})
	s, _, _ = Reduce(s, Added{ID: "b"})
	s, _, _ = Reduce(s, Persisted{ID: "a", Name: "W"})
	s, _, _ = Reduce(s, Persisted{ID: "b", Name: "W"})

	// Uniqueness of the reserved name is the caller's job.
	assert.Equal(t, []anchor.ID{"a", "b"}, s.HoldersOf("W"))
}

func TestError_Format(t *testing.T) {
	err := persistFailure("id1", "C")
	assert.Equal(t, "PERSIST_FAILURE: anchor could not be persisted (id=id1, name=C)", err.Error())
	assert.ErrorIs(t, err, ErrPersistFailed)
	assert.NotErrorIs(t, err, ErrUnknownIdentifier)
}
