package registry

import (
	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/pose"
)

// DefaultWorldAnchorName is the reserved name of the fixed world anchor.
const DefaultWorldAnchorName = "TheWorldAnchor"

// PendingRequest is a load request whose tracked anchor has not arrived yet.
type PendingRequest struct {
	ID   anchor.ID `json:"id"`
	Name string    `json:"name"`
}

// State is the registry's data: pending load requests and live records.
// Iteration order is arrival order, so traces are deterministic.
//
// State values are immutable from the outside; Reduce returns a modified copy.
type State struct {
	worldName    string
	pending      map[anchor.ID]string
	pendingOrder []anchor.ID
	records      map[anchor.ID]anchor.Record
	order        []anchor.ID
}

// NewState returns an empty state. worldName is the reserved world-anchor name.
func NewState(worldName string) State {
	if worldName == "" {
		worldName = DefaultWorldAnchorName
	}
	return State{
		worldName: worldName,
		pending:   make(map[anchor.ID]string),
		records:   make(map[anchor.ID]anchor.Record),
	}
}

func (s State) clone() State {
	c := State{
		worldName:    s.worldName,
		pending:      make(map[anchor.ID]string, len(s.pending)),
		pendingOrder: append([]anchor.ID(nil), s.pendingOrder...),
		records:      make(map[anchor.ID]anchor.Record, len(s.records)),
		order:        append([]anchor.ID(nil), s.order...),
	}
	for id, name := range s.pending {
		c.pending[id] = name
	}
	for id, r := range s.records {
		c.records[id] = r
	}
	return c
}

// WorldAnchorName returns the reserved world-anchor name.
func (s State) WorldAnchorName() string {
	return s.worldName
}

// Lookup returns the record for id.
func (s State) Lookup(id anchor.ID) (anchor.Record, bool) {
	r, ok := s.records[id]
	return r, ok
}

// Records returns every live record in arrival order.
func (s State) Records() []anchor.Record {
	out := make([]anchor.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

// Pending returns every unresolved load request in issue order.
func (s State) Pending() []PendingRequest {
	out := make([]PendingRequest, 0, len(s.pendingOrder))
	for _, id := range s.pendingOrder {
		out = append(out, PendingRequest{ID: id, Name: s.pending[id]})
	}
	return out
}

// HoldersOf returns the identifiers of records currently named name.
func (s State) HoldersOf(name string) []anchor.ID {
	var out []anchor.ID
	for _, id := range s.order {
		if s.records[id].Name == name {
			out = append(out, id)
		}
	}
	return out
}

func removeID(ids []anchor.ID, id anchor.ID) []anchor.ID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// LoadRequested records that the store issued a load for Name and the tracking
// subsystem answered with provisional identifier ID.
type LoadRequested struct {
	ID   anchor.ID
	Name string
}

// Added is a tracked anchor arriving.
type Added struct {
	ID            anchor.ID
	Pose          pose.Pose
	TrackingState anchor.TrackingState
}

// Updated is a new pose or tracking state for a live anchor.
type Updated struct {
	ID            anchor.ID
	Pose          pose.Pose
	TrackingState anchor.TrackingState
}

// Removed is the tracking subsystem dropping an anchor.
type Removed struct {
	ID anchor.ID
}

// Persisted is a successful store persist of ID under Name.
type Persisted struct {
	ID   anchor.ID
	Name string
}

// Cleared is the store having been cleared.
type Cleared struct{}

// Dropped is every live anchor having been released.
type Dropped struct{}

func (LoadRequested) isEvent() {}
func (Added) isEvent()         {}
func (Updated) isEvent()       {}
func (Removed) isEvent()       {}
func (Persisted) isEvent()     {}
func (Cleared) isEvent()       {}
func (Dropped) isEvent()       {}

// Reduce applies ev to s and returns the new state with the notifications the
// transition produces. On error the returned state is s, unchanged, and no
// notifications are produced.
//
// Reduce never mutates s.
func Reduce(s State, ev Event) (State, []Notification, error) {
	switch ev := ev.(type) {
	case LoadRequested:
		next := s.clone()
		if _, dup := next.pending[ev.ID]; !dup {
			next.pendingOrder = append(next.pendingOrder, ev.ID)
		}
		next.pending[ev.ID] = ev.Name
		return next, nil, nil

	case Added:
		return reduceAdded(s, ev)

	case Updated:
		r, ok := s.records[ev.ID]
		if !ok {
			return s, nil, unknownIdentifier(ev.ID)
		}
		next := s.clone()
		r.Pose = ev.Pose
		r.TrackingState = ev.TrackingState
		next.records[ev.ID] = r
		return next, []Notification{notify(NotifyUpdated, r)}, nil

	case Removed:
		r, ok := s.records[ev.ID]
		if !ok {
			return s, nil, unknownIdentifier(ev.ID)
		}
		next := s.clone()
		delete(next.records, ev.ID)
		next.order = removeID(next.order, ev.ID)
		return next, []Notification{notify(NotifyRemoved, r)}, nil

	case Persisted:
		r, ok := s.records[ev.ID]
		if !ok {
			return s, nil, unknownIdentifier(ev.ID)
		}
		next := s.clone()
		r.Name = ev.Name
		r.Persisted = true
		next.records[ev.ID] = r
		return next, []Notification{notify(NotifyRenamed, r)}, nil

	case Cleared:
		next := s.clone()
		var out []Notification
		for _, id := range next.order {
			r := next.records[id]
			if r.Name == "" && !r.Persisted {
				continue
			}
			r.Name = ""
			r.Persisted = false
			next.records[id] = r
			out = append(out, notify(NotifyRenamed, r))
		}
		return next, out, nil

	case Dropped:
		next := s.clone()
		out := make([]Notification, 0, len(next.order))
		for _, id := range next.order {
			out = append(out, notify(NotifyRemoved, next.records[id]))
		}
		next.records = make(map[anchor.ID]anchor.Record)
		next.order = nil
		return next, out, nil

	default:
		return s, nil, nil
	}
}

func reduceAdded(s State, ev Added) (State, []Notification, error) {
	next := s.clone()

	// The tracker re-announced an anchor we already hold: refresh it.
	if r, live := next.records[ev.ID]; live {
		r.Pose = ev.Pose
		r.TrackingState = ev.TrackingState
		next.records[ev.ID] = r
		return next, []Notification{notify(NotifyUpdated, r)}, nil
	}

	r := anchor.Record{
		ID:            ev.ID,
		Pose:          ev.Pose,
		TrackingState: ev.TrackingState,
	}
	if name, ok := next.pending[ev.ID]; ok {
		r.Name = name
		r.Persisted = true
		delete(next.pending, ev.ID)
		next.pendingOrder = removeID(next.pendingOrder, ev.ID)
	}
	next.records[ev.ID] = r
	next.order = append(next.order, ev.ID)

	out := []Notification{notify(NotifyAdded, r)}
	if r.Persisted && r.Name == next.worldName {
		out = append(out, notify(NotifyWorldAnchor, r))
	}
	return next, out, nil
}
