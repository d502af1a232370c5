// Package tracking is an in-process stand-in for the spatial-tracking
// subsystem. It owns the set of live anchors, mints their identifiers, and
// reports changes in per-tick batches the way a real tracker does: a load or
// add request returns an identifier immediately, and the matching "added"
// change only shows up in a later batch.
//
// It does not estimate poses. Poses are whatever callers supply.
package tracking

import (
	"log/slog"
	"sync"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/pose"
)

// Change is one added or updated anchor in a batch.
type Change struct {
	ID            anchor.ID
	Pose          pose.Pose
	TrackingState anchor.TrackingState
}

// Changes is one tick's worth of tracking events. Consumers process Added,
// then Updated, then Removed.
type Changes struct {
	Added   []Change
	Updated []Change
	Removed []anchor.ID
}

// Empty reports whether the batch carries no events.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Session is a simulated tracking session.
//
// Thread-safety: all methods are safe for concurrent use. The tracker runs
// independently of the registry's event loop and only meets it through the
// batches returned by Tick.
type Session struct {
	mu      sync.Mutex
	ids     anchor.IDGenerator
	live    map[anchor.ID]Change
	pending Changes
	logger  *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithIDGenerator overrides the identifier generator (default UUIDv7).
func WithIDGenerator(g anchor.IDGenerator) Option {
	return func(s *Session) {
		s.ids = g
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession creates an empty tracking session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		ids:    anchor.UUIDv7Generator{},
		live:   make(map[anchor.ID]Change),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddAnchor starts tracking a fresh anchor at p. The identifier is returned
// immediately; the "added" change is delivered by the next Tick.
func (s *Session) AddAnchor(p pose.Pose) anchor.ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.ids.NewID()
	s.track(Change{ID: id, Pose: p, TrackingState: anchor.Tracking})
	s.logger.Debug("anchor requested", "id", id)
	return id
}

// Load materialises a persisted anchor. It returns the provisional identifier
// the "added" change will carry once the anchor is tracked.
func (s *Session) Load(name string, p pose.Pose) anchor.ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.ids.NewID()
	s.track(Change{ID: id, Pose: p, TrackingState: anchor.Tracking})
	s.logger.Debug("anchor load requested", "id", id, "name", name)
	return id
}

func (s *Session) track(c Change) {
	s.live[c.ID] = c
	s.pending.Added = append(s.pending.Added, c)
}

// Move reports a new pose and tracking state for a live anchor.
// Returns false if id is not live.
func (s *Session) Move(id anchor.ID, p pose.Pose, state anchor.TrackingState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live[id]; !ok {
		return false
	}
	c := Change{ID: id, Pose: p, TrackingState: state}
	s.live[id] = c
	s.pending.Updated = append(s.pending.Updated, c)
	return true
}

// RemoveAnchor stops tracking id. The "removed" change is delivered by the
// next Tick. Returns false if id is not live.
func (s *Session) RemoveAnchor(id anchor.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live[id]; !ok {
		return false
	}
	delete(s.live, id)
	s.pending.Removed = append(s.pending.Removed, id)
	return true
}

// PoseOf returns the current pose of a live anchor.
func (s *Session) PoseOf(id anchor.ID) (pose.Pose, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live[id]
	return c.Pose, ok
}

// Live returns the number of live anchors.
func (s *Session) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Tick drains and returns the changes accumulated since the previous Tick.
func (s *Session) Tick() Changes {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.pending
	s.pending = Changes{}
	return batch
}
