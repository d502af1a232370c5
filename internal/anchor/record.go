package anchor

import (
	"fmt"

	"github.com/roach88/anchorsync/internal/pose"
)

// ID identifies one live tracked anchor instance. It is opaque and is not
// stable across sessions.
type ID string

// TrackingState reports how well the tracking subsystem currently knows an
// anchor's pose.
type TrackingState int

const (
	// NotTracking means the pose is unknown.
	NotTracking TrackingState = iota
	// Limited means the pose is known but may be inaccurate.
	Limited
	// Tracking means the pose is fully tracked.
	Tracking
)

var trackingStateNames = map[TrackingState]string{
	NotTracking: "not_tracking",
	Limited:     "limited",
	Tracking:    "tracking",
}

// String returns the text form used in logs, traces and scenario files.
func (s TrackingState) String() string {
	if name, ok := trackingStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("tracking_state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s TrackingState) MarshalText() ([]byte, error) {
	if _, ok := trackingStateNames[s]; !ok {
		return nil, fmt.Errorf("unknown tracking state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TrackingState) UnmarshalText(text []byte) error {
	parsed, err := ParseTrackingState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseTrackingState parses "tracking", "limited" or "not_tracking".
func ParseTrackingState(s string) (TrackingState, error) {
	for state, name := range trackingStateNames {
		if name == s {
			return state, nil
		}
	}
	return NotTracking, fmt.Errorf("unknown tracking state %q", s)
}

// Record is everything the registry knows about one live anchor.
//
// Name is empty when the anchor has no persisted name (a fresh anchor, or one
// whose store entries were cleared).
type Record struct {
	ID            ID
	Name          string
	Persisted     bool
	TrackingState TrackingState
	Pose          pose.Pose
}

// View is the read-only projection handed to visualization.
type View struct {
	ID            ID            `json:"id"`
	Name          string        `json:"name"`
	Persisted     bool          `json:"persisted"`
	TrackingState TrackingState `json:"tracking_state"`
}

// View returns the visualization projection of r.
func (r Record) View() View {
	return View{
		ID:            r.ID,
		Name:          r.Name,
		Persisted:     r.Persisted,
		TrackingState: r.TrackingState,
	}
}
