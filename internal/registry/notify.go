package registry

import (
	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/pose"
)

// NotificationKind says what happened to a record.
type NotificationKind string

const (
	NotifyAdded       NotificationKind = "added"
	NotifyUpdated     NotificationKind = "updated"
	NotifyRemoved     NotificationKind = "removed"
	NotifyRenamed     NotificationKind = "renamed"
	NotifyWorldAnchor NotificationKind = "world_anchor"
)

// Notification is an outbound message to visualization. Seq is stamped by the
// Registry in emission order.
type Notification struct {
	Seq  int64            `json:"seq"`
	Kind NotificationKind `json:"kind"`
	View anchor.View      `json:"view"`
	Pose pose.Pose        `json:"pose"`
}

func notify(kind NotificationKind, r anchor.Record) Notification {
	return Notification{Kind: kind, View: r.View(), Pose: r.Pose}
}

// Visualizer receives notifications about records. It is the boundary to the
// rendering layer and must not call back into the registry.
type Visualizer interface {
	Notify(n Notification)
}

// VisualizerFunc adapts a function to Visualizer.
type VisualizerFunc func(n Notification)

// Notify calls f(n).
func (f VisualizerFunc) Notify(n Notification) {
	f(n)
}

// Recorder is a Visualizer that keeps every notification. Used by the harness
// and tests.
type Recorder struct {
	Notifications []Notification
}

// Notify appends n.
func (r *Recorder) Notify(n Notification) {
	r.Notifications = append(r.Notifications, n)
}

// Kinds returns the kinds of the recorded notifications in order.
func (r *Recorder) Kinds() []NotificationKind {
	out := make([]NotificationKind, len(r.Notifications))
	for i, n := range r.Notifications {
		out[i] = n.Kind
	}
	return out
}

type discardVisualizer struct{}

func (discardVisualizer) Notify(Notification) {}
