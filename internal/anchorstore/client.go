package anchorstore

import (
	"context"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/pose"
)

// Client is the durable anchor store as seen by the registry.
//
// A Client is only handed out once the store is ready; there is no way to call
// it before readiness.
type Client interface {
	// PersistedNames returns a snapshot of every persisted name.
	PersistedNames(ctx context.Context) ([]string, error)

	// RequestLoad asks the tracking subsystem to materialise the anchor
	// persisted under name. The returned identifier is provisional: the
	// tracked anchor carrying it arrives later, or never.
	RequestLoad(ctx context.Context, name string) (anchor.ID, error)

	// Persist durably saves the live anchor id under name. It returns false on
	// routine failure (store unavailable, id not tracked) and never panics.
	Persist(ctx context.Context, id anchor.ID, name string) bool

	// Clear erases every persisted entry. Live anchors are unaffected.
	Clear(ctx context.Context) error
}

// Tracker is the part of the tracking subsystem the store needs: materialising
// a persisted pose, and reading the current pose of a live anchor.
type Tracker interface {
	Load(name string, p pose.Pose) anchor.ID
	PoseOf(id anchor.ID) (pose.Pose, bool)
}

// Entry is one persisted anchor.
type Entry struct {
	Name     string    `json:"name"`
	Pose     pose.Pose `json:"pose"`
	SavedSeq int64     `json:"saved_seq"`
}
