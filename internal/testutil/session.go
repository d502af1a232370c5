package testutil

import (
	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/tracking"
)

// NewSession returns a tracking session whose identifiers are "anchor-0001",
// "anchor-0002", ... so traces are reproducible.
func NewSession() *tracking.Session {
	return tracking.NewSession(tracking.WithIDGenerator(anchor.NewSequenceGenerator("anchor")))
}
