package engine

import "errors"

var (
	// ErrStopped is returned by commands issued after (or interrupted by)
	// engine teardown.
	ErrStopped = errors.New("engine stopped")

	// ErrAlreadyAwaiting is returned when store readiness is requested a
	// second time. A session has exactly one store load.
	ErrAlreadyAwaiting = errors.New("store readiness already requested")
)
