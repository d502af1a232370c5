// Package registry implements the anchor identity reconciliation state
// machine.
//
// The registry pairs tracked anchors, which arrive asynchronously from the
// tracking subsystem, with the names they were persisted under. When the
// anchor store becomes ready the registry asks it to load every persisted
// name; each load returns a provisional identifier that is remembered as a
// PendingRequest. When an "added" event carries a pending identifier the
// request is consumed and the new record inherits its name (Reconciled).
// Any other arrival is a fresh, unnamed anchor (Untracked-New).
//
// # Structure
//
// Reduce is a pure transition function over State. Registry wraps it with the
// effectful parts: the store lifecycle, calls into the store and the tracking
// subsystem, logging, and forwarding notifications to a Visualizer.
//
// Store lifecycle:
//
//	Uninitialized -> AwaitingStore -> Ready | Unavailable -> Closed
//
// # Ordering
//
// Registry performs no locking. All calls must come from one goroutine in
// delivery order; internal/engine provides that loop.
//
// Event ordering relative to store readiness is not guaranteed by the
// tracking subsystem. An "added" event that arrives before its load request
// was recorded is classified Untracked-New, and the load request it should
// have consumed stays pending forever. This is kept as-is: there is no
// retroactive re-matching.
package registry
