// Package engine runs the anchor registry on a single-writer event loop.
//
// The registry performs no locking, so every mutation has to happen on one
// goroutine in delivery order. The engine provides that goroutine: tracking
// batches, store readiness and application commands are all enqueued to one
// FIFO queue and processed by Run.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
//   - Events are enqueued from any goroutine (tracker callbacks, UI, CLI).
//   - Run dequeues them one at a time and applies them to the registry.
//   - Synchronous commands (PersistAnchor, ClearAll, ...) enqueue a closure
//     and wait for the loop to run it.
//
// Store Readiness:
// AwaitStore is the one suspension point of a session. The opener runs on its
// own goroutine; when it returns, its result is enqueued like any other
// event, so readiness is applied in order with tracking batches. Events that
// were delivered before readiness are processed first, which is exactly the
// ordering race the registry documents.
//
// Teardown:
// Cancelling Run's context (or Stop) closes the queue and the registry.
// Pending requests and records are discarded; a store opener that finishes
// afterwards has no effect.
//
// Notification seq numbers come from the engine's logical Clock, never from
// wall time.
package engine
