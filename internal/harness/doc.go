// Package harness runs anchor scenarios written in YAML against the real
// engine, registry, tracking session and SQLite store.
//
// A scenario seeds the durable store, drives the engine through a list of
// steps (store readiness, tracking batches, persist and clear requests,
// manipulations, world-anchor relocation) and then checks assertions against
// the final registry and store. Every visualization notification and every
// world-locking correction is recorded in the trace, which golden tests
// compare byte for byte in canonical JSON.
//
// Anchors are referred to by label. A step with "as: door" labels the anchor
// it creates; store readiness labels each load request "load:<name>". A
// reference that is not a label is used as a literal identifier, which lets
// a scenario inject tracking events for identifiers the tracker has not
// produced yet.
//
//	name: reconcile
//	description: A persisted anchor is matched when it arrives
//	persisted:
//	  - name: door
//	    pose: {position: [1, 0, 0]}
//	steps:
//	  - action: store_ready
//	  - action: tick
//	assertions:
//	  - type: record
//	    id: load:door
//	    name: door
//	    persisted: true
package harness
