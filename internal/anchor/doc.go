// Package anchor defines the data model shared by the anchor store, the
// tracking subsystem and the registry: identifiers, tracking states and the
// per-anchor record.
//
// An ID is assigned by the tracking subsystem and is only meaningful for the
// lifetime of one session. The stable identity of a persisted anchor is its
// name; the registry pairs the two.
package anchor
