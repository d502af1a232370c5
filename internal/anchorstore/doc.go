// Package anchorstore is the durable side of anchor persistence.
//
// Client is the contract the registry consumes: enumerate persisted names,
// request a persisted anchor be loaded (getting back a provisional tracking
// identifier), persist a live anchor under a name, and clear everything.
//
// Store is the SQLite implementation. It keeps one row per persisted name with
// the pose captured at persist time. Loading hands that pose to the attached
// tracking subsystem, which decides the provisional identifier and later
// reports the anchor through its own change stream.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Names are NFC-normalised at the store boundary so that visually identical
// names typed on different devices address the same entry.
package anchorstore
