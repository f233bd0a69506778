// Package queue holds work items for the current conversion session and
// exposes helpers for driving their lifecycle.
//
// The Store manages a private in-memory SQLite database per session: items
// capture source metadata, status, progress, and failure reasons so the
// conversion core can coordinate without additional state. Nothing is
// persisted across process runs.
//
// Treat this package as the single source of truth for item semantics; status
// mutation happens only through the Store, never on caller-held copies alone.
package queue
