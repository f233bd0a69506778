// Package engine hosts the blocking codec work off the control path. The
// Engine owns the backend lifecycle (one-time init handshake, readiness,
// idempotent teardown) and speaks a narrow message protocol: convert requests
// in, progress and exactly-one-terminal outcomes out.
package engine
