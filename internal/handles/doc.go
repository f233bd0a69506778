// Package handles issues revocable references to in-memory binary payloads,
// mirroring host-managed object URLs. Converted artifacts hold their payload
// through a handle; the result store releases each one exactly once on reset
// or teardown so nothing leaks and nothing is revoked twice.
package handles
