// Package artifacts stores converted outputs for the current session and
// guarantees their access handles are released exactly once, on reset or
// teardown. Export operations hand bytes to the filesystem without mutating
// store state.
package artifacts
