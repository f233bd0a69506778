// Package codec invokes the external HEIC decoder binary as an opaque black
// box. The Client shells out per conversion; tests substitute the Executor to
// avoid requiring a real binary.
package codec
