// Package converter contains the orchestration core: it admits work items to
// the conversion engine in submission order, bounds concurrency, enforces a
// per-item deadline, aggregates batch progress, and records successful
// payloads as session artifacts. Each item settles on exactly one terminal
// outcome regardless of how engine output and deadlines interleave.
package converter
