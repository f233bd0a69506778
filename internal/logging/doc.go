// Package logging assembles structured slog loggers and formatting helpers
// used across heifconv components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes shared attribute keys so the conversion core can tag
// log lines with item IDs and event types consistently. The package also
// provides a no-op logger for tests.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
