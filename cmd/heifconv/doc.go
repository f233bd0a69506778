// Package main hosts the heifconv CLI entrypoint and command graph.
//
// The Cobra-based command tree wires configuration resolution, structured
// logging, and the conversion core into the convert command, and surfaces
// supporting utilities for dependency checks, configuration scaffolding, and
// notification testing.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
