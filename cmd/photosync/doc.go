// Package main hosts the photosync CLI entrypoint and command graph.
//
// The Cobra-based command tree covers importing captured media into the
// queue, inspecting and repairing queue state, running one-shot sync
// cycles, environment readiness checks, and configuration scaffolding.
// Commands operate directly on the SQLite-backed asset store; the
// long-running daemon is started through the hidden daemon subcommand.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
