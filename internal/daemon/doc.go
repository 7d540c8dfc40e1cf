// Package daemon wires the upload engine into a long-running process:
// single-instance locking, connectivity watching with online/offline
// events, periodic background syncs, and notification delivery.
package daemon
