// Package engine drives the upload queue: it reserves batches of pending
// assets, uploads them with bounded concurrency, applies exponential
// backoff with jitter on failure, and publishes lifecycle events. All
// state transitions go through the assets store so progress survives
// process restarts.
package engine
