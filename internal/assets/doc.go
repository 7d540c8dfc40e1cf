// Package assets persists captured media records in SQLite and owns the
// atomic status transitions the upload engine relies on: batch reservation,
// upload completion, retry accounting, and stale-state recovery.
package assets
