// Package preflight provides readiness checks for the paths and services
// the upload pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs any failures before the
//     engine starts draining the queue.
//   - The CLI "photosync status" command uses the individual check
//     functions to display environment health.
//
// Checks gated by configuration (disk space threshold, connectivity probe)
// are skipped when their settings are absent.
package preflight
