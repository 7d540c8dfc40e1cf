package engine

import (
	"context"

	"photosync/internal/logging"
)

// RetryAllPending is the manual "sync now" entry point: it returns any
// assets stuck in uploading to pending, announces the change, and runs a
// processing cycle. Each step is fault-isolated; a failing store leaves
// the remaining steps running and the call never raises.
func (e *Engine) RetryAllPending(ctx context.Context) {
	reclaimed, err := e.store.ResetStuckUploading(ctx)
	if err != nil {
		e.logger.Error("failed to reset stuck uploads", logging.Error(err))
	} else if reclaimed > 0 {
		e.logger.Info("reset stuck uploads to pending", "count", reclaimed)
	}

	e.changes.NotifyChanged()

	e.ProcessQueue(ctx)
}
