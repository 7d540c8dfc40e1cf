package engine

import (
	"context"
	"errors"
	"time"

	"photosync/internal/assets"
	"photosync/internal/logging"
)

// uploadAsset performs one upload attempt for a reserved asset and settles
// its outcome in the store. It never returns an error; every failure path
// ends in a retry schedule or a terminal failed mark.
func (e *Engine) uploadAsset(ctx context.Context, asset *assets.Asset) {
	attempt := asset.Retries + 1
	e.bus.EmitAssetUploading(asset.ID, attempt)
	e.logger.Debug("upload attempt starting",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.Int(logging.FieldAttempt, attempt),
		"filename", asset.Filename)

	start := time.Now()
	result, err := e.transport.Upload(ctx, asset)
	if err != nil {
		e.handleUploadFailure(ctx, asset.ID, attempt, err)
		return
	}
	duration := time.Since(start)

	if err := e.store.MarkUploaded(ctx, asset.ID, result.ServerID); err != nil {
		// The upload landed; losing the local mark means a duplicate
		// attempt later, which the server dedupes via the client key.
		e.logger.Error("failed to record successful upload",
			logging.Int64(logging.FieldAssetID, asset.ID),
			logging.Error(err))
		return
	}

	e.recordSuccess(duration)
	e.bus.EmitAssetUploaded(asset.ID, result.ServerID, duration)
	e.logger.Info("asset uploaded",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String(logging.FieldServerID, result.ServerID),
		"duration", duration.Round(time.Millisecond))
}

// handleUploadFailure routes a failed attempt: bump the retry counter,
// then either schedule a delayed re-enqueue or mark the asset failed for
// good once the budget is spent.
func (e *Engine) handleUploadFailure(ctx context.Context, assetID int64, attempt int, cause error) {
	errMsg := cause.Error()
	maxRetries := e.cfg.Queue.MaxRetries

	retries, err := e.store.IncrementRetryCapped(ctx, assetID, maxRetries)
	if errors.Is(err, assets.ErrNotFound) {
		// Deleted while uploading. Nothing left to settle.
		e.logger.Debug("asset removed during upload",
			logging.Int64(logging.FieldAssetID, assetID))
		return
	}
	if err != nil {
		e.logger.Error("failed to update retry count",
			logging.Int64(logging.FieldAssetID, assetID),
			logging.Error(err))
		if err := e.store.SetPending(ctx, assetID); err != nil {
			e.logger.Error("failed to release asset back to pending",
				logging.Int64(logging.FieldAssetID, assetID),
				logging.Error(err))
		}
		return
	}

	if retries >= maxRetries {
		if err := e.store.MarkFailed(ctx, assetID, errMsg); err != nil {
			e.logger.Error("failed to mark asset failed",
				logging.Int64(logging.FieldAssetID, assetID),
				logging.Error(err))
			return
		}
		e.recordFailure()
		e.bus.EmitAssetFailed(assetID, errMsg, true)
		e.logger.Warn("asset failed permanently",
			logging.Int64(logging.FieldAssetID, assetID),
			"retries", retries,
			logging.String(logging.FieldErrorHint, errMsg))
		return
	}

	if err := e.store.SetPending(ctx, assetID); err != nil {
		e.logger.Error("failed to release asset back to pending",
			logging.Int64(logging.FieldAssetID, assetID),
			logging.Error(err))
		return
	}

	delay := e.backoffDelay(retries)
	e.bus.EmitAssetRetrying(assetID, retries, delay, errMsg)
	e.logger.Info("retry scheduled",
		logging.Int64(logging.FieldAssetID, assetID),
		logging.Int(logging.FieldAttempt, retries),
		"next_retry_in", delay.Round(time.Millisecond),
		logging.String(logging.FieldErrorHint, errMsg))

	e.scheduleRetry(assetID, delay)
}

// scheduleRetry re-enqueues the asset after the backoff delay on its own
// goroutine so the concurrency slot frees immediately.
func (e *Engine) scheduleRetry(assetID int64, delay time.Duration) {
	e.mu.Lock()
	ctx := e.runCtx
	started := e.started
	e.mu.Unlock()
	if !started {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		e.Enqueue(assetID)
	}()
}
