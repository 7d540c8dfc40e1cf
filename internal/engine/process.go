package engine

import (
	"context"
	"time"

	"photosync/internal/assets"
	"photosync/internal/logging"
	"photosync/internal/network"
)

// ProcessQueue runs one full drain cycle: reserve batches of eligible
// assets and upload them with bounded concurrency until the queue is
// empty or the engine is paused. Re-entrant calls return immediately
// while a cycle is active. Internal failures are logged and absorbed;
// the loop itself never propagates an error to the caller.
func (e *Engine) ProcessQueue(ctx context.Context) {
	e.mu.Lock()
	if e.processing || e.paused {
		e.mu.Unlock()
		return
	}
	e.processing = true
	completedBefore := e.completed
	failedBefore := e.failed
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.processing = false
		e.mu.Unlock()
	}()

	if !e.connectivityAllows(ctx) {
		return
	}

	total, err := e.store.CountEligible(ctx)
	if err != nil {
		e.logger.Error("failed to count eligible assets", logging.Error(err))
		return
	}
	if total == 0 {
		return
	}

	cycleStart := time.Now()
	e.bus.EmitQueueStarted(total)
	e.logger.Info("upload cycle started", "eligible", total)

	batchPause := time.Duration(e.cfg.Queue.BatchPauseMs) * time.Millisecond

	for {
		if ctx.Err() != nil || e.isPaused() {
			break
		}

		batch, err := e.store.ReserveBatch(ctx, e.cfg.Queue.BatchSize)
		if err != nil {
			e.logger.Error("failed to reserve batch", logging.Error(err))
			break
		}
		if len(batch) == 0 {
			break
		}

		dispatched := e.dispatchBatch(ctx, batch)

		e.mu.Lock()
		e.lastSync = time.Now()
		e.mu.Unlock()

		if !dispatched {
			break
		}
		if batchPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(batchPause):
			}
		}
	}

	// Wait for the final batch's tasks before reporting the cycle done.
	e.drainSlots()

	e.mu.Lock()
	processed := e.completed - completedBefore
	failed := e.failed - failedBefore
	e.mu.Unlock()

	duration := time.Since(cycleStart)
	e.bus.EmitQueueCompleted(processed, failed, duration)
	e.changes.NotifyChanged()
	e.logger.Info("upload cycle completed",
		"processed", processed,
		"failed", failed,
		"duration", duration.Round(time.Millisecond))
}

// dispatchBatch launches one upload task per reserved asset, blocking on
// the concurrency semaphore when all slots are taken. It reports false
// when the loop should stop (pause or cancellation) with some assets of
// the batch left undispatched; those stay in uploading state and are
// reclaimed by the stale sweep on the next open.
func (e *Engine) dispatchBatch(ctx context.Context, batch []*assets.Asset) bool {
	for _, asset := range batch {
		if e.isPaused() {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case e.slots <- struct{}{}:
		}

		e.trackInFlight(asset.ID)
		e.wg.Add(1)
		go func(a *assets.Asset) {
			defer e.wg.Done()
			defer func() {
				e.untrackInFlight(a.ID)
				<-e.slots
			}()
			e.uploadAsset(ctx, a)
		}(asset)
	}
	return true
}

// drainSlots blocks until every concurrency slot is free, i.e. all tasks
// launched by this cycle have settled.
func (e *Engine) drainSlots() {
	for i := 0; i < cap(e.slots); i++ {
		e.slots <- struct{}{}
	}
	for i := 0; i < cap(e.slots); i++ {
		<-e.slots
	}
}

// connectivityAllows decides whether a cycle may proceed. A definitive
// offline answer skips the cycle quietly. A checker failure skips unless
// the configuration opts into proceeding blind.
func (e *Engine) connectivityAllows(ctx context.Context) bool {
	state, err := e.checker.State(ctx)
	if err != nil {
		if e.cfg.Queue.AllowProceedIfNetworkCheckFails {
			e.logger.Warn("network check failed, proceeding anyway", logging.Error(err))
			return true
		}
		e.logger.Warn("network check failed, skipping cycle", logging.Error(err))
		return false
	}
	if !state.Online {
		e.logger.Debug("offline, skipping upload cycle")
		return false
	}
	if e.cfg.Network.OnlyWiFi && state.Type != network.ConnectionWiFi {
		e.logger.Debug("wifi-only policy blocks upload cycle", "connection", string(state.Type))
		return false
	}
	return true
}
