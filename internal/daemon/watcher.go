package daemon

import (
	"context"
	"time"

	"photosync/internal/logging"
)

// watchNetwork polls the connectivity checker and reacts to edges: losing
// the link publishes network:offline, regaining it publishes network:online
// and opportunistically drains the queue. Checker failures leave the last
// known state in place so a flaky probe does not flap the bus.
func (d *Daemon) watchNetwork(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval())
	defer ticker.Stop()

	var lastOnline *bool

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state, err := d.checker.State(ctx)
		if err != nil {
			d.logger.Debug("network check failed", logging.Error(err))
			continue
		}

		if lastOnline == nil {
			online := state.Online
			lastOnline = &online
			continue
		}
		if state.Online == *lastOnline {
			continue
		}
		*lastOnline = state.Online

		if state.Online {
			d.logger.Info("network regained", "connection", string(state.Type))
			d.engine.Bus().EmitNetworkOnline()
			d.engine.RetryAllPending(ctx)
		} else {
			d.logger.Info("network lost")
			d.engine.Bus().EmitNetworkOffline()
		}
	}
}

// runPeriodicSync triggers a full processing cycle on a fixed interval as a
// backstop for anything the event-driven paths missed.
func (d *Daemon) runPeriodicSync(ctx context.Context) {
	ticker := time.NewTicker(d.syncInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.logger.Debug("periodic sync triggered")
			d.engine.ProcessQueue(ctx)
		}
	}
}
