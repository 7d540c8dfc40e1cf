package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"photosync/internal/config"
	"photosync/internal/events"
	"photosync/internal/logging"
)

// Attach subscribes the notification service to the sync event bus,
// honoring the per-category toggles in the configuration. It returns a
// function that detaches every subscription again.
func Attach(bus *events.Bus, svc Service, cfg *config.Config, logger *slog.Logger) func() {
	log := logging.NewComponentLogger(logger, "notifications")
	var unsubs []func()

	if cfg.Notifications.Queue {
		unsubs = append(unsubs, bus.Subscribe(events.QueueCompleted, func(ev events.Event) {
			if ev.Processed == 0 && ev.Failed == 0 {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := svc.NotifyQueueCompleted(ctx, ev.Processed, ev.Failed, ev.Duration); err != nil {
				log.Warn("queue notification failed", logging.Error(err))
			}
		}))
	}

	if cfg.Notifications.Errors {
		unsubs = append(unsubs, bus.Subscribe(events.AssetFailed, func(ev events.Event) {
			if !ev.FinalError {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := svc.NotifyUploadFailed(ctx, fmt.Sprintf("asset #%d", ev.AssetID), ev.Error); err != nil {
				log.Warn("failure notification failed", logging.Error(err))
			}
		}))
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
