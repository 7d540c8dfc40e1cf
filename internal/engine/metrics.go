package engine

import (
	"context"
	"time"

	"photosync/internal/logging"
)

// Metrics is a point-in-time snapshot of engine throughput. Completed and
// Failed count terminal outcomes since the engine was constructed;
// AverageUploadTime is computed over a bounded window of recent uploads.
type Metrics struct {
	TotalQueued       int
	InProgress        int
	Completed         int
	Failed            int
	AverageUploadTime time.Duration
	ErrorRate         float64
	LastSyncTime      time.Time
}

// Metrics assembles a snapshot. The eligible count comes from the store;
// a store failure degrades to zero rather than failing the snapshot.
func (e *Engine) Metrics(ctx context.Context) Metrics {
	queued, err := e.store.CountEligible(ctx)
	if err != nil {
		e.logger.Warn("failed to count eligible assets for metrics", logging.Error(err))
		queued = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m := Metrics{
		TotalQueued:  queued,
		InProgress:   len(e.inFlight),
		Completed:    e.completed,
		Failed:       e.failed,
		LastSyncTime: e.lastSync,
	}

	if len(e.durations) > 0 {
		var total time.Duration
		for _, d := range e.durations {
			total += d
		}
		m.AverageUploadTime = total / time.Duration(len(e.durations))
	}
	if settled := e.completed + e.failed; settled > 0 {
		m.ErrorRate = float64(e.failed) / float64(settled)
	}
	return m
}

func (e *Engine) recordSuccess(duration time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed++
	e.durations = append(e.durations, duration)
	if len(e.durations) > durationHistoryLimit {
		e.durations = e.durations[len(e.durations)-durationHistoryLimit:]
	}
}

func (e *Engine) recordFailure() {
	e.mu.Lock()
	e.failed++
	e.mu.Unlock()
}
