package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"photosync/internal/assets"
	"photosync/internal/config"
	"photosync/internal/events"
	"photosync/internal/logging"
	"photosync/internal/network"
	"photosync/internal/transport"
)

// Store is the persistence surface the engine drives. *assets.Store
// satisfies it; tests substitute in-memory fakes.
type Store interface {
	ReserveBatch(ctx context.Context, limit int) ([]*assets.Asset, error)
	MarkUploaded(ctx context.Context, id int64, serverID string) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	SetPending(ctx context.Context, id int64) error
	IncrementRetryCapped(ctx context.Context, id int64, max int) (int, error)
	ResetStuckUploading(ctx context.Context) (int64, error)
	CountEligible(ctx context.Context) (int, error)
}

const durationHistoryLimit = 50

// Engine owns the upload processing loop: batch reservation, bounded
// concurrency, retry/backoff, and event emission. One engine instance runs
// per process; the daemon enforces that with a file lock.
type Engine struct {
	cfg       *config.Config
	store     Store
	transport transport.Transport
	checker   network.Checker
	bus       *events.Bus
	changes   *events.ChangeNotifier
	logger    *slog.Logger

	slots chan struct{}

	mu         sync.Mutex
	inFlight   map[int64]struct{}
	processing bool
	paused     bool
	completed  int
	failed     int
	durations  []time.Duration
	lastSync   time.Time

	runCtx  context.Context
	cancel  context.CancelFunc
	started bool

	wg sync.WaitGroup
}

// New constructs an engine. bus and changes may be nil, in which case
// fresh instances are created.
func New(cfg *config.Config, store Store, tr transport.Transport, checker network.Checker, bus *events.Bus, changes *events.ChangeNotifier, logger *slog.Logger) *Engine {
	if bus == nil {
		bus = events.NewBus(logger)
	}
	if changes == nil {
		changes = events.NewChangeNotifier()
	}
	maxConcurrent := cfg.Queue.MaxConcurrentUploads
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Engine{
		cfg:       cfg,
		store:     store,
		transport: tr,
		checker:   checker,
		bus:       bus,
		changes:   changes,
		logger:    logging.NewComponentLogger(logger, "engine"),
		slots:     make(chan struct{}, maxConcurrent),
		inFlight:  make(map[int64]struct{}),
	}
}

// Bus returns the engine's event bus for observer registration.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Changes returns the coarse change notifier.
func (e *Engine) Changes() *events.ChangeNotifier {
	return e.changes
}

// Start retains the root context used for fire-and-forget work (enqueue
// kicks and delayed retries). It does not begin processing by itself.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.runCtx, e.cancel = context.WithCancel(ctx)
	e.started = true
}

// Stop cancels background work and waits for in-flight tasks to settle.
// Already-dispatched uploads run until their own timeouts fire.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.started = false
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
}

// Pause prevents new batches and tasks from being started. In-flight
// uploads are not cancelled.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume lifts a pause and kicks the processing loop.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	ctx := e.runCtx
	started := e.started
	e.mu.Unlock()

	if started {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.ProcessQueue(ctx)
		}()
	}
}

// Enqueue hints that an asset (already persisted as pending) is ready for
// upload. It emits a queued event and starts the processing loop when the
// engine is idle and not paused. The caller does not wait for delivery.
func (e *Engine) Enqueue(assetID int64) {
	e.bus.EmitAssetQueued(assetID)

	e.mu.Lock()
	idle := !e.processing && !e.paused
	ctx := e.runCtx
	started := e.started
	e.mu.Unlock()

	if !idle || !started {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.ProcessQueue(ctx)
	}()
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) trackInFlight(id int64) {
	e.mu.Lock()
	e.inFlight[id] = struct{}{}
	e.mu.Unlock()
}

func (e *Engine) untrackInFlight(id int64) {
	e.mu.Lock()
	delete(e.inFlight, id)
	e.mu.Unlock()
}
