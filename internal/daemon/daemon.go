package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"photosync/internal/assets"
	"photosync/internal/config"
	"photosync/internal/engine"
	"photosync/internal/logging"
	"photosync/internal/network"
	"photosync/internal/notifications"
	"photosync/internal/preflight"
)

// Daemon owns the long-running upload process: it enforces single-instance
// execution with a file lock, runs the engine, watches connectivity, and
// triggers periodic background syncs.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *assets.Store
	engine  *engine.Engine
	checker network.Checker

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	detachNotifications func()
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Metrics      engine.Metrics
	Health       assets.HealthSummary
	DBPath       string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *assets.Store, eng *engine.Engine, checker network.Checker, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || eng == nil || checker == nil {
		return nil, errors.New("daemon requires config, store, engine, and network checker")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "photosyncd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		engine:   eng,
		checker:  checker,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, attaches observers, and launches the
// background loops. The engine is kicked once immediately so anything left
// over from a previous run starts draining without waiting for a trigger.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another photosync daemon instance is already running")
	}

	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			d.logger.Debug("preflight check passed", "check", result.Name, "detail", result.Detail)
		} else {
			d.logger.Warn("preflight check failed", "check", result.Name, "detail", result.Detail)
		}
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.engine.Start(d.ctx)

	notifier := notifications.NewService(d.cfg)
	d.detachNotifications = notifications.Attach(d.engine.Bus(), notifier, d.cfg, d.logger)

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.watchNetwork(d.ctx)
	}()
	go func() {
		defer d.wg.Done()
		d.runPeriodicSync(d.ctx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.engine.RetryAllPending(d.ctx)
	}()

	d.running.Store(true)
	d.logger.Info("photosync daemon started", "lock", d.lockPath)
	return nil
}

// Stop halts background loops and releases the instance lock. In-flight
// uploads run until their own timeouts fire.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.engine.Stop()

	if d.detachNotifications != nil {
		d.detachNotifications()
		d.detachNotifications = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("photosync daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns a runtime snapshot for status displays.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("failed to read queue health", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		Metrics:      d.engine.Metrics(ctx),
		Health:       health,
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

func (d *Daemon) syncInterval() time.Duration {
	minutes := d.cfg.Daemon.SyncIntervalMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

func (d *Daemon) pollInterval() time.Duration {
	ms := d.cfg.Network.PollIntervalMs
	if ms <= 0 {
		ms = 2000
	}
	return time.Duration(ms) * time.Millisecond
}
