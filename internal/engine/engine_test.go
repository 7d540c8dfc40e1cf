package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"photosync/internal/assets"
	"photosync/internal/events"
	"photosync/internal/logging"
	"photosync/internal/network"
	"photosync/internal/testsupport"
	"photosync/internal/transport"
)

type fakeChecker struct {
	mu    sync.Mutex
	state network.State
	err   error
}

func (f *fakeChecker) State(ctx context.Context) (network.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.err
}

func (f *fakeChecker) set(state network.State, err error) {
	f.mu.Lock()
	f.state = state
	f.err = err
	f.mu.Unlock()
}

func onlineChecker() *fakeChecker {
	return &fakeChecker{state: network.State{Online: true, Type: network.ConnectionWiFi}}
}

type fakeTransport struct {
	delay time.Duration
	fail  error

	calls       atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (f *fakeTransport) Upload(ctx context.Context, asset *assets.Asset) (transport.UploadResult, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if current <= peak || f.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return transport.UploadResult{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.fail != nil {
		return transport.UploadResult{}, f.fail
	}
	return transport.UploadResult{ServerID: fmt.Sprintf("srv-%d", asset.ID)}, nil
}

func collect(bus *events.Bus, kind events.Type) *eventLog {
	log := &eventLog{}
	bus.Subscribe(kind, func(ev events.Event) {
		log.mu.Lock()
		log.events = append(log.events, ev)
		log.mu.Unlock()
	})
	return log
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) all() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Event(nil), l.events...)
}

func TestProcessQueueSkipsWhileOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	asset := testsupport.NewAsset(t, store, "offline")

	checker := &fakeChecker{state: network.State{Online: false}}
	tr := &fakeTransport{}
	eng := New(cfg, store, tr, checker, nil, nil, logging.NewNop())

	eng.ProcessQueue(context.Background())

	if got := tr.calls.Load(); got != 0 {
		t.Fatalf("expected no transport calls while offline, got %d", got)
	}
	current, err := store.GetByID(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if current.Status != assets.StatusPending {
		t.Fatalf("expected asset to remain pending, got %s", current.Status)
	}
}

func TestProcessQueueUploadsAfterReconnect(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	asset := testsupport.NewAsset(t, store, "reconnect")

	checker := &fakeChecker{state: network.State{Online: false}}
	tr := &fakeTransport{}
	eng := New(cfg, store, tr, checker, nil, nil, logging.NewNop())
	uploaded := collect(eng.Bus(), events.AssetUploaded)

	eng.ProcessQueue(context.Background())
	if len(uploaded.all()) != 0 {
		t.Fatal("no uploaded events expected while offline")
	}

	checker.set(network.State{Online: true, Type: network.ConnectionWiFi}, nil)
	eng.ProcessQueue(context.Background())

	evs := uploaded.all()
	if len(evs) != 1 {
		t.Fatalf("expected exactly one uploaded event, got %d", len(evs))
	}
	if evs[0].AssetID != asset.ID || evs[0].ServerID == "" {
		t.Fatalf("unexpected uploaded event: %+v", evs[0])
	}

	current, err := store.GetByID(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if current.Status != assets.StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", current.Status)
	}
	if current.ServerID != evs[0].ServerID {
		t.Fatalf("server id mismatch: store %q event %q", current.ServerID, evs[0].ServerID)
	}
}

func TestProcessQueueRespectsWiFiOnlyPolicy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Network.OnlyWiFi = true
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewAsset(t, store, "cellular")

	checker := &fakeChecker{state: network.State{Online: true, Type: network.ConnectionCellular}}
	tr := &fakeTransport{}
	eng := New(cfg, store, tr, checker, nil, nil, logging.NewNop())

	eng.ProcessQueue(context.Background())

	if got := tr.calls.Load(); got != 0 {
		t.Fatalf("wifi-only policy should block cellular uploads, got %d calls", got)
	}
}

func TestProcessQueueNetworkCheckFailurePolicy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewAsset(t, store, "blind")

	checker := &fakeChecker{err: errors.New("permission denied")}
	tr := &fakeTransport{}
	eng := New(cfg, store, tr, checker, nil, nil, logging.NewNop())

	eng.ProcessQueue(context.Background())
	if got := tr.calls.Load(); got != 0 {
		t.Fatalf("default policy should skip on check failure, got %d calls", got)
	}

	cfg.Queue.AllowProceedIfNetworkCheckFails = true
	eng.ProcessQueue(context.Background())
	if got := tr.calls.Load(); got != 1 {
		t.Fatalf("opt-in policy should proceed, got %d calls", got)
	}
}

func TestRetryExhaustionMarksFailed(t *testing.T) {
	const maxRetries = 3
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(maxRetries))
	store := testsupport.MustOpenStore(t, cfg)
	asset := testsupport.NewAsset(t, store, "doomed")

	tr := &fakeTransport{fail: errors.New("boom")}
	eng := New(cfg, store, tr, onlineChecker(), nil, nil, logging.NewNop())
	retrying := collect(eng.Bus(), events.AssetRetrying)
	failed := collect(eng.Bus(), events.AssetFailed)

	ctx := context.Background()
	for i := 0; i < maxRetries*2; i++ {
		eng.ProcessQueue(ctx)
		current, err := store.GetByID(ctx, asset.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if current.Status == assets.StatusFailed {
			break
		}
	}

	current, err := store.GetByID(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if current.Status != assets.StatusFailed {
		t.Fatalf("expected failed status, got %s", current.Status)
	}
	if current.Retries != maxRetries {
		t.Fatalf("expected retries capped at %d, got %d", maxRetries, current.Retries)
	}
	if got := tr.calls.Load(); got != maxRetries {
		t.Fatalf("expected %d upload attempts, got %d", maxRetries, got)
	}

	retryEvents := retrying.all()
	if len(retryEvents) != maxRetries-1 {
		t.Fatalf("expected %d retrying events, got %d", maxRetries-1, len(retryEvents))
	}
	var prev time.Duration
	for i, ev := range retryEvents {
		if ev.Attempt != i+1 {
			t.Fatalf("retrying event %d carries attempt %d", i, ev.Attempt)
		}
		if ev.NextRetryIn < prev {
			t.Fatalf("backoff delays decreased: %v after %v", ev.NextRetryIn, prev)
		}
		prev = ev.NextRetryIn
	}

	failEvents := failed.all()
	if len(failEvents) != 1 {
		t.Fatalf("expected one terminal failed event, got %d", len(failEvents))
	}
	if !failEvents[0].FinalError || failEvents[0].Error == "" {
		t.Fatalf("unexpected terminal event: %+v", failEvents[0])
	}
}

func TestConcurrencyBound(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithBatchSize(5),
		testsupport.WithMaxConcurrent(3),
	)
	store := testsupport.MustOpenStore(t, cfg)
	for i := 0; i < 5; i++ {
		testsupport.NewAsset(t, store, fmt.Sprintf("bounded-%d", i))
	}

	tr := &fakeTransport{delay: 30 * time.Millisecond}
	eng := New(cfg, store, tr, onlineChecker(), nil, nil, logging.NewNop())

	eng.ProcessQueue(context.Background())

	if got := tr.calls.Load(); got != 5 {
		t.Fatalf("expected 5 uploads, got %d", got)
	}
	if peak := tr.maxInFlight.Load(); peak > 3 {
		t.Fatalf("concurrency bound exceeded: %d simultaneous uploads", peak)
	}
}

func TestProcessQueueNotReentrant(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewAsset(t, store, "single")

	tr := &fakeTransport{delay: 50 * time.Millisecond}
	eng := New(cfg, store, tr, onlineChecker(), nil, nil, logging.NewNop())
	started := collect(eng.Bus(), events.QueueStarted)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng.ProcessQueue(context.Background())
		}()
	}
	wg.Wait()

	if got := len(started.all()); got != 1 {
		t.Fatalf("expected one cycle, got %d queue:started events", got)
	}
}

func TestPauseBlocksNewCycles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewAsset(t, store, "paused")

	tr := &fakeTransport{}
	eng := New(cfg, store, tr, onlineChecker(), nil, nil, logging.NewNop())

	eng.Pause()
	eng.ProcessQueue(context.Background())
	if got := tr.calls.Load(); got != 0 {
		t.Fatalf("paused engine must not upload, got %d calls", got)
	}

	eng.Resume()
	eng.ProcessQueue(context.Background())
	if got := tr.calls.Load(); got != 1 {
		t.Fatalf("expected upload after unpause, got %d calls", got)
	}
}

func TestQueueCompletedCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(1))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewAsset(t, store, "ok")
	doomed := testsupport.NewAsset(t, store, "doomed")

	tr := &selectiveTransport{failID: doomed.ID}
	eng := New(cfg, store, tr, onlineChecker(), nil, nil, logging.NewNop())
	completed := collect(eng.Bus(), events.QueueCompleted)

	eng.ProcessQueue(context.Background())

	evs := completed.all()
	if len(evs) != 1 {
		t.Fatalf("expected one queue:completed event, got %d", len(evs))
	}
	if evs[0].Processed != 1 || evs[0].Failed != 1 {
		t.Fatalf("unexpected cycle counts: processed=%d failed=%d", evs[0].Processed, evs[0].Failed)
	}
}

type selectiveTransport struct {
	failID int64
}

func (s *selectiveTransport) Upload(ctx context.Context, asset *assets.Asset) (transport.UploadResult, error) {
	if asset.ID == s.failID {
		return transport.UploadResult{}, errors.New("rejected")
	}
	return transport.UploadResult{ServerID: fmt.Sprintf("srv-%d", asset.ID)}, nil
}

type brokenResetStore struct {
	Store
}

func (s *brokenResetStore) ResetStuckUploading(ctx context.Context) (int64, error) {
	return 0, errors.New("disk io error")
}

func TestRetryAllPendingSurvivesStoreFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	asset := testsupport.NewAsset(t, store, "stuck")

	tr := &fakeTransport{}
	eng := New(cfg, &brokenResetStore{Store: store}, tr, onlineChecker(), nil, nil, logging.NewNop())

	var changed atomic.Int64
	eng.Changes().OnChange(func() {
		changed.Add(1)
	})

	eng.RetryAllPending(context.Background())

	if got := tr.calls.Load(); got != 1 {
		t.Fatalf("expected processing to run despite reset failure, got %d calls", got)
	}
	if changed.Load() == 0 {
		t.Fatal("expected a change notification")
	}

	current, err := store.GetByID(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if current.Status != assets.StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", current.Status)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(1))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewAsset(t, store, "done")
	doomed := testsupport.NewAsset(t, store, "gone")
	testsupport.NewAsset(t, store, "waiting")

	tr := &selectiveTransport{failID: doomed.ID}
	eng := New(cfg, store, tr, onlineChecker(), nil, nil, logging.NewNop())

	before := eng.Metrics(context.Background())
	if before.TotalQueued != 3 || before.Completed != 0 {
		t.Fatalf("unexpected initial metrics: %+v", before)
	}
	if !before.LastSyncTime.IsZero() {
		t.Fatalf("expected zero last sync before any cycle, got %v", before.LastSyncTime)
	}

	eng.ProcessQueue(context.Background())

	m := eng.Metrics(context.Background())
	if m.Completed != 2 {
		t.Fatalf("expected 2 completed, got %d", m.Completed)
	}
	if m.Failed != 1 {
		t.Fatalf("expected 1 failed, got %d", m.Failed)
	}
	if m.TotalQueued != 0 {
		t.Fatalf("expected empty queue, got %d", m.TotalQueued)
	}
	if m.InProgress != 0 {
		t.Fatalf("expected no in-flight uploads, got %d", m.InProgress)
	}
	wantRate := 1.0 / 3.0
	if diff := m.ErrorRate - wantRate; diff > 0.001 || diff < -0.001 {
		t.Fatalf("expected error rate %.3f, got %.3f", wantRate, m.ErrorRate)
	}
	if m.LastSyncTime.IsZero() {
		t.Fatal("expected last sync time to be set")
	}
}

func TestEnqueueKicksProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	asset := testsupport.NewAsset(t, store, "kicked")

	tr := &fakeTransport{}
	eng := New(cfg, store, tr, onlineChecker(), nil, nil, logging.NewNop())
	queued := collect(eng.Bus(), events.AssetQueued)

	eng.Start(context.Background())
	defer eng.Stop()

	eng.Enqueue(asset.ID)

	deadline := time.After(2 * time.Second)
	for tr.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("enqueue did not trigger processing")
		case <-time.After(5 * time.Millisecond):
		}
	}

	evs := queued.all()
	if len(evs) != 1 || evs[0].AssetID != asset.ID {
		t.Fatalf("unexpected queued events: %+v", evs)
	}
}
