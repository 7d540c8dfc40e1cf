package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"photosync/internal/logging"
)

// Type identifies a sync lifecycle event kind.
type Type string

const (
	AssetQueued    Type = "asset:queued"
	AssetUploading Type = "asset:uploading"
	AssetUploaded  Type = "asset:uploaded"
	AssetFailed    Type = "asset:failed"
	AssetRetrying  Type = "asset:retrying"
	QueueStarted   Type = "queue:started"
	QueueCompleted Type = "queue:completed"
	NetworkOnline  Type = "network:online"
	NetworkOffline Type = "network:offline"
)

// Event is the payload delivered to subscribers. Timestamp is always set;
// the remaining fields depend on the event kind.
type Event struct {
	Type        Type
	Timestamp   time.Time
	AssetID     int64
	ServerID    string
	Duration    time.Duration
	Error       string
	FinalError  bool
	Attempt     int
	NextRetryIn time.Duration
	TotalItems  int
	Processed   int
	Failed      int
}

// Listener receives published events. Listeners for one kind run
// synchronously in registration order.
type Listener func(Event)

// Bus is an in-process publish/subscribe dispatcher keyed by event kind.
// A panicking subscriber is recovered and logged so it can neither break
// other subscribers nor propagate back to the emitter.
type Bus struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	nextID    int
	listeners map[Type][]registration
}

type registration struct {
	id int
	fn Listener
}

// NewBus constructs an event bus. A nil logger is replaced with a no-op.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		logger:    logging.NewComponentLogger(logger, "events"),
		listeners: make(map[Type][]registration),
	}
}

// Subscribe registers a listener for one event kind and returns a function
// that removes it again.
func (b *Bus) Subscribe(kind Type, fn Listener) func() {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[kind] = append(b.listeners[kind], registration{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		regs := b.listeners[kind]
		for i, reg := range regs {
			if reg.id == id {
				b.listeners[kind] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to every subscriber of its kind. Missing
// timestamps are filled in.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	regs := append([]registration(nil), b.listeners[event.Type]...)
	b.mu.RUnlock()

	for _, reg := range regs {
		b.invoke(reg.fn, event)
	}
}

func (b *Bus) invoke(fn Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked",
				logging.String(logging.FieldEventType, string(event.Type)),
				logging.Error(fmt.Errorf("%v", r)),
			)
		}
	}()
	fn(event)
}

// EmitAssetQueued announces an asset entering the upload pool.
func (b *Bus) EmitAssetQueued(assetID int64) {
	b.Publish(Event{Type: AssetQueued, AssetID: assetID})
}

// EmitAssetUploading announces an upload attempt starting.
func (b *Bus) EmitAssetUploading(assetID int64, attempt int) {
	if attempt <= 0 {
		attempt = 1
	}
	b.Publish(Event{Type: AssetUploading, AssetID: assetID, Attempt: attempt})
}

// EmitAssetUploaded announces a successful upload with its server identifier
// and duration.
func (b *Bus) EmitAssetUploaded(assetID int64, serverID string, duration time.Duration) {
	b.Publish(Event{Type: AssetUploaded, AssetID: assetID, ServerID: serverID, Duration: duration})
}

// EmitAssetFailed announces an upload failure. final marks the terminal
// failure once the retry budget is exhausted.
func (b *Bus) EmitAssetFailed(assetID int64, errMsg string, final bool) {
	b.Publish(Event{Type: AssetFailed, AssetID: assetID, Error: errMsg, FinalError: final})
}

// EmitAssetRetrying announces a scheduled retry with its attempt number and
// backoff delay.
func (b *Bus) EmitAssetRetrying(assetID int64, attempt int, nextRetryIn time.Duration, errMsg string) {
	b.Publish(Event{Type: AssetRetrying, AssetID: assetID, Attempt: attempt, NextRetryIn: nextRetryIn, Error: errMsg})
}

// EmitQueueStarted announces a processing cycle beginning.
func (b *Bus) EmitQueueStarted(totalItems int) {
	b.Publish(Event{Type: QueueStarted, TotalItems: totalItems})
}

// EmitQueueCompleted announces a processing cycle finishing.
func (b *Bus) EmitQueueCompleted(processed, failed int, duration time.Duration) {
	b.Publish(Event{Type: QueueCompleted, Processed: processed, Failed: failed, Duration: duration})
}

// EmitNetworkOnline announces connectivity being regained.
func (b *Bus) EmitNetworkOnline() {
	b.Publish(Event{Type: NetworkOnline})
}

// EmitNetworkOffline announces connectivity being lost.
func (b *Bus) EmitNetworkOffline() {
	b.Publish(Event{Type: NetworkOffline})
}
