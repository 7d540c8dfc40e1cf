package events_test

import (
	"testing"
	"time"

	"photosync/internal/events"
)

func TestSubscribersRunInRegistrationOrder(t *testing.T) {
	bus := events.NewBus(nil)

	var order []string
	bus.Subscribe(events.AssetQueued, func(events.Event) { order = append(order, "first") })
	bus.Subscribe(events.AssetQueued, func(events.Event) { order = append(order, "second") })
	bus.Subscribe(events.AssetQueued, func(events.Event) { order = append(order, "third") })

	bus.EmitAssetQueued(1)

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("got %d invocations, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := events.NewBus(nil)

	var reached bool
	bus.Subscribe(events.AssetUploaded, func(events.Event) { panic("broken observer") })
	bus.Subscribe(events.AssetUploaded, func(events.Event) { reached = true })

	bus.EmitAssetUploaded(7, "srv-1", 120*time.Millisecond)

	if !reached {
		t.Fatal("second subscriber was not invoked after panic in first")
	}
}

func TestPublishFillsTimestamp(t *testing.T) {
	bus := events.NewBus(nil)

	var got events.Event
	bus.Subscribe(events.AssetRetrying, func(ev events.Event) { got = ev })

	bus.EmitAssetRetrying(3, 2, 2*time.Second, "connection reset")

	if got.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
	if got.AssetID != 3 || got.Attempt != 2 || got.NextRetryIn != 2*time.Second {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Error != "connection reset" {
		t.Fatalf("error = %q", got.Error)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := events.NewBus(nil)

	var count int
	cancel := bus.Subscribe(events.NetworkOnline, func(events.Event) { count++ })

	bus.EmitNetworkOnline()
	cancel()
	bus.EmitNetworkOnline()

	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestEventsScopedByKind(t *testing.T) {
	bus := events.NewBus(nil)

	var uploads, failures int
	bus.Subscribe(events.AssetUploaded, func(events.Event) { uploads++ })
	bus.Subscribe(events.AssetFailed, func(events.Event) { failures++ })

	bus.EmitAssetUploaded(1, "srv-1", time.Second)
	bus.EmitAssetFailed(2, "timeout", true)
	bus.EmitAssetFailed(3, "timeout", false)

	if uploads != 1 || failures != 2 {
		t.Fatalf("uploads = %d failures = %d", uploads, failures)
	}
}

func TestChangeNotifier(t *testing.T) {
	notifier := events.NewChangeNotifier()

	var calls int
	cancel := notifier.OnChange(func() { calls++ })
	notifier.OnChange(func() { panic("observer bug") })

	notifier.NotifyChanged()
	notifier.NotifyChanged()
	cancel()
	notifier.NotifyChanged()

	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
