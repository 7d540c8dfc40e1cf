package events

import "sync"

// ChangeNotifier is the coarse "something changed" signal for bulk UI
// refresh, separate from the per-asset event bus.
type ChangeNotifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func()
}

// NewChangeNotifier constructs an empty notifier.
func NewChangeNotifier() *ChangeNotifier {
	return &ChangeNotifier{subs: make(map[int]func())}
}

// OnChange registers a callback and returns a function that removes it.
func (n *ChangeNotifier) OnChange(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// NotifyChanged invokes every registered callback. Panics are swallowed so
// one observer cannot break the others.
func (n *ChangeNotifier) NotifyChanged() {
	n.mu.Lock()
	callbacks := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		callbacks = append(callbacks, fn)
	}
	n.mu.Unlock()

	for _, fn := range callbacks {
		func() {
			defer func() { _ = recover() }()
			fn()
		}()
	}
}
