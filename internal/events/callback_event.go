package events

import (
	"sync"
	"sync/atomic"
)

type subscription[T any] struct {
	id       uint64
	callback func(T)
	live     atomic.Bool
}

// CallbackEvent is a synchronous pub/sub list. Listeners are called in
// registration order on the goroutine that calls Notify.
//
// The listener set may change from inside a callback: a listener removed
// during a delivery is not called for the rest of it, and a listener added
// during a delivery first hears the next one.
type CallbackEvent[T any] struct {
	mu        sync.Mutex
	listeners []*subscription[T]
	nextID    uint64
}

func NewCallbackEvent[T any]() *CallbackEvent[T] {
	return &CallbackEvent[T]{}
}

// Listen registers callback and returns its deregistration function.
// Calling the returned function more than once is harmless.
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("callback cannot be nil")
	}

	sub := &subscription[T]{callback: callback}
	sub.live.Store(true)

	e.mu.Lock()
	sub.id = e.nextID
	e.nextID++
	e.listeners = append(e.listeners, sub)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.live.Store(false)
			e.remove(sub.id)
		})
	}
}

func (e *CallbackEvent[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.listeners {
		if sub.id == id {
			// copy-on-write so an in-flight Notify keeps its own snapshot intact
			next := make([]*subscription[T], 0, len(e.listeners)-1)
			next = append(next, e.listeners[:i]...)
			next = append(next, e.listeners[i+1:]...)
			e.listeners = next
			return
		}
	}
}

// Notify delivers value to every listener registered when Notify was called
// and still registered when its turn comes.
func (e *CallbackEvent[T]) Notify(value T) {
	e.mu.Lock()
	snapshot := e.listeners
	e.mu.Unlock()

	for _, sub := range snapshot {
		if !sub.live.Load() {
			continue
		}
		sub.callback(value)
	}
}

// ListenerCount returns the current number of registered listeners
func (e *CallbackEvent[T]) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}
