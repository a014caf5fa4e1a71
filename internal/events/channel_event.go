package events

import (
	"sync"
)

// Overflow decides what a ChannelEvent does when a listener's channel is full.
type Overflow int

const (
	// DropNewest skips the listener for this value.
	DropNewest Overflow = iota
	// DropOldest discards the oldest buffered value to make room, so a slow
	// reader always ends up with the latest value.
	DropOldest
)

// ChannelEvent fans values out to listener channels without ever blocking
// the notifier.
type ChannelEvent[T any] struct {
	mu       sync.RWMutex
	channels map[uint64]chan T
	nextID   uint64
	overflow Overflow
}

func NewChannelEvent[T any](overflow Overflow) *ChannelEvent[T] {
	return &ChannelEvent[T]{
		channels: make(map[uint64]chan T),
		overflow: overflow,
	}
}

// Listen registers ch and returns its deregistration function.
// The channel must be bidirectional so DropOldest can drain it.
func (e *ChannelEvent[T]) Listen(ch chan T) func() {
	if ch == nil {
		panic("channel cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.channels[id] = ch
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.channels, id)
		e.mu.Unlock()
	}
}

func (e *ChannelEvent[T]) Notify(value T) {
	e.mu.RLock()
	channelsCopy := make([]chan T, 0, len(e.channels))
	for _, ch := range e.channels {
		channelsCopy = append(channelsCopy, ch)
	}
	e.mu.RUnlock()

	for _, ch := range channelsCopy {
		e.send(ch, value)
	}
}

func (e *ChannelEvent[T]) send(ch chan T, value T) {
	select {
	case ch <- value:
		return
	default:
	}
	if e.overflow != DropOldest {
		return
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- value:
	default:
		// another sender won the freed slot
	}
}

func (e *ChannelEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.channels)
}
