package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelEvent(t *testing.T) {
	event := NewChannelEvent[string](DropNewest)
	require.NotNil(t, event)
	assert.Equal(t, 0, event.ListenerCount())
	assert.Equal(t, DropNewest, event.overflow)
}

func TestChannelEvent_Listen_Notify_Basic(t *testing.T) {
	event := NewChannelEvent[string](DropNewest)

	ch := make(chan string, 10)
	unregister := event.Listen(ch)
	assert.Equal(t, 1, event.ListenerCount())

	event.Notify("test1")
	event.Notify("test2")

	assert.Equal(t, "test1", <-ch)
	assert.Equal(t, "test2", <-ch)

	unregister()
	assert.Equal(t, 0, event.ListenerCount())

	event.Notify("test3")
	assert.Equal(t, 0, len(ch))
}

func TestChannelEvent_Listen_NilChannel(t *testing.T) {
	event := NewChannelEvent[string](DropNewest)

	assert.Panics(t, func() {
		event.Listen(nil)
	})
}

func TestChannelEvent_DropNewest(t *testing.T) {
	event := NewChannelEvent[string](DropNewest)

	ch := make(chan string, 1)
	unregister := event.Listen(ch)
	defer unregister()

	ch <- "blocking"
	event.Notify("test1")
	event.Notify("test2")

	require.Equal(t, 1, len(ch))
	assert.Equal(t, "blocking", <-ch)

	event.Notify("test3")
	assert.Equal(t, "test3", <-ch)
}

func TestChannelEvent_DropOldest(t *testing.T) {
	event := NewChannelEvent[int](DropOldest)

	ch := make(chan int, 2)
	unregister := event.Listen(ch)
	defer unregister()

	for i := 1; i <= 5; i++ {
		event.Notify(i)
	}

	require.Equal(t, 2, len(ch))
	assert.Equal(t, 4, <-ch)
	assert.Equal(t, 5, <-ch)
}

func TestChannelEvent_ConcurrentAccess(t *testing.T) {
	event := NewChannelEvent[int](DropNewest)

	var wg sync.WaitGroup
	channels := make([]chan int, 10)
	unregisters := make([]func(), 10)

	for i := 0; i < 10; i++ {
		ch := make(chan int, 100)
		channels[i] = ch
		unregisters[i] = event.Listen(ch)
	}

	wg.Add(5)
	for i := 0; i < 5; i++ {
		go func(value int) {
			defer wg.Done()
			event.Notify(value)
		}(i)
	}
	wg.Wait()

	for i, ch := range channels {
		received := 0
		for received < 5 {
			select {
			case <-ch:
				received++
			case <-time.After(200 * time.Millisecond):
				t.Fatalf("channel %d did not receive all values, got %d", i, received)
			}
		}
	}

	for _, unregister := range unregisters {
		unregister()
	}
	assert.Equal(t, 0, event.ListenerCount())
}
