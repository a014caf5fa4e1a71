package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCallbackEvent(t *testing.T) {
	event := NewCallbackEvent[string]()
	require.NotNil(t, event)
	assert.Equal(t, 0, event.ListenerCount())
}

func TestEvent_Listen_Notify_Basic(t *testing.T) {
	event := NewCallbackEvent[string]()

	var received []string
	unregister := event.Listen(func(value string) {
		received = append(received, value)
	})
	assert.Equal(t, 1, event.ListenerCount())

	event.Notify("test1")
	event.Notify("test2")
	assert.Equal(t, []string{"test1", "test2"}, received)

	unregister()
	assert.Equal(t, 0, event.ListenerCount())

	event.Notify("test3")
	assert.Equal(t, []string{"test1", "test2"}, received)
}

func TestEvent_DeliversInRegistrationOrder(t *testing.T) {
	event := NewCallbackEvent[int]()

	var order []string
	for _, name := range []string{"a", "b", "c", "d"} {
		event.Listen(func(int) { order = append(order, name) })
	}

	event.Notify(1)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestEvent_UnregisterSelfDuringNotify(t *testing.T) {
	event := NewCallbackEvent[string]()

	var received []string
	var unregister func()
	unregister = event.Listen(func(value string) {
		received = append(received, value)
		if value == "unregister" {
			unregister()
		}
	})

	event.Notify("test1")
	event.Notify("unregister")
	event.Notify("test2")

	assert.Equal(t, []string{"test1", "unregister"}, received)
	assert.Equal(t, 0, event.ListenerCount())
}

func TestEvent_UnregisterOtherDuringNotify(t *testing.T) {
	event := NewCallbackEvent[int]()

	var secondCalls int
	var unregisterSecond func()
	event.Listen(func(int) { unregisterSecond() })
	unregisterSecond = event.Listen(func(int) { secondCalls++ })

	event.Notify(1)
	event.Notify(2)

	assert.Equal(t, 0, secondCalls, "listener removed earlier in the same delivery must not be called")
	assert.Equal(t, 1, event.ListenerCount())
}

func TestEvent_ListenDuringNotify(t *testing.T) {
	event := NewCallbackEvent[int]()

	var lateValues []int
	added := false
	event.Listen(func(int) {
		if added {
			return
		}
		added = true
		event.Listen(func(v int) { lateValues = append(lateValues, v) })
	})

	event.Notify(1)
	assert.Empty(t, lateValues, "listener added during a delivery waits for the next one")

	event.Notify(2)
	assert.Equal(t, []int{2}, lateValues)
	assert.Equal(t, 2, event.ListenerCount())
}

func TestEvent_NoDuplicateDelivery(t *testing.T) {
	event := NewCallbackEvent[int]()

	calls := 0
	var unregisterFirst func()
	unregisterFirst = event.Listen(func(int) {
		calls++
		// re-register a fresh listener on every delivery, and drop this one
		unregisterFirst()
		unregisterFirst = event.Listen(func(int) { calls++ })
	})

	event.Notify(1)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, event.ListenerCount())
}

func TestEvent_ConcurrentAccess(t *testing.T) {
	event := NewCallbackEvent[int]()

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	unregisters := make([]func(), 10)

	for i := 0; i < 10; i++ {
		unregisters[i] = event.Listen(func(v int) {
			mu.Lock()
			total += v
			mu.Unlock()
		})
	}

	wg.Add(5)
	for i := 0; i < 5; i++ {
		go func() {
			defer wg.Done()
			event.Notify(1)
		}()
	}
	wg.Wait()

	mu.Lock()
	assert.Equal(t, 50, total)
	mu.Unlock()

	for _, unregister := range unregisters {
		unregister()
	}
	assert.Equal(t, 0, event.ListenerCount())
}

func TestEvent_Listen_NilCallback(t *testing.T) {
	event := NewCallbackEvent[string]()

	assert.Panics(t, func() {
		event.Listen(nil)
	})
}

func TestEvent_MultipleUnregisterCalls(t *testing.T) {
	event := NewCallbackEvent[string]()

	unregister := event.Listen(func(string) {})
	event.Listen(func(string) {})
	assert.Equal(t, 2, event.ListenerCount())

	unregister()
	unregister()
	unregister()
	assert.Equal(t, 1, event.ListenerCount())
}
