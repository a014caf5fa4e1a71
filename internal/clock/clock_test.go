package clock

import (
	"bytes"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFake_AdvanceRunsDueTasks(t *testing.T) {
	c := NewFake(epoch)

	calls := 0
	c.Every(time.Second, func() { calls++ })

	c.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, calls)

	c.Advance(time.Millisecond)
	assert.Equal(t, 1, calls)

	c.Advance(3 * time.Second)
	assert.Equal(t, 4, calls)
	assert.Equal(t, epoch.Add(4*time.Second), c.Now())
}

func TestFake_NowInsideCallbackIsDueTime(t *testing.T) {
	c := NewFake(epoch)

	var seen []time.Time
	c.Every(time.Second, func() { seen = append(seen, c.Now()) })
	c.Advance(2500 * time.Millisecond)

	assert.Equal(t, []time.Time{epoch.Add(time.Second), epoch.Add(2 * time.Second)}, seen)
	assert.Equal(t, epoch.Add(2500*time.Millisecond), c.Now())
}

func TestFake_OrderAcrossTasks(t *testing.T) {
	c := NewFake(epoch)

	var order []string
	c.Every(2*time.Second, func() { order = append(order, "slow") })
	c.Every(time.Second, func() { order = append(order, "fast") })

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"fast", "slow", "fast"}, order, "ties run in creation order")
}

func TestFake_StopFromCallback(t *testing.T) {
	c := NewFake(epoch)

	calls := 0
	var task Task
	task = c.Every(time.Second, func() {
		calls++
		if calls == 2 {
			task.Stop()
		}
	})

	c.Advance(10 * time.Second)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.ActiveTasks())
}

func TestFake_ScheduleFromCallback(t *testing.T) {
	c := NewFake(epoch)

	inner := 0
	var outer Task
	outer = c.Every(time.Second, func() {
		outer.Stop()
		c.Every(time.Second, func() { inner++ })
	})

	c.Advance(3 * time.Second)
	assert.Equal(t, 2, inner)
}

func TestFake_StopIsIdempotent(t *testing.T) {
	c := NewFake(epoch)
	task := c.Every(time.Second, func() {})
	other := c.Every(time.Second, func() {})

	task.Stop()
	task.Stop()
	assert.Equal(t, 1, c.ActiveTasks())
	other.Stop()
	assert.Equal(t, 0, c.ActiveTasks())
}

func TestFake_SetDoesNotFire(t *testing.T) {
	c := NewFake(epoch)

	calls := 0
	c.Every(time.Second, func() { calls++ })
	c.Set(epoch.Add(time.Hour))
	assert.Equal(t, 0, calls)

	c.Advance(time.Second)
	assert.Equal(t, 1, calls)
}

func TestReal_EveryAndStop(t *testing.T) {
	var buf bytes.Buffer
	c := NewReal(log.New(&buf, "", 0))

	var calls atomic.Int32
	task := c.Every(5*time.Millisecond, func() { calls.Add(1) })

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	task.Stop()
	task.Stop()

	time.Sleep(20 * time.Millisecond)
	settled := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, calls.Load())
}

func TestNewReal_NilLoggerPanics(t *testing.T) {
	assert.Panics(t, func() { NewReal(nil) })
}
