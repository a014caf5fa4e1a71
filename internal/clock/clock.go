// Package clock abstracts wall time and repeating timers so timer-driven
// code can be driven deterministically in tests.
package clock

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nadahalli/thumper/internal/go_func_utils"
)

type Clock interface {
	Now() time.Time
	// Every calls fn each interval until the returned Task is stopped.
	// The first call happens one interval from now.
	Every(interval time.Duration, fn func()) Task
}

type Task interface {
	// Stop is idempotent. A call to fn that is already running may still
	// finish after Stop returns.
	Stop()
}

// Real is backed by the system clock. Each task runs on its own goroutine.
type Real struct {
	logger *log.Logger
}

func NewReal(logger *log.Logger) *Real {
	if logger == nil {
		panic("clock: logger cannot be nil")
	}
	return &Real{logger: logger}
}

func (r *Real) Now() time.Time {
	return time.Now()
}

func (r *Real) Every(interval time.Duration, fn func()) Task {
	t := &realTask{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go_func_utils.SafeGo(r.logger, func() {
		defer t.ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-t.ticker.C:
				if t.stopped.Load() {
					return
				}
				fn()
			}
		}
	})
	return t
}

type realTask struct {
	ticker  *time.Ticker
	done    chan struct{}
	stopped atomic.Bool
	once    sync.Once
}

func (t *realTask) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.done)
	})
}
