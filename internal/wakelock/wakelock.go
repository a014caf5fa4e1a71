// Package wakelock keeps the desktop from blanking the screen during a
// workout.
package wakelock

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	screenSaverDest  = "org.freedesktop.ScreenSaver"
	screenSaverPath  = dbus.ObjectPath("/org/freedesktop/ScreenSaver")
	methodInhibit    = screenSaverDest + ".Inhibit"
	methodUnInhibit  = screenSaverDest + ".UnInhibit"
	inhibitAppName   = "thumper"
	inhibitReasonMsg = "Workout in progress"
)

// Caller is the part of a D-Bus object the lock needs.
type Caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call
}

// ScreenSaver inhibits the freedesktop screen saver while held.
type ScreenSaver struct {
	logger *log.Logger
	dial   func() (Caller, error)

	mu     sync.Mutex
	obj    Caller
	cookie uint32
	held   bool
}

// NewScreenSaver connects lazily to the session bus on first Acquire.
func NewScreenSaver(logger *log.Logger) *ScreenSaver {
	return newScreenSaver(logger, func() (Caller, error) {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, err
		}
		return conn.Object(screenSaverDest, screenSaverPath), nil
	})
}

func newScreenSaver(logger *log.Logger, dial func() (Caller, error)) *ScreenSaver {
	if logger == nil {
		panic("ScreenSaver: logger cannot be nil")
	}
	return &ScreenSaver{logger: logger, dial: dial}
}

func (s *ScreenSaver) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held {
		return nil
	}
	if s.obj == nil {
		obj, err := s.dial()
		if err != nil {
			return fmt.Errorf("connect session bus: %w", err)
		}
		s.obj = obj
	}

	var cookie uint32
	call := s.obj.CallWithContext(ctx, methodInhibit, 0, inhibitAppName, inhibitReasonMsg)
	if err := call.Store(&cookie); err != nil {
		return fmt.Errorf("inhibit screen saver: %w", err)
	}
	s.cookie = cookie
	s.held = true
	s.logger.Printf("WakeLock: acquired (cookie %d)", cookie)
	return nil
}

// Release is a no-op when the lock is not held.
func (s *ScreenSaver) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.held {
		return nil
	}
	s.held = false
	call := s.obj.CallWithContext(ctx, methodUnInhibit, 0, s.cookie)
	if call.Err != nil {
		return fmt.Errorf("uninhibit screen saver: %w", call.Err)
	}
	s.logger.Println("WakeLock: released")
	return nil
}

// Noop satisfies the wake-lock contract without doing anything.
type Noop struct{}

func (Noop) Acquire(context.Context) error { return nil }
func (Noop) Release(context.Context) error { return nil }
