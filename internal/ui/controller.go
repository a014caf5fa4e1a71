package ui

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/nadahalli/thumper/internal/events"
	"github.com/nadahalli/thumper/internal/go_func_utils"
	"github.com/nadahalli/thumper/internal/jump"
	"github.com/nadahalli/thumper/internal/session"
	"github.com/nadahalli/thumper/internal/workout"
)

// Session is the part of session.Controller the UI drives.
type Session interface {
	Subscribe(fn func(session.State)) func()
	State() session.State
	Start(ctx context.Context) error
	Pause()
	Resume()
	Stop(ctx context.Context)
	SaveWorkout(ctx context.Context) error
	DiscardWorkout()
	Sensitivity() int
	SetSensitivity(threshold int)
	ScanAndConnect(ctx context.Context) error
	DisconnectHeartRate() error
}

type History interface {
	List(ctx context.Context) ([]workout.Workout, error)
	Delete(ctx context.Context, id int64) error
	ExportOne(ctx context.Context, id int64) (string, error)
	ExportAll(ctx context.Context) (string, error)
}

// Controller turns key presses into session and history calls. Every call
// runs on its own goroutine so the tview event loop never waits on
// audio, Bluetooth or disk.
type Controller struct {
	session     Session
	history     History
	logger      *log.Logger
	scanTimeout time.Duration

	stateEvent   *events.ChannelEvent[session.State]
	historyEvent *events.ChannelEvent[[]workout.Workout]
	closeEvent   *events.ChannelEvent[struct{}]
	unsubscribe  func()

	sensitivityMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewController(s Session, h History, scanTimeout time.Duration, logger *log.Logger) *Controller {
	if s == nil {
		panic("UIController: session cannot be nil")
	}
	if h == nil {
		panic("UIController: history cannot be nil")
	}
	if logger == nil {
		panic("UIController: logger cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		session:      s,
		history:      h,
		logger:       logger,
		scanTimeout:  scanTimeout,
		stateEvent:   events.NewChannelEvent[session.State](events.DropOldest),
		historyEvent: events.NewChannelEvent[[]workout.Workout](events.DropOldest),
		closeEvent:   events.NewChannelEvent[struct{}](events.DropNewest),
		ctx:          ctx,
		cancel:       cancel,
	}
	// Notify never blocks, so this is safe to run on the session's
	// delivery path.
	c.unsubscribe = s.Subscribe(c.stateEvent.Notify)
	return c
}

// ListenToState delivers every state change; a slow reader sees the latest.
func (c *Controller) ListenToState(ch chan session.State) func() {
	return c.stateEvent.Listen(ch)
}

func (c *Controller) ListenToHistory(ch chan []workout.Workout) func() {
	return c.historyEvent.Listen(ch)
}

func (c *Controller) ListenToClose(ch chan struct{}) func() {
	return c.closeEvent.Listen(ch)
}

func (c *Controller) CurrentState() session.State {
	return c.session.State()
}

func (c *Controller) run(action string, fn func(ctx context.Context) error) {
	go_func_utils.SafeGoWG(c.logger, &c.wg, func() {
		if err := fn(c.ctx); err != nil {
			c.logger.Printf("UI: %s failed: %v", action, err)
		}
	})
}

// ToggleWorkout starts, pauses or resumes depending on the current phase.
func (c *Controller) ToggleWorkout() {
	switch phase := c.session.State().Phase; phase {
	case session.PhaseIdle:
		c.run("start", func(ctx context.Context) error {
			return c.session.Start(ctx)
		})
	case session.PhaseActive:
		c.run("pause", func(context.Context) error {
			c.session.Pause()
			return nil
		})
	case session.PhasePaused:
		c.run("resume", func(context.Context) error {
			c.session.Resume()
			return nil
		})
	default:
		c.logger.Printf("UI: nothing to toggle while %s", phase)
	}
}

func (c *Controller) StopWorkout() {
	c.run("stop", func(ctx context.Context) error {
		c.session.Stop(ctx)
		return nil
	})
}

func (c *Controller) SaveWorkout() {
	c.run("save", func(ctx context.Context) error {
		if err := c.session.SaveWorkout(ctx); err != nil {
			return err
		}
		return c.refreshHistory(ctx)
	})
}

func (c *Controller) DiscardWorkout() {
	c.run("discard", func(context.Context) error {
		c.session.DiscardWorkout()
		return nil
	})
}

func (c *Controller) ConnectHeartRate() {
	c.run("connect heart rate", func(ctx context.Context) error {
		if c.scanTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.scanTimeout)
			defer cancel()
		}
		err := c.session.ScanAndConnect(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Printf("UI: no heart rate monitor found within %s", c.scanTimeout)
			return nil
		}
		return err
	})
}

func (c *Controller) DisconnectHeartRate() {
	c.run("disconnect heart rate", func(context.Context) error {
		return c.session.DisconnectHeartRate()
	})
}

// AdjustSensitivity moves the threshold by delta within the allowed range.
func (c *Controller) AdjustSensitivity(delta int) {
	c.run("adjust sensitivity", func(context.Context) error {
		c.sensitivityMu.Lock()
		defer c.sensitivityMu.Unlock()
		current := c.session.Sensitivity()
		next := jump.ClampThreshold(current + delta)
		if next == current {
			return nil
		}
		c.session.SetSensitivity(next)
		c.logger.Printf("UI: sensitivity %d", next)
		return nil
	})
}

func (c *Controller) RefreshHistory() {
	c.run("load history", c.refreshHistory)
}

func (c *Controller) refreshHistory(ctx context.Context) error {
	list, err := c.history.List(ctx)
	if err != nil {
		return err
	}
	c.historyEvent.Notify(list)
	return nil
}

func (c *Controller) ExportWorkout(id int64) {
	c.run("export", func(ctx context.Context) error {
		path, err := c.history.ExportOne(ctx, id)
		if err != nil {
			return err
		}
		c.logger.Printf("UI: saved %s", path)
		return nil
	})
}

func (c *Controller) ExportAll() {
	c.run("export all", func(ctx context.Context) error {
		path, err := c.history.ExportAll(ctx)
		if err != nil {
			return err
		}
		c.logger.Printf("UI: saved %s", path)
		return nil
	})
}

func (c *Controller) DeleteWorkout(id int64) {
	c.run("delete", func(ctx context.Context) error {
		if err := c.history.Delete(ctx, id); err != nil {
			return err
		}
		return c.refreshHistory(ctx)
	})
}

func (c *Controller) RequestQuit() {
	c.closeEvent.Notify(struct{}{})
}

// Shutdown cancels running actions and waits for them to return.
func (c *Controller) Shutdown() {
	c.unsubscribe()
	c.cancel()
	c.wg.Wait()
}
