// Package session runs the workout lifecycle: countdown, active and paused
// time, jump and heart-rate accounting, and the save or discard decision at
// the end.
package session

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/nadahalli/thumper/internal/clock"
	"github.com/nadahalli/thumper/internal/events"
	"github.com/nadahalli/thumper/internal/jump"
	"github.com/nadahalli/thumper/internal/summary"
	"github.com/nadahalli/thumper/internal/workout"
)

const (
	CountdownSeconds = 5
	TickInterval     = time.Second
	SampleInterval   = 5000 * time.Millisecond

	// SensitivityKey is the settings key holding the detector threshold.
	SensitivityKey = "thumper_sensitivity"

	wakeLockTimeout = 5 * time.Second
)

// Deps are the collaborators a Controller drives. All are required.
type Deps struct {
	Audio     AudioSource
	HeartRate HeartRateSource
	WakeLock  WakeLock
	Store     WorkoutStore
	Settings  KeyValueStore
	Clock     clock.Clock
	Logger    *log.Logger
}

type Option func(*options)

type options struct {
	cooldownMs int64
	maxGapMs   int64
}

// WithDetectorTiming overrides the jump cooldown and the max gap counted as
// continuous jumping.
func WithDetectorTiming(cooldownMs, maxGapMs int64) Option {
	return func(o *options) {
		o.cooldownMs = cooldownMs
		o.maxGapMs = maxGapMs
	}
}

// Controller owns the single live session.
//
// User operations (Start, Pause, Resume, Stop, SaveWorkout, DiscardWorkout)
// are serialized with each other, including across their awaited
// collaborator calls. Timer ticks and collaborator callbacks interleave with
// them but never split a state mutation.
type Controller struct {
	audio     AudioSource
	heartRate HeartRateSource
	wakeLock  WakeLock
	store     WorkoutStore
	settings  KeyValueStore
	clock     clock.Clock
	logger    *log.Logger

	stateEvent *events.CallbackEvent[State]
	opMu       sync.Mutex
	pubMu      sync.Mutex

	mu             sync.Mutex
	phase          Phase
	countdown      int
	elapsedSeconds int
	jumpCount      int
	currentHR      *int
	hrHistory      []int
	samples        []workout.Sample
	summary        *summary.Metrics
	connState      workout.ConnectionState
	detector       *jump.Detector
	startedAt      time.Time
	virtualStart   time.Time
	savedID        int64

	// timerGen invalidates ticks from timers that were cleared while their
	// callback was already in flight
	timerGen      uint64
	countdownTask clock.Task
	elapsedTask   clock.Task
	sampleTask    clock.Task
}

func NewController(deps Deps, opts ...Option) *Controller {
	if deps.Audio == nil {
		panic("Controller: audio source cannot be nil")
	}
	if deps.HeartRate == nil {
		panic("Controller: heart rate source cannot be nil")
	}
	if deps.WakeLock == nil {
		panic("Controller: wake lock cannot be nil")
	}
	if deps.Store == nil {
		panic("Controller: store cannot be nil")
	}
	if deps.Settings == nil {
		panic("Controller: settings cannot be nil")
	}
	if deps.Clock == nil {
		panic("Controller: clock cannot be nil")
	}
	if deps.Logger == nil {
		panic("Controller: logger cannot be nil")
	}

	o := options{cooldownMs: jump.DefaultCooldownMs, maxGapMs: jump.DefaultMaxGapMs}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		audio:      deps.Audio,
		heartRate:  deps.HeartRate,
		wakeLock:   deps.WakeLock,
		store:      deps.Store,
		settings:   deps.Settings,
		clock:      deps.Clock,
		logger:     deps.Logger,
		stateEvent: events.NewCallbackEvent[State](),
		phase:      PhaseIdle,
		connState:  workout.Disconnected,
	}
	c.detector = jump.New(loadSensitivity(deps.Settings, deps.Logger), o.cooldownMs, o.maxGapMs)

	c.audio.SetBlockHandler(c.handleAudioBlock)
	c.heartRate.SetHandlers(c.handleHeartRate, c.handleConnectionState)
	return c
}

func loadSensitivity(settings KeyValueStore, logger *log.Logger) int {
	raw, ok := settings.GetItem(SensitivityKey)
	if !ok {
		return jump.DefaultThreshold
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logger.Printf("Session: ignoring unparsable sensitivity %q", raw)
		return jump.DefaultThreshold
	}
	return v
}

// Subscribe registers fn for every state change and returns the function
// that removes it. fn runs synchronously and must not call the controller's
// user operations.
func (c *Controller) Subscribe(fn func(State)) func() {
	return c.stateEvent.Listen(fn)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	st := State{
		Phase:           c.phase,
		Countdown:       c.countdown,
		ElapsedSeconds:  c.elapsedSeconds,
		JumpCount:       c.jumpCount,
		ConnectionState: c.connState,
		Sensitivity:     c.detector.Threshold(),
		Summary:         c.summary,
	}
	if c.currentHR != nil {
		hr := *c.currentHR
		st.HeartRate = &hr
	}
	return st
}

// notify delivers the state as of delivery time, so that racing notifiers
// never leave subscribers holding an older snapshot.
func (c *Controller) notify() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.stateEvent.Notify(c.State())
}

// Samples returns a copy of the current session's snapshots.
func (c *Controller) Samples() []workout.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]workout.Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// Start begins a new session from idle. Audio capture is started first; if
// it fails the error is returned and nothing else changes. Calls from any
// other phase are ignored.
func (c *Controller) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return nil
	}
	c.clearTimersLocked()
	c.mu.Unlock()

	if err := c.audio.Start(ctx); err != nil {
		c.logger.Printf("Session: audio start failed: %v", err)
		return fmt.Errorf("start audio capture: %w", err)
	}

	c.mu.Lock()
	c.resetLocked()
	c.phase = PhaseCountdown
	c.countdown = CountdownSeconds
	gen := c.timerGen
	c.countdownTask = c.clock.Every(TickInterval, func() { c.countdownTick(gen) })
	c.mu.Unlock()

	c.logger.Printf("Session: countdown started")
	c.notify()
	return nil
}

func (c *Controller) resetLocked() {
	c.countdown = 0
	c.elapsedSeconds = 0
	c.jumpCount = 0
	c.hrHistory = nil
	c.samples = nil
	c.summary = nil
	c.savedID = 0
	c.startedAt = time.Time{}
	c.virtualStart = time.Time{}
	c.detector.Reset()
}

func (c *Controller) countdownTick(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen || c.phase != PhaseCountdown {
		c.mu.Unlock()
		return
	}
	c.countdown--
	if c.countdown > 0 {
		c.mu.Unlock()
		c.notify()
		return
	}

	c.clearTimersLocked()
	now := c.clock.Now()
	c.phase = PhaseActive
	c.startedAt = now
	c.virtualStart = now
	c.elapsedSeconds = 0
	c.startActiveTimersLocked()
	c.mu.Unlock()

	c.logger.Printf("Session: active")
	c.notify()
	c.acquireWakeLock()
}

func (c *Controller) acquireWakeLock() {
	ctx, cancel := context.WithTimeout(context.Background(), wakeLockTimeout)
	defer cancel()
	if err := c.wakeLock.Acquire(ctx); err != nil {
		c.logger.Printf("Session: wake lock not acquired: %v", err)
		return
	}

	// the session may have ended while the lock was being acquired
	c.mu.Lock()
	ended := c.phase != PhaseActive && c.phase != PhasePaused
	c.mu.Unlock()
	if ended {
		c.releaseWakeLock(ctx)
	}
}

func (c *Controller) releaseWakeLock(ctx context.Context) {
	if err := c.wakeLock.Release(ctx); err != nil {
		c.logger.Printf("Session: wake lock release failed: %v", err)
	}
}

func (c *Controller) startActiveTimersLocked() {
	gen := c.timerGen
	c.elapsedTask = c.clock.Every(TickInterval, func() { c.elapsedTick(gen) })
	c.sampleTask = c.clock.Every(SampleInterval, func() { c.sampleTick(gen) })
}

// clearTimersLocked stops every timer and invalidates their pending ticks.
func (c *Controller) clearTimersLocked() {
	c.timerGen++
	for _, task := range []*clock.Task{&c.countdownTask, &c.elapsedTask, &c.sampleTask} {
		if *task != nil {
			(*task).Stop()
			*task = nil
		}
	}
}

func (c *Controller) elapsedAtLocked(now time.Time) int {
	return int(now.Sub(c.virtualStart) / time.Second)
}

func (c *Controller) elapsedTick(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen || c.phase != PhaseActive {
		c.mu.Unlock()
		return
	}
	c.elapsedSeconds = c.elapsedAtLocked(c.clock.Now())
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) sampleTick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.timerGen || c.phase != PhaseActive {
		return
	}
	c.takeSampleLocked()
}

func (c *Controller) takeSampleLocked() {
	s := workout.Sample{
		Timestamp: c.clock.Now(),
		JumpCount: c.jumpCount,
	}
	if c.currentHR != nil {
		hr := *c.currentHR
		s.HeartRate = &hr
	}
	c.samples = append(c.samples, s)
}

// Pause freezes elapsed time. Ignored unless active.
func (c *Controller) Pause() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return
	}
	c.elapsedSeconds = c.elapsedAtLocked(c.clock.Now())
	c.clearTimersLocked()
	c.phase = PhasePaused
	c.mu.Unlock()

	c.logger.Printf("Session: paused at %ds", c.State().ElapsedSeconds)
	c.notify()
}

// Resume continues elapsed time from where Pause froze it. Ignored unless
// paused.
func (c *Controller) Resume() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.phase != PhasePaused {
		c.mu.Unlock()
		return
	}
	c.virtualStart = c.clock.Now().Add(-time.Duration(c.elapsedSeconds) * time.Second)
	c.phase = PhaseActive
	c.clearTimersLocked()
	c.startActiveTimersLocked()
	c.mu.Unlock()

	c.logger.Printf("Session: resumed")
	c.notify()
}

// Stop ends an active or paused session and computes its summary. The
// session waits in the stopped phase for SaveWorkout or DiscardWorkout.
func (c *Controller) Stop(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.phase != PhaseActive && c.phase != PhasePaused {
		c.mu.Unlock()
		return
	}
	c.clearTimersLocked()
	if c.phase == PhaseActive {
		c.elapsedSeconds = c.elapsedAtLocked(c.clock.Now())
	}
	c.phase = PhaseStopped
	c.takeSampleLocked()
	m := summary.Compute(c.elapsedSeconds, c.hrHistory, c.jumpCount, c.detector.JumpTimeMs())
	c.summary = &m
	c.mu.Unlock()

	// the block handler takes mu, so audio must be stopped without it
	c.audio.Stop()
	c.releaseWakeLock(ctx)

	c.logger.Printf("Session: stopped after %ds with %d jumps", m.DurationSeconds, c.State().JumpCount)
	c.notify()
}

// SaveWorkout persists the stopped session and returns to idle. On error the
// session stays stopped with its summary so the save can be retried; a
// workout row that was already written is reused by the retry.
func (c *Controller) SaveWorkout(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.phase != PhaseStopped || c.summary == nil {
		c.mu.Unlock()
		return nil
	}
	record := workout.Workout{
		StartTime:       c.startedAt,
		DurationSeconds: c.summary.DurationSeconds,
		AvgHeartRate:    c.summary.AvgHeartRate,
		JumpCount:       c.summary.JumpCount,
		JumpTimeSeconds: workout.IntPtr(c.summary.JumpTimeSeconds),
	}
	id := c.savedID
	c.mu.Unlock()

	if id == 0 {
		var err error
		id, err = c.store.AddWorkout(ctx, record)
		if err != nil {
			c.logger.Printf("Session: saving workout failed: %v", err)
			return fmt.Errorf("save workout: %w", err)
		}
	}

	c.mu.Lock()
	c.savedID = id
	for i := range c.samples {
		c.samples[i].WorkoutID = id
	}
	samples := make([]workout.Sample, len(c.samples))
	copy(samples, c.samples)
	c.mu.Unlock()

	if err := c.store.AddSamples(ctx, samples); err != nil {
		c.logger.Printf("Session: saving samples for workout %d failed: %v", id, err)
		return fmt.Errorf("save workout samples: %w", err)
	}

	c.mu.Lock()
	c.summary = nil
	c.phase = PhaseIdle
	c.mu.Unlock()

	c.logger.Printf("Session: saved workout %d with %d samples", id, len(samples))
	c.notify()
	return nil
}

// DiscardWorkout drops the stopped session without saving it.
func (c *Controller) DiscardWorkout() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.phase != PhaseStopped {
		c.mu.Unlock()
		return
	}
	c.summary = nil
	c.phase = PhaseIdle
	c.mu.Unlock()

	c.logger.Printf("Session: workout discarded")
	c.notify()
}

func (c *Controller) Sensitivity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detector.Threshold()
}

// SetSensitivity changes the detector threshold immediately and persists it.
func (c *Controller) SetSensitivity(threshold int) {
	c.mu.Lock()
	c.detector.SetThreshold(threshold)
	c.mu.Unlock()

	c.settings.SetItem(SensitivityKey, strconv.Itoa(threshold))
	c.notify()
}

// ScanAndConnect finds the first heart-rate monitor in range and connects
// to it.
func (c *Controller) ScanAndConnect(ctx context.Context) error {
	device, err := c.heartRate.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan for heart rate monitor: %w", err)
	}
	c.logger.Printf("Session: connecting to %s", device)
	if err := c.heartRate.Connect(ctx, device); err != nil {
		return fmt.Errorf("connect to %s: %w", device, err)
	}
	return nil
}

func (c *Controller) DisconnectHeartRate() error {
	if err := c.heartRate.Disconnect(); err != nil {
		return fmt.Errorf("disconnect heart rate monitor: %w", err)
	}
	return nil
}

// Close abandons any session in progress and releases its resources. The
// controller should not be used afterwards.
func (c *Controller) Close(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	c.clearTimersLocked()
	running := c.phase == PhaseCountdown || c.phase == PhaseActive || c.phase == PhasePaused
	c.mu.Unlock()

	if running {
		c.logger.Printf("Session: closing with a session in progress")
		c.audio.Stop()
		c.releaseWakeLock(ctx)
	}
	if err := c.heartRate.Disconnect(); err != nil {
		c.logger.Printf("Session: disconnect on close failed: %v", err)
	}
}

func (c *Controller) handleAudioBlock(samples []int16) {
	c.mu.Lock()
	jumped := c.detector.ProcessBlock(samples, len(samples), c.clock.Now().UnixMilli())
	counted := jumped && c.phase == PhaseActive
	if counted {
		c.jumpCount++
	}
	c.mu.Unlock()

	if counted {
		c.notify()
	}
}

func (c *Controller) handleHeartRate(bpm int) {
	c.mu.Lock()
	hr := bpm
	c.currentHR = &hr
	if c.phase == PhaseActive {
		c.hrHistory = append(c.hrHistory, bpm)
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) handleConnectionState(state workout.ConnectionState) {
	c.mu.Lock()
	c.connState = state
	c.mu.Unlock()
	c.notify()
}
