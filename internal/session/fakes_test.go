package session

import (
	"context"
	"errors"
	"sync"

	"github.com/nadahalli/thumper/internal/workout"
)

type fakeAudio struct {
	mu       sync.Mutex
	handler  func([]int16)
	startErr error
	starts   int
	stops    int
	running  bool
}

func (a *fakeAudio) SetBlockHandler(handler func([]int16)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = handler
}

func (a *fakeAudio) Start(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startErr != nil {
		return a.startErr
	}
	a.starts++
	a.running = true
	return nil
}

func (a *fakeAudio) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
	a.running = false
}

// emit feeds one block to the controller the way a capture device would.
func (a *fakeAudio) emit(samples []int16) {
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	h(samples)
}

type fakeHeartRate struct {
	onReading  func(int)
	onState    func(workout.ConnectionState)
	device     workout.Device
	scanErr    error
	connectErr error
	connected  *workout.Device
	disconnect int
}

func (h *fakeHeartRate) SetHandlers(onReading func(int), onState func(workout.ConnectionState)) {
	h.onReading = onReading
	h.onState = onState
}

func (h *fakeHeartRate) Scan(context.Context) (workout.Device, error) {
	if h.scanErr != nil {
		return workout.Device{}, h.scanErr
	}
	h.onState(workout.Scanning)
	return h.device, nil
}

func (h *fakeHeartRate) Connect(_ context.Context, d workout.Device) error {
	if h.connectErr != nil {
		h.onState(workout.Disconnected)
		return h.connectErr
	}
	h.onState(workout.Connecting)
	h.connected = &d
	h.onState(workout.Connected)
	return nil
}

func (h *fakeHeartRate) Disconnect() error {
	h.disconnect++
	h.connected = nil
	h.onState(workout.Disconnected)
	return nil
}

type fakeWakeLock struct {
	acquireErr error
	acquired   int
	released   int
}

func (w *fakeWakeLock) Acquire(context.Context) error {
	if w.acquireErr != nil {
		return w.acquireErr
	}
	w.acquired++
	return nil
}

func (w *fakeWakeLock) Release(context.Context) error {
	w.released++
	return nil
}

type fakeStore struct {
	workouts       []workout.Workout
	samples        []workout.Sample
	addWorkoutErrs []error
	addSamplesErrs []error
	nextID         int64
}

func (s *fakeStore) AddWorkout(_ context.Context, w workout.Workout) (int64, error) {
	if len(s.addWorkoutErrs) > 0 {
		err := s.addWorkoutErrs[0]
		s.addWorkoutErrs = s.addWorkoutErrs[1:]
		return 0, err
	}
	s.nextID++
	w.ID = s.nextID
	s.workouts = append(s.workouts, w)
	return w.ID, nil
}

func (s *fakeStore) AddSamples(_ context.Context, samples []workout.Sample) error {
	if len(s.addSamplesErrs) > 0 {
		err := s.addSamplesErrs[0]
		s.addSamplesErrs = s.addSamplesErrs[1:]
		return err
	}
	s.samples = append(s.samples, samples...)
	return nil
}

type fakeSettings struct {
	values map[string]string
	sets   [][2]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]string{}}
}

func (s *fakeSettings) GetItem(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *fakeSettings) SetItem(key, value string) {
	s.values[key] = value
	s.sets = append(s.sets, [2]string{key, value})
}

var errBoom = errors.New("boom")
