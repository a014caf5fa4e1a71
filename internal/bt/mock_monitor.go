package bt

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nadahalli/thumper/internal/clock"
	"github.com/nadahalli/thumper/internal/workout"
)

const (
	mockAddress      = "00:00:5E:00:53:01"
	mockRestingHR    = 95
	mockMaxHR        = 185
	mockReadingEvery = time.Second
)

// MockMonitor simulates a strap for running without Bluetooth hardware.
// Readings drift upward while connected and are pushed through the same
// payload parser as a real device.
type MockMonitor struct {
	clock  clock.Clock
	logger *log.Logger

	mu        sync.Mutex
	onReading func(int)
	onState   func(workout.ConnectionState)
	rng       *rand.Rand
	bpm       float64
	task      clock.Task
}

func NewMockMonitor(c clock.Clock, logger *log.Logger, seed uint64) *MockMonitor {
	if c == nil {
		panic("MockMonitor: clock cannot be nil")
	}
	if logger == nil {
		panic("MockMonitor: logger cannot be nil")
	}
	return &MockMonitor{
		clock:     c,
		logger:    logger,
		onReading: func(int) {},
		onState:   func(workout.ConnectionState) {},
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		bpm:       mockRestingHR,
	}
}

func (m *MockMonitor) SetHandlers(onReading func(int), onState func(workout.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if onReading != nil {
		m.onReading = onReading
	}
	if onState != nil {
		m.onState = onState
	}
}

func (m *MockMonitor) emitState(state workout.ConnectionState) {
	m.mu.Lock()
	cb := m.onState
	m.mu.Unlock()
	cb(state)
}

func (m *MockMonitor) Scan(ctx context.Context) (workout.Device, error) {
	m.emitState(workout.Scanning)
	if err := ctx.Err(); err != nil {
		m.emitState(workout.Disconnected)
		return workout.Device{}, err
	}
	return workout.Device{Name: "Mock HR", Address: mockAddress}, nil
}

func (m *MockMonitor) Connect(ctx context.Context, device workout.Device) error {
	if device.Address != mockAddress {
		return ErrUnknownDevice
	}
	m.emitState(workout.Connecting)
	if err := ctx.Err(); err != nil {
		m.emitState(workout.Disconnected)
		return err
	}

	m.mu.Lock()
	if m.task != nil {
		m.task.Stop()
	}
	m.task = m.clock.Every(mockReadingEvery, m.tick)
	m.mu.Unlock()

	m.logger.Printf("MockMonitor: connected")
	m.emitState(workout.Connected)
	return nil
}

func (m *MockMonitor) tick() {
	m.mu.Lock()
	// drift toward a working heart rate with a little noise
	m.bpm += (150-m.bpm)*0.05 + m.rng.NormFloat64()*2
	m.bpm = max(mockRestingHR-20, min(mockMaxHR, m.bpm))
	payload := EncodeHeartRate(int(m.bpm + 0.5))
	cb := m.onReading
	m.mu.Unlock()

	bpm, err := ParseHeartRate(payload)
	if err != nil {
		m.logger.Printf("MockMonitor: %v", err)
		return
	}
	cb(bpm)
}

func (m *MockMonitor) Disconnect() error {
	m.mu.Lock()
	task := m.task
	m.task = nil
	m.mu.Unlock()

	if task == nil {
		return nil
	}
	task.Stop()
	m.emitState(workout.Disconnected)
	return nil
}
