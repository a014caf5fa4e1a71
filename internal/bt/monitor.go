// Package bt connects to Bluetooth LE heart-rate straps.
package bt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/nadahalli/thumper/internal/go_func_utils"
	"github.com/nadahalli/thumper/internal/workout"
)

var (
	ErrScanInProgress = errors.New("scan already in progress")
	ErrNoScanResult   = errors.New("scan ended without finding a heart rate monitor")
	ErrUnknownDevice  = errors.New("device was not found by a scan")
	ErrNoHeartRate    = errors.New("device has no heart rate measurement characteristic")
)

// HeartRateMonitor talks to one heart-rate strap at a time through a
// bluetooth adapter.
type HeartRateMonitor struct {
	adapter *bluetooth.Adapter
	logger  *log.Logger

	mu        sync.Mutex
	onReading func(int)
	onState   func(workout.ConnectionState)
	enabled   bool
	scanning  bool
	found     map[string]bluetooth.ScanResult
	device    *bluetooth.Device
	state     workout.ConnectionState
}

func NewHeartRateMonitor(adapter *bluetooth.Adapter, logger *log.Logger) *HeartRateMonitor {
	if adapter == nil {
		panic("HeartRateMonitor: adapter cannot be nil")
	}
	if logger == nil {
		panic("HeartRateMonitor: logger cannot be nil")
	}
	return &HeartRateMonitor{
		adapter:   adapter,
		logger:    logger,
		onReading: func(int) {},
		onState:   func(workout.ConnectionState) {},
		found:     make(map[string]bluetooth.ScanResult),
		state:     workout.Disconnected,
	}
}

func (m *HeartRateMonitor) SetHandlers(onReading func(int), onState func(workout.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if onReading != nil {
		m.onReading = onReading
	}
	if onState != nil {
		m.onState = onState
	}
}

func (m *HeartRateMonitor) setState(state workout.ConnectionState) {
	m.mu.Lock()
	m.state = state
	cb := m.onState
	m.mu.Unlock()
	cb(state)
}

func (m *HeartRateMonitor) enable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled {
		return nil
	}

	m.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			m.logger.Printf("HeartRateMonitor: link up to %s", device.Address.String())
			return
		}
		m.mu.Lock()
		ours := m.device != nil && m.device.Address == device.Address
		if ours {
			m.device = nil
		}
		m.mu.Unlock()
		if ours {
			m.logger.Printf("HeartRateMonitor: %s disconnected", device.Address.String())
			m.setState(workout.Disconnected)
		}
	})

	if err := m.adapter.Enable(); err != nil {
		return fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	m.enabled = true
	return nil
}

// Scan returns the first device advertising the Heart Rate service.
func (m *HeartRateMonitor) Scan(ctx context.Context) (workout.Device, error) {
	if err := m.enable(); err != nil {
		return workout.Device{}, err
	}

	m.mu.Lock()
	if m.scanning {
		m.mu.Unlock()
		return workout.Device{}, ErrScanInProgress
	}
	m.scanning = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.scanning = false
		m.mu.Unlock()
	}()

	m.logger.Println("HeartRateMonitor: starting scan")
	m.setState(workout.Scanning)

	results := make(chan bluetooth.ScanResult, 1)
	scanDone := make(chan error, 1)
	go_func_utils.SafeGo(m.logger, func() {
		scanDone <- m.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(heartRateServiceUUID) {
				return
			}
			select {
			case results <- result:
				if err := adapter.StopScan(); err != nil {
					m.logger.Printf("HeartRateMonitor: stop scan: %v", err)
				}
			default:
			}
		})
	})

	select {
	case result := <-results:
		<-scanDone
		device := workout.Device{Name: result.LocalName(), Address: result.Address.String()}
		m.mu.Lock()
		m.found[device.Address] = result
		m.mu.Unlock()
		m.logger.Printf("HeartRateMonitor: found %s [RSSI: %d]", device, result.RSSI)
		return device, nil

	case err := <-scanDone:
		m.setState(workout.Disconnected)
		if err != nil {
			return workout.Device{}, fmt.Errorf("scan: %w", err)
		}
		return workout.Device{}, ErrNoScanResult

	case <-ctx.Done():
		if err := m.adapter.StopScan(); err != nil {
			m.logger.Printf("HeartRateMonitor: stop scan: %v", err)
		}
		<-scanDone
		m.setState(workout.Disconnected)
		return workout.Device{}, ctx.Err()
	}
}

type connectResult struct {
	device bluetooth.Device
	err    error
}

// Connect links to a device returned by Scan and subscribes to heart-rate
// notifications.
func (m *HeartRateMonitor) Connect(ctx context.Context, device workout.Device) error {
	m.mu.Lock()
	result, ok := m.found[device.Address]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, device.Address)
	}

	m.setState(workout.Connecting)

	done := make(chan connectResult, 1)
	go_func_utils.SafeGo(m.logger, func() {
		d, err := m.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
		done <- connectResult{device: d, err: err}
	})

	var link bluetooth.Device
	select {
	case res := <-done:
		if res.err != nil {
			m.setState(workout.Disconnected)
			return fmt.Errorf("connect %s: %w", device.Address, res.err)
		}
		link = res.device
	case <-ctx.Done():
		m.setState(workout.Disconnected)
		// drop a link that completes after we gave up on it
		go_func_utils.SafeGo(m.logger, func() {
			if res := <-done; res.err == nil {
				_ = res.device.Disconnect()
			}
		})
		return ctx.Err()
	}

	if err := m.subscribe(link); err != nil {
		_ = link.Disconnect()
		m.setState(workout.Disconnected)
		return err
	}

	m.mu.Lock()
	m.device = &link
	m.mu.Unlock()
	m.logger.Printf("HeartRateMonitor: connected to %s", device)
	m.setState(workout.Connected)
	return nil
}

func (m *HeartRateMonitor) subscribe(link bluetooth.Device) error {
	services, err := link.DiscoverServices([]bluetooth.UUID{heartRateServiceUUID})
	if err != nil {
		return fmt.Errorf("discover heart rate service: %w", err)
	}
	if len(services) == 0 {
		return ErrNoHeartRate
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{heartRateMeasurementUUID})
	if err != nil {
		return fmt.Errorf("discover heart rate characteristic: %w", err)
	}
	if len(chars) == 0 {
		return ErrNoHeartRate
	}
	if err := chars[0].EnableNotifications(m.handleNotification); err != nil {
		return fmt.Errorf("enable heart rate notifications: %w", err)
	}
	return nil
}

func (m *HeartRateMonitor) handleNotification(buf []byte) {
	bpm, err := ParseHeartRate(buf)
	if err != nil {
		m.logger.Printf("HeartRateMonitor: %v", err)
		return
	}
	m.mu.Lock()
	cb := m.onReading
	m.mu.Unlock()
	cb(bpm)
}

// Disconnect drops the current link, if any.
func (m *HeartRateMonitor) Disconnect() error {
	m.mu.Lock()
	link := m.device
	m.device = nil
	m.mu.Unlock()

	if link == nil {
		return nil
	}
	err := link.Disconnect()
	m.setState(workout.Disconnected)
	if err != nil {
		return fmt.Errorf("disconnect %s: %w", link.Address.String(), err)
	}
	return nil
}

func (m *HeartRateMonitor) State() workout.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
