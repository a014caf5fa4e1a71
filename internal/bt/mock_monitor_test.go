package bt

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadahalli/thumper/internal/clock"
	"github.com/nadahalli/thumper/internal/workout"
)

func newTestMock(t *testing.T) (*MockMonitor, *clock.Fake, *[]int, *[]workout.ConnectionState) {
	t.Helper()
	c := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewMockMonitor(c, log.New(io.Discard, "", 0), 7)

	var readings []int
	var states []workout.ConnectionState
	m.SetHandlers(
		func(bpm int) { readings = append(readings, bpm) },
		func(s workout.ConnectionState) { states = append(states, s) },
	)
	return m, c, &readings, &states
}

func TestMockMonitor_ScanConnectStream(t *testing.T) {
	m, c, readings, states := newTestMock(t)

	device, err := m.Scan(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Connect(context.Background(), device))

	c.Advance(30 * time.Second)
	require.Len(t, *readings, 30)
	for _, bpm := range *readings {
		assert.GreaterOrEqual(t, bpm, mockRestingHR-20)
		assert.LessOrEqual(t, bpm, mockMaxHR)
	}
	assert.Greater(t, (*readings)[29], (*readings)[0], "heart rate drifts up while connected")

	require.NoError(t, m.Disconnect())
	c.Advance(10 * time.Second)
	assert.Len(t, *readings, 30)

	assert.Equal(t, []workout.ConnectionState{
		workout.Scanning, workout.Connecting, workout.Connected, workout.Disconnected,
	}, *states)
}

func TestMockMonitor_ConnectUnknownDevice(t *testing.T) {
	m, _, _, _ := newTestMock(t)
	err := m.Connect(context.Background(), workout.Device{Address: "11:22"})
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestMockMonitor_ScanCancelled(t *testing.T) {
	m, _, _, states := newTestMock(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []workout.ConnectionState{workout.Scanning, workout.Disconnected}, *states)
}

func TestMockMonitor_DisconnectWhenIdle(t *testing.T) {
	m, _, _, states := newTestMock(t)
	require.NoError(t, m.Disconnect())
	assert.Empty(t, *states)
}
