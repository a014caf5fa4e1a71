// Package workout holds the records shared by the session, storage and
// export layers.
package workout

import "time"

// Workout is one saved session. Nil pointers are values that were not
// tracked or had nothing to report.
type Workout struct {
	ID              int64
	StartTime       time.Time
	DurationSeconds int
	AvgHeartRate    *int
	JumpCount       *int
	JumpTimeSeconds *int
}

// Sample is a periodic snapshot taken while a session is active.
type Sample struct {
	ID        int64
	WorkoutID int64
	Timestamp time.Time
	HeartRate *int
	JumpCount int
}

// WithSamples pairs a workout with its samples in timestamp order.
type WithSamples struct {
	Workout Workout
	Samples []Sample
}

type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Scanning     ConnectionState = "scanning"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
)

// Device identifies a heart-rate monitor found by a scan.
type Device struct {
	Name    string
	Address string
}

func (d Device) String() string {
	if d.Name == "" {
		return d.Address
	}
	return d.Name + " (" + d.Address + ")"
}

// IntPtr is a helper for the optional integer fields.
func IntPtr(v int) *int {
	return &v
}
