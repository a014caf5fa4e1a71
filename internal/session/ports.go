package session

import (
	"context"

	"github.com/nadahalli/thumper/internal/workout"
)

// AudioSource delivers blocks of 16-bit mono samples to the registered
// handler between Start and Stop.
type AudioSource interface {
	SetBlockHandler(handler func(samples []int16))
	Start(ctx context.Context) error
	// Stop is idempotent and must not be called while holding a lock that
	// the block handler needs.
	Stop()
}

// HeartRateSource is a heart-rate monitor link.
type HeartRateSource interface {
	SetHandlers(onReading func(bpm int), onState func(state workout.ConnectionState))
	Scan(ctx context.Context) (workout.Device, error)
	Connect(ctx context.Context, device workout.Device) error
	Disconnect() error
}

// WakeLock keeps the display awake during a workout.
type WakeLock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

type WorkoutStore interface {
	AddWorkout(ctx context.Context, w workout.Workout) (int64, error)
	AddSamples(ctx context.Context, samples []workout.Sample) error
}

type KeyValueStore interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
}
