package session

import (
	"github.com/nadahalli/thumper/internal/summary"
	"github.com/nadahalli/thumper/internal/workout"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseCountdown Phase = "countdown"
	PhaseActive    Phase = "active"
	PhasePaused    Phase = "paused"
	PhaseStopped   Phase = "stopped"
)

// State is an immutable snapshot handed to subscribers.
type State struct {
	Phase           Phase
	Countdown       int
	ElapsedSeconds  int
	JumpCount       int
	HeartRate       *int
	ConnectionState workout.ConnectionState
	Sensitivity     int
	// Summary is set only while Phase is PhaseStopped.
	Summary *summary.Metrics
}
