// Package summary derives the end-of-workout metrics from raw session
// counters.
package summary

import "math"

// Metrics is computed once when a session stops. Nil pointers mean the value
// is not meaningful for the session (no readings, no jumps).
type Metrics struct {
	DurationSeconds int
	JumpTimeSeconds int
	AvgHeartRate    *int
	JumpCount       *int
	JumpsPerMinute  *float64
}

// Compute is pure and never fails.
func Compute(durationSeconds int, heartRates []int, jumpCount int, jumpTimeMs int64) Metrics {
	m := Metrics{
		DurationSeconds: durationSeconds,
		JumpTimeSeconds: int(jumpTimeMs / 1000),
	}
	if jumpTimeMs < 0 {
		m.JumpTimeSeconds = 0
	}

	if len(heartRates) > 0 {
		sum := 0
		for _, hr := range heartRates {
			sum += hr
		}
		avg := int(math.Floor(float64(sum)/float64(len(heartRates)) + 0.5))
		m.AvgHeartRate = &avg
	}

	if jumpCount > 0 {
		count := jumpCount
		m.JumpCount = &count

		if m.JumpTimeSeconds > 0 {
			jpm := float64(jumpCount) / (float64(m.JumpTimeSeconds) / 60)
			m.JumpsPerMinute = &jpm
		}
	}

	return m
}
