// Package jump turns a stream of 16-bit audio blocks into discrete jump
// events using a peak-amplitude threshold and a cooldown.
package jump

const (
	DefaultThreshold  = 8000
	DefaultCooldownMs = 200
	DefaultMaxGapMs   = 2000

	// Bounds and step of the user-facing sensitivity control.
	MinThreshold  = 1000
	MaxThreshold  = 20000
	ThresholdStep = 500
)

// Detector is not safe for concurrent use; its owner serializes access.
type Detector struct {
	threshold  int
	cooldownMs int64
	maxGapMs   int64

	// 0 means no jump has been reported since the last reset
	lastJumpMs    int64
	accumulatedMs int64
}

func New(threshold int, cooldownMs, maxGapMs int64) *Detector {
	return &Detector{
		threshold:  threshold,
		cooldownMs: cooldownMs,
		maxGapMs:   maxGapMs,
	}
}

// ProcessBlock inspects the first count samples and reports whether they
// contain a jump.
//
// A jump needs a peak strictly above the threshold and more than the cooldown
// since the previous jump. Consecutive jumps closer together than the max gap
// add their spacing to the accumulated jump time.
func (d *Detector) ProcessBlock(samples []int16, count int, nowMs int64) bool {
	if count <= 0 {
		return false
	}
	if count > len(samples) {
		count = len(samples)
	}

	peak := 0
	for _, s := range samples[:count] {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}

	if peak <= d.threshold || nowMs-d.lastJumpMs <= d.cooldownMs {
		return false
	}

	if d.lastJumpMs > 0 {
		if gap := nowMs - d.lastJumpMs; gap <= d.maxGapMs {
			d.accumulatedMs += gap
		}
	}
	d.lastJumpMs = nowMs
	return true
}

func (d *Detector) Threshold() int {
	return d.threshold
}

// SetThreshold applies from the next processed block.
func (d *Detector) SetThreshold(threshold int) {
	d.threshold = threshold
}

// JumpTimeMs is the accumulated time spent between jumps that were no more
// than the max gap apart.
func (d *Detector) JumpTimeMs() int64 {
	return d.accumulatedMs
}

// Reset forgets the previous jump and the accumulated time. Configuration is
// kept.
func (d *Detector) Reset() {
	d.lastJumpMs = 0
	d.accumulatedMs = 0
}

// ClampThreshold limits v to the sensitivity control's range.
func ClampThreshold(v int) int {
	return max(MinThreshold, min(MaxThreshold, v))
}
