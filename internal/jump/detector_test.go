package jump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(amplitude int16, size int) []int16 {
	buf := make([]int16, size)
	buf[0] = amplitude
	return buf
}

func newTestDetector() *Detector {
	return New(5000, 200, 2000)
}

func TestDetector_AboveThresholdTriggers(t *testing.T) {
	d := newTestDetector()
	assert.True(t, d.ProcessBlock(block(6000, 64), 64, 1000))
}

func TestDetector_BelowThresholdDoesNotTrigger(t *testing.T) {
	d := newTestDetector()
	assert.False(t, d.ProcessBlock(block(3000, 64), 64, 1000))
}

func TestDetector_EqualToThresholdDoesNotTrigger(t *testing.T) {
	d := newTestDetector()
	assert.False(t, d.ProcessBlock(block(5000, 64), 64, 1000))
	assert.False(t, d.ProcessBlock(block(-5000, 64), 64, 2000))
}

func TestDetector_NegativeAmplitudeUsesAbsoluteValue(t *testing.T) {
	d := newTestDetector()
	assert.True(t, d.ProcessBlock(block(-6000, 64), 64, 1000))
}

func TestDetector_MinInt16DoesNotOverflow(t *testing.T) {
	d := New(20000, 200, 2000)
	assert.True(t, d.ProcessBlock(block(-32768, 8), 8, 1000))
}

func TestDetector_Cooldown(t *testing.T) {
	d := newTestDetector()

	require.True(t, d.ProcessBlock(block(6000, 64), 64, 1000))
	assert.False(t, d.ProcessBlock(block(6000, 64), 64, 1100))
	assert.False(t, d.ProcessBlock(block(6000, 64), 64, 1200), "cooldown boundary is exclusive")
	assert.True(t, d.ProcessBlock(block(6000, 64), 64, 1201))
	assert.Equal(t, int64(201), d.JumpTimeMs())
}

func TestDetector_EmptyBlock(t *testing.T) {
	d := newTestDetector()

	assert.False(t, d.ProcessBlock(block(6000, 64), 0, 1000))
	assert.False(t, d.ProcessBlock(nil, 0, 1000))
	assert.False(t, d.ProcessBlock(block(6000, 64), -3, 1000))

	// nothing was recorded, so a jump right after is not suppressed
	assert.True(t, d.ProcessBlock(block(6000, 64), 64, 1001))
	assert.Equal(t, int64(0), d.JumpTimeMs())
}

func TestDetector_CountLimitsScannedSamples(t *testing.T) {
	d := newTestDetector()

	buf := make([]int16, 64)
	buf[10] = 9000
	assert.False(t, d.ProcessBlock(buf, 10, 1000))
	assert.True(t, d.ProcessBlock(buf, 11, 1000))
}

func TestDetector_CountLargerThanBufferIsClamped(t *testing.T) {
	d := newTestDetector()
	assert.True(t, d.ProcessBlock(block(6000, 4), 64, 1000))
}

func TestDetector_ThresholdChangeIsImmediate(t *testing.T) {
	d := newTestDetector()

	assert.True(t, d.ProcessBlock(block(6000, 64), 64, 1000))
	d.SetThreshold(10000)
	assert.Equal(t, 10000, d.Threshold())
	assert.False(t, d.ProcessBlock(block(6000, 64), 64, 2000))
	d.SetThreshold(5000)
	assert.True(t, d.ProcessBlock(block(6000, 64), 64, 3000))
}

func TestDetector_ResetClearsCooldown(t *testing.T) {
	d := newTestDetector()

	require.True(t, d.ProcessBlock(block(6000, 64), 64, 1000))
	d.Reset()
	assert.True(t, d.ProcessBlock(block(6000, 64), 64, 1050))
	assert.Equal(t, int64(0), d.JumpTimeMs(), "first jump after reset has no predecessor")
}

func TestDetector_ResetKeepsThreshold(t *testing.T) {
	d := newTestDetector()
	d.SetThreshold(7000)
	d.Reset()
	assert.Equal(t, 7000, d.Threshold())
}

func TestDetector_JumpTimeAccumulatesWithinMaxGap(t *testing.T) {
	d := newTestDetector()

	d.ProcessBlock(block(6000, 64), 64, 1000)
	d.ProcessBlock(block(6000, 64), 64, 1500)
	d.ProcessBlock(block(6000, 64), 64, 2000)
	assert.Equal(t, int64(1000), d.JumpTimeMs())
}

func TestDetector_JumpTimeExcludesLongGaps(t *testing.T) {
	d := newTestDetector()

	d.ProcessBlock(block(6000, 64), 64, 1000)
	d.ProcessBlock(block(6000, 64), 64, 1500)
	d.ProcessBlock(block(6000, 64), 64, 6500)
	d.ProcessBlock(block(6000, 64), 64, 7000)
	assert.Equal(t, int64(1000), d.JumpTimeMs())
}

func TestDetector_GapEqualToMaxGapCounts(t *testing.T) {
	d := newTestDetector()

	d.ProcessBlock(block(6000, 64), 64, 1000)
	d.ProcessBlock(block(6000, 64), 64, 3000)
	assert.Equal(t, int64(2000), d.JumpTimeMs())
}

func TestDetector_QuietBlocksNeverChangeJumpTime(t *testing.T) {
	d := newTestDetector()
	d.ProcessBlock(block(6000, 64), 64, 1000)

	for ts := int64(1300); ts < 3000; ts += 100 {
		assert.False(t, d.ProcessBlock(block(4999, 64), 64, ts))
	}
	assert.Equal(t, int64(0), d.JumpTimeMs())
}

func TestDetector_ResetClearsJumpTime(t *testing.T) {
	d := newTestDetector()

	d.ProcessBlock(block(6000, 64), 64, 1000)
	d.ProcessBlock(block(6000, 64), 64, 1500)
	require.Equal(t, int64(500), d.JumpTimeMs())
	d.Reset()
	assert.Equal(t, int64(0), d.JumpTimeMs())
}

func TestClampThreshold(t *testing.T) {
	assert.Equal(t, MinThreshold, ClampThreshold(0))
	assert.Equal(t, 8000, ClampThreshold(8000))
	assert.Equal(t, MaxThreshold, ClampThreshold(50000))
}
