// Package audio captures 16-bit mono PCM and hands it out in blocks.
package audio

import (
	"encoding/binary"
	"errors"
)

const (
	DefaultSampleRate  = 44100
	DefaultBlockFrames = 2048

	bytesPerFrame = 2 // 16-bit mono
)

var ErrBadWAV = errors.New("not a 16-bit PCM mono WAV file")

type Config struct {
	SampleRate  uint32
	BlockFrames uint32
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.BlockFrames == 0 {
		c.BlockFrames = DefaultBlockFrames
	}
	return c
}

// DecodeS16LE converts little-endian 16-bit PCM into samples, reusing dst's
// storage when it is large enough. A trailing odd byte is ignored.
func DecodeS16LE(data []byte, dst []int16) []int16 {
	n := len(data) / bytesPerFrame
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range n {
		dst[i] = int16(binary.LittleEndian.Uint16(data[i*bytesPerFrame:]))
	}
	return dst
}
