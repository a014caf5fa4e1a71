package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nadahalli/thumper/internal/clock"
)

// ParseWAV extracts the samples of a 16-bit PCM mono WAV file.
func ParseWAV(data []byte) ([]int16, uint32, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, 0, ErrBadWAV
	}

	var sampleRate uint32
	haveFormat := false
	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, ErrBadWAV
			}
			format := binary.LittleEndian.Uint16(data[body:])
			channels := binary.LittleEndian.Uint16(data[body+2:])
			sampleRate = binary.LittleEndian.Uint32(data[body+4:])
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if format != 1 || channels != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("%w: format=%d channels=%d bits=%d", ErrBadWAV, format, channels, bits)
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, 0, ErrBadWAV
			}
			return DecodeS16LE(data[body:body+size], nil), sampleRate, nil
		}

		// chunks are padded to an even length
		pos = body + size + size%2
	}
	return nil, 0, ErrBadWAV
}

// WAVSource replays a recording at its real block cadence, then keeps
// delivering silence until stopped, which mirrors a quiet microphone.
type WAVSource struct {
	pcm         []int16
	blockFrames int
	interval    time.Duration
	clock       clock.Clock
	logger      *log.Logger

	handler atomic.Pointer[func([]int16)]

	mu      sync.Mutex
	task    clock.Task
	pos     int
	silence []int16
}

func NewWAVSource(pcm []int16, sampleRate, blockFrames uint32, c clock.Clock, logger *log.Logger) *WAVSource {
	if c == nil {
		panic("WAVSource: clock cannot be nil")
	}
	if logger == nil {
		panic("WAVSource: logger cannot be nil")
	}
	cfg := Config{SampleRate: sampleRate, BlockFrames: blockFrames}.withDefaults()
	return &WAVSource{
		pcm:         pcm,
		blockFrames: int(cfg.BlockFrames),
		interval:    time.Duration(cfg.BlockFrames) * time.Second / time.Duration(cfg.SampleRate),
		clock:       c,
		logger:      logger,
		silence:     make([]int16, cfg.BlockFrames),
	}
}

// LoadWAVSource reads path and prepares it for replay.
func LoadWAVSource(path string, blockFrames uint32, c clock.Clock, logger *log.Logger) (*WAVSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	pcm, rate, err := ParseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewWAVSource(pcm, rate, blockFrames, c, logger), nil
}

func (w *WAVSource) SetBlockHandler(handler func([]int16)) {
	w.handler.Store(&handler)
}

// Start rewinds to the beginning of the recording.
func (w *WAVSource) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.task != nil {
		w.task.Stop()
	}
	w.pos = 0
	w.task = w.clock.Every(w.interval, w.tick)
	w.logger.Printf("WAVSource: replaying %d samples every %v", w.blockFrames, w.interval)
	return nil
}

func (w *WAVSource) tick() {
	w.mu.Lock()
	if w.task == nil {
		w.mu.Unlock()
		return
	}
	block := w.silence
	if w.pos < len(w.pcm) {
		end := min(w.pos+w.blockFrames, len(w.pcm))
		block = w.pcm[w.pos:end]
		w.pos = end
	}
	w.mu.Unlock()

	if h := w.handler.Load(); h != nil && *h != nil {
		(*h)(block)
	}
}

func (w *WAVSource) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.task != nil {
		w.task.Stop()
		w.task = nil
	}
}

// Done reports whether the whole recording has been delivered.
func (w *WAVSource) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos >= len(w.pcm)
}
