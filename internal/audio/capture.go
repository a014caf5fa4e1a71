package audio

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// Capture records from the default input device.
type Capture struct {
	cfg    Config
	logger *log.Logger

	handler atomic.Pointer[func([]int16)]

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	// buf is only touched from the device callback
	buf []int16
}

func NewCapture(cfg Config, logger *log.Logger) *Capture {
	if logger == nil {
		panic("Capture: logger cannot be nil")
	}
	return &Capture{cfg: cfg.withDefaults(), logger: logger}
}

func (c *Capture) SetBlockHandler(handler func([]int16)) {
	c.handler.Store(&handler)
}

func (c *Capture) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = c.cfg.SampleRate
	deviceConfig.PeriodSizeInFrames = c.cfg.BlockFrames

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			c.deliver(data)
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		freeContext(mctx)
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		freeContext(mctx)
		return fmt.Errorf("start capture device: %w", err)
	}

	c.ctx = mctx
	c.device = dev
	c.logger.Printf("Capture: started at %d Hz, %d frames per block", c.cfg.SampleRate, c.cfg.BlockFrames)
	return nil
}

func (c *Capture) deliver(data []byte) {
	h := c.handler.Load()
	if h == nil || *h == nil {
		return
	}
	c.buf = DecodeS16LE(data, c.buf)
	(*h)(c.buf)
}

// Stop releases the device. It is safe to call when not started.
func (c *Capture) Stop() {
	c.mu.Lock()
	dev, mctx := c.device, c.ctx
	c.device, c.ctx = nil, nil
	c.mu.Unlock()

	if dev == nil {
		return
	}
	// waits for an in-flight data callback to return
	if err := dev.Stop(); err != nil {
		c.logger.Printf("Capture: stop device: %v", err)
	}
	dev.Uninit()
	freeContext(mctx)
	c.logger.Println("Capture: stopped")
}

func freeContext(mctx *malgo.AllocatedContext) {
	_ = mctx.Uninit()
	mctx.Free()
}
