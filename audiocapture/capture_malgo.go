//go:build cgo

package audiocapture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// capturer is the miniaudio implementation shared by all desktop platforms.
type capturer struct {
	cfg Config

	mu      sync.Mutex
	running bool
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	framer  *Framer
	samples []float32
}

// New creates a microphone Capturer.
func New(cfg Config) (Capturer, error) {
	cfg = cfg.withDefaults()
	return &capturer{
		cfg:    cfg,
		framer: NewFramer(cfg.FrameSize),
	}, nil
}

func (c *capturer) Start(handler AudioHandler) error {
	if handler == nil {
		return errors.New("audiocapture: nil handler")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrRunning
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(c.cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(c.cfg.FrameSize)

	c.framer.Reset()
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			c.framer.Write(c.convert(input, frameCount), handler)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		releaseContext(ctx)
		return classify("init capture device", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(ctx)
		return classify("start capture device", err)
	}

	c.ctx = ctx
	c.device = device
	c.running = true
	slog.Info("microphone capture started", "sampleRate", c.cfg.SampleRate, "frameSize", c.cfg.FrameSize)
	return nil
}

func (c *capturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	var err error
	if c.device != nil {
		err = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	if c.ctx != nil {
		releaseContext(c.ctx)
		c.ctx = nil
	}
	c.framer.Reset()

	slog.Info("microphone capture stopped")
	return err
}

// convert reinterprets little-endian float32 bytes. Only the device
// callback goroutine touches c.samples.
func (c *capturer) convert(input []byte, frameCount uint32) []float32 {
	n := int(frameCount)
	if n*4 > len(input) {
		n = len(input) / 4
	}
	if cap(c.samples) < n {
		c.samples = make([]float32, n)
	}
	out := c.samples[:n]
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(input[i*4:]))
	}
	return out
}

func releaseContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}
