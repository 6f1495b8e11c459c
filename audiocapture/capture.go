// Package audiocapture provides microphone capture delivering fixed-size
// mono float32 frames.
package audiocapture

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Sentinel errors.
var (
	// ErrUnsupported is returned when the binary was built without audio device support.
	ErrUnsupported = errors.New("audiocapture: unsupported platform")
	// ErrRunning is returned when Start is called on a running capturer.
	ErrRunning = errors.New("audiocapture: already running")
	// ErrPermissionDenied is returned when the OS refuses microphone access.
	ErrPermissionDenied = errors.New("audiocapture: microphone permission denied")
)

// AudioHandler receives one frame of float32 samples in the range [-1, 1].
// The slice is only valid for the duration of the call.
type AudioHandler func(samples []float32)

// Capturer delivers microphone frames to a handler.
type Capturer interface {
	// Start opens the device and begins delivering frames to handler.
	Start(handler AudioHandler) error
	// Stop halts capture and releases the device. Safe to call repeatedly.
	Stop() error
}

// Config holds configuration for audio capture.
type Config struct {
	SampleRate int // Default 16000 Hz
	FrameSize  int // Samples per delivered frame, default 4096
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		FrameSize:  4096,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.FrameSize <= 0 {
		c.FrameSize = d.FrameSize
	}
	return c
}

// Framer regroups arbitrarily sized device periods into fixed-size frames.
// Devices rarely honour the requested period size exactly, so frames are
// assembled here before reaching the handler.
type Framer struct {
	mu      sync.Mutex
	size    int
	pending []float32
	frame   []float32
}

// NewFramer creates a Framer emitting frames of size samples.
func NewFramer(size int) *Framer {
	return &Framer{
		size:    size,
		pending: make([]float32, 0, size*2),
		frame:   make([]float32, size),
	}
}

// Write appends samples and calls emit once for every complete frame.
// The slice passed to emit is reused between calls.
func (f *Framer) Write(samples []float32, emit AudioHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = append(f.pending, samples...)
	for len(f.pending) >= f.size {
		copy(f.frame, f.pending[:f.size])
		n := copy(f.pending, f.pending[f.size:])
		f.pending = f.pending[:n]
		emit(f.frame)
	}
}

// Pending returns the number of buffered samples not yet emitted.
func (f *Framer) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Reset discards buffered samples.
func (f *Framer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = f.pending[:0]
}

// classify maps backend failures that mean the OS refused access onto
// ErrPermissionDenied so callers can tell them apart from broken devices.
func classify(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%s: %w: %v", op, ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
