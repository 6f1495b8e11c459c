// Package playback schedules decoded assistant audio for gapless output and
// flushes it instantly when the assistant is interrupted.
package playback

import "errors"

// Sentinel errors.
var (
	ErrUnsupported  = errors.New("playback: unsupported platform")
	ErrClosed       = errors.New("playback: output closed")
	ErrFormat       = errors.New("playback: buffer format does not match output")
	ErrRateMismatch = errors.New("playback: output already opened at a different sample rate")
)

// Buffer is decoded PCM ready for output. Samples are interleaved when
// Channels > 1.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int {
	if b.Channels <= 0 {
		return len(b.Samples)
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Source is a scheduled playback that can be cut short.
type Source interface {
	// Stop silences the source immediately. Stopping a source that has
	// already finished is not an error.
	Stop() error
}

// Output is an audio output device exposing its own clock.
type Output interface {
	// CurrentTime returns the device clock in seconds. It never decreases.
	CurrentTime() float64
	// Play schedules buf to start at device time at, or at the current
	// clock if at has already passed, and returns the start actually used.
	// onEnded is invoked once when the buffer finishes playing naturally;
	// it is not invoked for sources that were stopped.
	Play(buf *Buffer, at float64, onEnded func()) (Source, float64, error)
	// Close releases the device. Safe to call repeatedly.
	Close() error
}

// Config describes the format of assistant audio.
type Config struct {
	SampleRate int // Default 24000 Hz
	Channels   int // Default 1
}

// DefaultConfig returns the output format of the conversation service.
func DefaultConfig() Config {
	return Config{SampleRate: 24000, Channels: 1}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	return c
}
