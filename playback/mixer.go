package playback

import (
	"encoding/binary"
	"io"
	"math"
	"sync"

	"go.aimuz.me/speakup/pcm"
)

// Mixer is an Output rendered by pulling from it as an io.Reader of
// little-endian int16 PCM. Its clock is the number of frames handed to the
// reader, so it advances exactly as fast as the device consumes audio.
// Silence is produced while nothing is scheduled.
type Mixer struct {
	rate     int
	channels int

	mu      sync.Mutex
	clock   int64 // frames rendered
	sources []*mixSource
	closed  bool
	scratch []float32
}

type mixSource struct {
	m       *Mixer
	start   int64 // first frame on the mixer clock
	samples []float32
	frames  int64
	onEnded func()
}

// NewMixer creates a Mixer rendering at the given format.
func NewMixer(cfg Config) *Mixer {
	cfg = cfg.withDefaults()
	return &Mixer{rate: cfg.SampleRate, channels: cfg.Channels}
}

// CurrentTime implements Output.
func (m *Mixer) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.clock) / float64(m.rate)
}

// Play implements Output.
func (m *Mixer) Play(buf *Buffer, at float64, onEnded func()) (Source, float64, error) {
	if buf.SampleRate != m.rate || buf.Channels != m.channels {
		return nil, 0, ErrFormat
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, 0, ErrClosed
	}

	start := int64(math.Round(at * float64(m.rate)))
	if start < m.clock {
		start = m.clock
	}
	src := &mixSource{
		m:       m,
		start:   start,
		samples: buf.Samples,
		frames:  int64(buf.Frames()),
		onEnded: onEnded,
	}
	m.sources = append(m.sources, src)
	return src, float64(start) / float64(m.rate), nil
}

// Close implements Output. Subsequent reads return io.EOF.
func (m *Mixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.sources = nil
	return nil
}

// Pending returns the number of sources not yet finished.
func (m *Mixer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

// Read renders the next len(p)/(2*channels) frames.
func (m *Mixer) Read(p []byte) (int, error) {
	frameBytes := 2 * m.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, io.EOF
	}

	n := frames * m.channels
	if cap(m.scratch) < n {
		m.scratch = make([]float32, n)
	}
	mix := m.scratch[:n]
	clear(mix)

	from, to := m.clock, m.clock+int64(frames)
	var ended []func()
	live := m.sources[:0]
	for _, src := range m.sources {
		end := src.start + src.frames
		lo, hi := max(from, src.start), min(to, end)
		for f := lo; f < hi; f++ {
			out := int(f-from) * m.channels
			in := int(f-src.start) * m.channels
			for c := 0; c < m.channels; c++ {
				mix[out+c] += src.samples[in+c]
			}
		}
		if end <= to {
			if src.onEnded != nil {
				ended = append(ended, src.onEnded)
			}
			continue
		}
		live = append(live, src)
	}
	clear(m.sources[len(live):])
	m.sources = live
	m.clock = to

	for i, s := range mix {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(pcm.FloatToInt16(s)))
	}
	m.mu.Unlock()

	for _, fn := range ended {
		fn()
	}
	return frames * frameBytes, nil
}

// Stop implements Source.
func (s *mixSource) Stop() error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, src := range m.sources {
		if src == s {
			m.sources = append(m.sources[:i], m.sources[i+1:]...)
			break
		}
	}
	return nil
}
