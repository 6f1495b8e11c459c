package playback

import (
	"fmt"
	"log/slog"
	"sync"

	"go.aimuz.me/speakup/pcm"
)

// Scheduled describes where a buffer landed on the device clock.
type Scheduled struct {
	Start    float64
	Duration float64
}

// handle tracks one playing source so that natural completion can remove
// exactly that entry from the active set.
type handle struct {
	src Source
}

// Scheduler chains decoded buffers back to back on an Output.
//
// nextStart is the device-time cursor: each buffer is requested at
// max(nextStart, CurrentTime()) and the cursor advances from the start the
// output reports, so consecutive buffers never overlap and never start in
// the past even when the device clock moves between the two calls.
type Scheduler struct {
	out Output
	cfg Config

	mu        sync.Mutex
	nextStart float64
	active    map[*handle]struct{}

	// OnScheduled, when set, is called after each buffer is scheduled.
	OnScheduled func(Scheduled)
}

// NewScheduler creates a Scheduler writing to out.
func NewScheduler(out Output, cfg Config) *Scheduler {
	return &Scheduler{
		out:    out,
		cfg:    cfg.withDefaults(),
		active: make(map[*handle]struct{}),
	}
}

// Enqueue decodes a base64 PCM chunk and schedules it after everything
// already queued.
func (s *Scheduler) Enqueue(data string) (Scheduled, error) {
	samples, err := pcm.DecodeBase64(data)
	if err != nil {
		return Scheduled{}, fmt.Errorf("decode audio: %w", err)
	}
	return s.Schedule(&Buffer{
		Samples:    samples,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
	})
}

// Schedule queues an already decoded buffer.
func (s *Scheduler) Schedule(buf *Buffer) (Scheduled, error) {
	s.mu.Lock()

	at := s.nextStart
	if now := s.out.CurrentTime(); now > at {
		at = now
	}

	h := &handle{}
	src, start, err := s.out.Play(buf, at, func() { s.ended(h) })
	if err != nil {
		s.mu.Unlock()
		return Scheduled{}, fmt.Errorf("schedule playback: %w", err)
	}
	h.src = src

	dur := buf.Duration()
	s.nextStart = start + dur
	s.active[h] = struct{}{}
	cb := s.OnScheduled
	s.mu.Unlock()

	sched := Scheduled{Start: start, Duration: dur}
	if cb != nil {
		cb(sched)
	}
	return sched, nil
}

func (s *Scheduler) ended(h *handle) {
	s.mu.Lock()
	delete(s.active, h)
	s.mu.Unlock()
}

// Interrupt stops every tracked source, empties the active set and rewinds
// the cursor to zero. It returns the number of sources stopped.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.active))
	for h := range s.active {
		handles = append(handles, h)
	}
	clear(s.active)
	s.nextStart = 0
	s.mu.Unlock()

	for _, h := range handles {
		if h.src == nil {
			continue
		}
		if err := h.src.Stop(); err != nil {
			slog.Debug("stop playback source", "error", err)
		}
	}
	return len(handles)
}

// Reset is Interrupt without a result; used on session teardown.
func (s *Scheduler) Reset() {
	s.Interrupt()
}

// NextStart returns the scheduling cursor in device seconds.
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// Active returns the number of sources scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
