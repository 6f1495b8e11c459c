package playback

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"go.aimuz.me/speakup/pcm"
)

// manualOutput is an Output whose clock only moves when the test says so.
type manualOutput struct {
	now     float64
	sources []*manualSource
	err     error
}

type manualSource struct {
	at      float64
	dur     float64
	onEnded func()
	stopped int
	stopErr error
}

func (o *manualOutput) CurrentTime() float64 { return o.now }

func (o *manualOutput) Play(buf *Buffer, at float64, onEnded func()) (Source, float64, error) {
	if o.err != nil {
		return nil, 0, o.err
	}
	at = max(at, o.now)
	src := &manualSource{at: at, dur: buf.Duration(), onEnded: onEnded}
	o.sources = append(o.sources, src)
	return src, at, nil
}

func (o *manualOutput) Close() error { return nil }

func (s *manualSource) Stop() error {
	s.stopped++
	return s.stopErr
}

func silence(seconds float64) *Buffer {
	return &Buffer{
		Samples:    make([]float32, int(seconds*24000)),
		SampleRate: 24000,
		Channels:   1,
	}
}

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestScheduler_ChainsBackToBack(t *testing.T) {
	out := &manualOutput{}
	s := NewScheduler(out, DefaultConfig())

	wantStarts := []float64{0, 0.1, 0.2}
	for i, want := range wantStarts {
		got, err := s.Schedule(silence(0.1))
		if err != nil {
			t.Fatalf("Schedule %d: %v", i, err)
		}
		if !approx(got.Start, want) {
			t.Errorf("buffer %d start = %v, want %v", i, got.Start, want)
		}
	}
	if !approx(s.NextStart(), 0.3) {
		t.Errorf("NextStart() = %v, want 0.3", s.NextStart())
	}
	if s.Active() != 3 {
		t.Errorf("Active() = %d, want 3", s.Active())
	}
}

func TestScheduler_NeverStartsInThePast(t *testing.T) {
	out := &manualOutput{}
	s := NewScheduler(out, DefaultConfig())

	if _, err := s.Schedule(silence(0.1)); err != nil {
		t.Fatal(err)
	}

	// Device idled well past the queued audio.
	out.now = 5
	got, err := s.Schedule(silence(0.1))
	if err != nil {
		t.Fatal(err)
	}
	if !approx(got.Start, 5) {
		t.Errorf("start after idle = %v, want 5", got.Start)
	}
	if !approx(s.NextStart(), 5.1) {
		t.Errorf("NextStart() = %v, want 5.1", s.NextStart())
	}
}

func TestScheduler_NoOverlapProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	out := &manualOutput{}
	s := NewScheduler(out, DefaultConfig())

	var prev Scheduled
	for i := 0; i < 500; i++ {
		// Advance the device clock by a random amount, sometimes past the queue.
		out.now += rng.Float64() * 0.15
		now := out.now

		got, err := s.Schedule(silence(0.01 + rng.Float64()*0.2))
		if err != nil {
			t.Fatal(err)
		}
		if got.Start < now-eps {
			t.Fatalf("buffer %d starts at %v, behind device clock %v", i, got.Start, now)
		}
		if i > 0 {
			if got.Start < prev.Start {
				t.Fatalf("buffer %d start %v decreased from %v", i, got.Start, prev.Start)
			}
			if got.Start < prev.Start+prev.Duration-eps {
				t.Fatalf("buffer %d start %v overlaps previous end %v", i, got.Start, prev.Start+prev.Duration)
			}
		}
		prev = got
	}
}

// pullingOutput is a Mixer whose device pulls 100ms of audio right after
// the first clock read, as a real output callback may.
type pullingOutput struct {
	*Mixer
	t      *testing.T
	pulled bool
}

func (o *pullingOutput) CurrentTime() float64 {
	now := o.Mixer.CurrentTime()
	if !o.pulled {
		o.pulled = true
		readFrames(o.t, o.Mixer, 10)
	}
	return now
}

func TestScheduler_ClockMovesBeforePlay(t *testing.T) {
	cfg := Config{SampleRate: 100, Channels: 1}
	out := &pullingOutput{Mixer: NewMixer(cfg), t: t}
	s := NewScheduler(out, cfg)

	a, err := s.Schedule(constant(0.25, 10, 100))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Schedule(constant(0.25, 10, 100))
	if err != nil {
		t.Fatal(err)
	}
	if !approx(a.Start, 0.1) {
		t.Errorf("first start = %v, want 0.1 (where the device placed it)", a.Start)
	}
	if b.Start < a.Start+a.Duration-eps {
		t.Errorf("second start %v overlaps first end %v", b.Start, a.Start+a.Duration)
	}

	frames := readFrames(t, out.Mixer, 20)
	level := frames[0]
	if level == 0 {
		t.Fatal("first buffer not playing at its reported start")
	}
	for i, f := range frames {
		if f != level {
			t.Fatalf("frame %d = %d, want %d (one buffer at a time)", i, f, level)
		}
	}
}

func TestScheduler_Interrupt(t *testing.T) {
	out := &manualOutput{}
	s := NewScheduler(out, DefaultConfig())

	for i := 0; i < 3; i++ {
		if _, err := s.Schedule(silence(0.5)); err != nil {
			t.Fatal(err)
		}
	}
	// One source reports an error when stopped; it must be ignored.
	out.sources[1].stopErr = errors.New("already finished")

	if n := s.Interrupt(); n != 3 {
		t.Errorf("Interrupt() stopped %d sources, want 3", n)
	}
	if s.Active() != 0 {
		t.Errorf("Active() after interrupt = %d, want 0", s.Active())
	}
	if s.NextStart() != 0 {
		t.Errorf("NextStart() after interrupt = %v, want 0", s.NextStart())
	}
	for i, src := range out.sources {
		if src.stopped != 1 {
			t.Errorf("source %d stopped %d times, want 1", i, src.stopped)
		}
	}

	// Interrupting an empty scheduler is a no-op.
	if n := s.Interrupt(); n != 0 {
		t.Errorf("second Interrupt() stopped %d, want 0", n)
	}
}

func TestScheduler_NaturalEndRemovesHandle(t *testing.T) {
	out := &manualOutput{}
	s := NewScheduler(out, DefaultConfig())

	for i := 0; i < 2; i++ {
		if _, err := s.Schedule(silence(0.1)); err != nil {
			t.Fatal(err)
		}
	}
	out.sources[0].onEnded()
	if s.Active() != 1 {
		t.Errorf("Active() = %d, want 1", s.Active())
	}

	// A late completion after an interrupt must not disturb the new turn.
	s.Interrupt()
	if _, err := s.Schedule(silence(0.1)); err != nil {
		t.Fatal(err)
	}
	out.sources[1].onEnded()
	if s.Active() != 1 {
		t.Errorf("Active() after stale end = %d, want 1", s.Active())
	}
}

func TestScheduler_Enqueue(t *testing.T) {
	out := &manualOutput{}
	s := NewScheduler(out, DefaultConfig())

	var seen []Scheduled
	s.OnScheduled = func(sc Scheduled) { seen = append(seen, sc) }

	got, err := s.Enqueue(pcm.EncodeBase64(make([]float32, 4800)))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !approx(got.Duration, 0.2) {
		t.Errorf("Duration = %v, want 0.2", got.Duration)
	}
	if len(seen) != 1 {
		t.Errorf("OnScheduled called %d times, want 1", len(seen))
	}

	if _, err := s.Enqueue("%%%"); err == nil {
		t.Error("expected decode error")
	}
	if s.Active() != 1 {
		t.Errorf("Active() = %d, want 1", s.Active())
	}
}

func TestScheduler_PlayError(t *testing.T) {
	out := &manualOutput{err: ErrClosed}
	s := NewScheduler(out, DefaultConfig())

	if _, err := s.Schedule(silence(0.1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Schedule err = %v, want ErrClosed", err)
	}
	if s.NextStart() != 0 {
		t.Errorf("NextStart() = %v, want 0 after failure", s.NextStart())
	}
}
