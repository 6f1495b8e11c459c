package livesession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.aimuz.me/speakup/audiocapture"
	"go.aimuz.me/speakup/internal/types"
	"go.aimuz.me/speakup/playback"
	"go.aimuz.me/speakup/transport"
)

// Devices opens the audio endpoints. Tests substitute fakes.
type Devices struct {
	OpenInput  func(audiocapture.Config) (audiocapture.Capturer, error)
	OpenOutput func(playback.Config) (playback.Output, error)
}

// SystemDevices uses the default microphone and speaker.
func SystemDevices() Devices {
	return Devices{
		OpenInput: audiocapture.New,
		OpenOutput: func(cfg playback.Config) (playback.Output, error) {
			sp, err := playback.OpenSpeaker(cfg)
			if err != nil {
				return nil, err
			}
			return sp, nil
		},
	}
}

// Config holds configuration for a Controller.
// Zero values are replaced with sensible defaults.
type Config struct {
	Transport transport.Transport // Required
	Session   transport.Config
	Capture   audiocapture.Config
	Playback  playback.Config

	QueueSize       int
	QueuePolicy     QueuePolicy
	SpeechThreshold float32       // RMS level counted as speech, default 0.02
	SpeechHangover  time.Duration // Silence that ends speech, default 500ms
	EventBuffer     int           // Events channel capacity, default 256

	Devices  Devices          // Default SystemDevices()
	Observer Observer         // Optional
	Detector LanguageDetector // Optional
}

func (c Config) withDefaults() Config {
	capDef := audiocapture.DefaultConfig()
	if c.Capture.SampleRate <= 0 {
		c.Capture.SampleRate = capDef.SampleRate
	}
	if c.Capture.FrameSize <= 0 {
		c.Capture.FrameSize = capDef.FrameSize
	}
	playDef := playback.DefaultConfig()
	if c.Playback.SampleRate <= 0 {
		c.Playback.SampleRate = playDef.SampleRate
	}
	if c.Playback.Channels <= 0 {
		c.Playback.Channels = playDef.Channels
	}
	if c.Session.Modality == "" {
		c.Session.Modality = transport.ModalityAudio
	}
	if c.Session.InputSampleRate == 0 {
		c.Session.InputSampleRate = c.Capture.SampleRate
	}
	if c.Session.OutputSampleRate == 0 {
		c.Session.OutputSampleRate = c.Playback.SampleRate
	}
	if c.SpeechThreshold <= 0 {
		c.SpeechThreshold = 0.02
	}
	if c.SpeechHangover <= 0 {
		c.SpeechHangover = 500 * time.Millisecond
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 256
	}
	if c.Devices.OpenInput == nil || c.Devices.OpenOutput == nil {
		sys := SystemDevices()
		if c.Devices.OpenInput == nil {
			c.Devices.OpenInput = sys.OpenInput
		}
		if c.Devices.OpenOutput == nil {
			c.Devices.OpenOutput = sys.OpenOutput
		}
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	return c
}

// Controller owns one conversation: the transport session, the microphone,
// the speaker and the transcript log. It is the only owner of those
// resources; all state changes are serialized under mu, and every callback
// carries the generation it was created for so that late callbacks from a
// previous session are ignored.
type Controller struct {
	cfg        Config
	observer   Observer
	classifier *Classifier
	assembler  *Assembler
	events     chan Event

	mu        sync.Mutex
	state     State
	gen       uint64
	lastErr   error
	started   time.Time
	opened    bool // OnOpen arrived before Open returned
	cancel    context.CancelFunc
	encoder   *Encoder
	capturer  audiocapture.Capturer
	output    playback.Output
	scheduler *playback.Scheduler
	session   transport.Session

	speaking      atomic.Bool
	buffers       atomic.Uint64
	interruptions atomic.Uint64
	turns         atomic.Uint64
}

// NewController creates an idle Controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Transport == nil {
		return nil, errors.New("livesession: transport required")
	}
	cfg = cfg.withDefaults()
	classifier := &Classifier{}
	return &Controller{
		cfg:        cfg,
		observer:   cfg.Observer,
		classifier: classifier,
		assembler:  NewAssembler(classifier, cfg.Detector),
		events:     make(chan Event, cfg.EventBuffer),
	}, nil
}

// Start opens the microphone, the speaker and the transport session, in
// that order. It is valid from Idle or Error. The session becomes Active
// when the transport reports it is open, which may be after Start returns.
// Any failure leaves the controller in Error with everything released.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Connecting || c.state == Active {
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.lastErr = nil
	c.opened = false
	c.started = time.Now()
	enc := NewEncoder(EncoderConfig{
		SampleRate: c.cfg.Capture.SampleRate,
		QueueSize:  c.cfg.QueueSize,
		Policy:     c.cfg.QueuePolicy,
	}, c.observer)
	c.encoder = enc
	c.setStateLocked(Connecting, nil)
	c.mu.Unlock()

	slog.Info("starting session", "backend", c.cfg.Transport.Name())

	capt, err := c.cfg.Devices.OpenInput(c.cfg.Capture)
	if err != nil {
		return c.fail(gen, inputKind(err), "open input device", err)
	}
	meter := NewSpeechMeter(c.cfg.SpeechThreshold, c.cfg.SpeechHangover, c.cfg.Capture.SampleRate)
	if err := capt.Start(c.captureHandler(enc, meter)); err != nil {
		_ = capt.Stop()
		return c.fail(gen, inputKind(err), "start capture", err)
	}
	if !c.adopt(gen, func() { c.capturer = capt }) {
		_ = capt.Stop()
		return c.startAborted(gen)
	}

	out, err := c.cfg.Devices.OpenOutput(c.cfg.Playback)
	if err != nil {
		return c.fail(gen, KindDevice, "open output device", err)
	}
	sched := playback.NewScheduler(out, c.cfg.Playback)
	sched.OnScheduled = func(s playback.Scheduled) {
		c.buffers.Add(1)
		c.observer.BufferScheduled(s.Duration)
	}
	if !c.adopt(gen, func() { c.output, c.scheduler = out, sched }) {
		_ = out.Close()
		return c.startAborted(gen)
	}

	sess, err := c.cfg.Transport.Open(ctx, c.cfg.Session, c.callbacks(gen))
	if err != nil {
		return c.fail(gen, KindTransport, "open transport", err)
	}
	if !c.adopt(gen, func() {
		c.session = sess
		if c.opened {
			c.activateLocked()
		}
	}) {
		_ = sess.Close()
		return c.startAborted(gen)
	}
	return nil
}

// adopt runs fn under the lock if gen is still the connecting session.
func (c *Controller) adopt(gen uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != Connecting {
		return false
	}
	fn()
	return true
}

// startAborted explains why Start lost its session midway.
func (c *Controller) startAborted(gen uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen && c.lastErr != nil {
		return c.lastErr
	}
	return ErrStopped
}

func inputKind(err error) ErrorKind {
	if errors.Is(err, audiocapture.ErrPermissionDenied) {
		return KindPermission
	}
	return KindDevice
}

func (c *Controller) captureHandler(enc *Encoder, meter *SpeechMeter) audiocapture.AudioHandler {
	return func(samples []float32) {
		enc.HandleFrame(samples)
		if speaking, changed := meter.Process(samples); changed {
			c.speaking.Store(speaking)
			c.emit(SpeakingEvent{Speaking: speaking})
		}
	}
}

func (c *Controller) callbacks(gen uint64) transport.Callbacks {
	return transport.Callbacks{
		OnOpen:    func() { c.onOpen(gen) },
		OnMessage: func(m *transport.ServerMessage) { c.onMessage(gen, m) },
		OnError:   func(err error) { c.onError(gen, err) },
		OnClose:   func(reason string) { c.onClose(gen, reason) },
	}
}

func (c *Controller) onOpen(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != Connecting {
		return
	}
	if c.session == nil {
		c.opened = true
		return
	}
	c.activateLocked()
}

func (c *Controller) activateLocked() {
	c.encoder.Attach(c.session)
	c.setStateLocked(Active, nil)
	slog.Info("session active")
}

func (c *Controller) onMessage(gen uint64, msg *transport.ServerMessage) {
	var res resources
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		res.release()
	}()
	if gen != c.gen || c.state != Active || msg == nil {
		return
	}

	// Barge-in first so audio carried by the same message survives.
	if msg.Interrupted() {
		n := c.scheduler.Interrupt()
		c.interruptions.Add(1)
		c.observer.Interrupted()
		slog.Debug("playback interrupted", "stopped", n)
		c.emit(InterruptEvent{Stopped: n})
	}

	if data := msg.AudioData(); data != "" {
		if _, err := c.scheduler.Enqueue(data); err != nil {
			_, res = c.failLocked(gen, KindDevice, "play audio", err)
			return
		}
	}

	if text := msg.InputText(); text != "" {
		c.emit(TranscriptEvent{Transcript: c.assembler.AppendUser(text)})
	}
	if text := msg.OutputText(); text != "" {
		live, fb := c.assembler.AppendModel(text)
		c.emit(TranscriptEvent{Transcript: live})
		if fb != nil {
			c.emit(FeedbackEvent{Feedback: *fb})
		}
	}

	if msg.TurnComplete() {
		c.turns.Add(1)
		c.observer.TurnCompleted()
		for _, m := range c.assembler.CompleteTurn() {
			c.emit(MessageEvent{Message: m})
		}
		c.emit(TranscriptEvent{})
	}
}

func (c *Controller) onError(gen uint64, err error) {
	c.mu.Lock()
	_, res := c.failLocked(gen, KindTransport, "transport", err)
	c.mu.Unlock()
	res.release()
}

func (c *Controller) onClose(gen uint64, reason string) {
	c.mu.Lock()
	if gen != c.gen || (c.state != Connecting && c.state != Active) {
		c.mu.Unlock()
		return
	}
	res := c.detachLocked()
	c.setStateLocked(Idle, nil)
	c.mu.Unlock()

	res.release()
	slog.Info("session closed by remote", "reason", reason)
}

// Stop ends the session from any state and returns to Idle. The transport
// is closed without waiting for acknowledgement. Safe to call repeatedly.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	res := c.detachLocked()
	c.lastErr = nil
	c.setStateLocked(Idle, nil)
	c.mu.Unlock()

	res.release()
	slog.Info("session stopped")
	return nil
}

// fail reports a Start step failure. A step that failed because Stop
// cancelled it reports ErrStopped.
func (c *Controller) fail(gen uint64, kind ErrorKind, op string, err error) error {
	c.mu.Lock()
	stale := gen != c.gen
	serr, res := c.failLocked(gen, kind, op, err)
	c.mu.Unlock()
	res.release()
	if stale {
		return ErrStopped
	}
	return serr
}

// failLocked moves a live session to Error. It is a no-op for a stale
// generation or a session that already ended.
func (c *Controller) failLocked(gen uint64, kind ErrorKind, op string, err error) (*SessionError, resources) {
	serr := &SessionError{Kind: kind, Op: op, Err: err}
	if gen != c.gen || (c.state != Connecting && c.state != Active) {
		return serr, resources{}
	}
	slog.Error("session failed", "kind", kind.String(), "op", op, "error", err)
	res := c.detachLocked()
	c.lastErr = serr
	c.observer.SessionFailed(kind.String())
	c.setStateLocked(Error, serr)
	return serr, res
}

// resources are released outside the lock, since closing a transport or
// device may call back into the controller.
type resources struct {
	cancel    context.CancelFunc
	encoder   *Encoder
	capturer  audiocapture.Capturer
	session   transport.Session
	scheduler *playback.Scheduler
	output    playback.Output
}

// detachLocked hands every owned resource to the caller for release.
func (c *Controller) detachLocked() resources {
	res := resources{
		cancel:    c.cancel,
		encoder:   c.encoder, // kept for Status counters
		capturer:  c.capturer,
		session:   c.session,
		scheduler: c.scheduler,
		output:    c.output,
	}
	c.cancel = nil
	c.capturer = nil
	c.session = nil
	c.scheduler = nil
	c.output = nil
	c.opened = false
	c.speaking.Store(false)
	return res
}

// release is the teardown routine. Every step tolerates resources that
// were never created or are already released.
func (r resources) release() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.encoder != nil {
		r.encoder.Detach()
	}
	if r.capturer != nil {
		if err := r.capturer.Stop(); err != nil {
			slog.Debug("stop capture", "error", err)
		}
	}
	if r.session != nil {
		if err := r.session.Close(); err != nil {
			slog.Debug("close transport", "error", err)
		}
	}
	if r.scheduler != nil {
		r.scheduler.Reset()
	}
	if r.output != nil {
		if err := r.output.Close(); err != nil {
			slog.Debug("close output device", "error", err)
		}
	}
}

func (c *Controller) setStateLocked(s State, err error) {
	if c.state == s {
		return
	}
	slog.Debug("session state", "from", c.state.String(), "to", s.String())
	c.state = s
	c.observer.StateChanged(s.String())
	c.emit(StateEvent{State: s, Err: err})
}

func (c *Controller) emit(e Event) {
	select {
	case c.events <- e:
	default:
		slog.Warn("event channel full, dropping event", "event", e.eventName())
	}
}

// Reset starts a new conversation: the log, the live transcript and the
// latest feedback are cleared. The connection is left as it is.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assembler.Reset()
	c.emit(ResetEvent{})
}

// Events returns the notification channel. It is never closed.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that caused the Error state, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Messages returns a copy of the conversation log.
func (c *Controller) Messages() []types.Message {
	return c.assembler.Messages()
}

// Live returns the in-progress transcript of the current turn.
func (c *Controller) Live() types.LiveTranscript {
	return c.assembler.Live()
}

// Feedback returns the latest tutor feedback, if any.
func (c *Controller) Feedback() (types.Feedback, bool) {
	return c.classifier.Latest()
}

// Status returns a snapshot for display.
func (c *Controller) Status() types.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := types.Status{
		State:         c.state.String(),
		Backend:       c.cfg.Transport.Name(),
		Speaking:      c.speaking.Load(),
		BuffersPlayed: c.buffers.Load(),
		Interruptions: c.interruptions.Load(),
		Turns:         c.turns.Load(),
		MessageCount:  c.assembler.Len(),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if c.state == Connecting || c.state == Active {
		st.Duration = int64(time.Since(c.started).Seconds())
	}
	if c.encoder != nil {
		st.FramesCaptured, st.ChunksSent, st.ChunksDropped = c.encoder.Stats()
	}
	return st
}

