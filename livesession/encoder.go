package livesession

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"go.aimuz.me/speakup/pcm"
	"go.aimuz.me/speakup/transport"
)

// QueuePolicy decides what happens when the send queue is full.
type QueuePolicy string

const (
	// DropOldest discards the oldest queued chunk; capture never waits.
	DropOldest QueuePolicy = "drop-oldest"
	// Block makes the capture callback wait for room.
	Block QueuePolicy = "block"
)

// Sender is the part of a transport session the encoder needs.
type Sender interface {
	SendRealtimeInput(in transport.RealtimeInput) error
}

// EncoderConfig configures an Encoder.
type EncoderConfig struct {
	SampleRate int         // Capture rate, used for the MIME type
	QueueSize  int         // Chunks buffered between capture and network, default 32
	Policy     QueuePolicy // Default DropOldest
}

// Encoder turns captured frames into base64 PCM chunks and hands them to
// the transport from its own goroutine, so the capture callback never
// waits on the network.
type Encoder struct {
	cfg      EncoderConfig
	mimeType string
	observer Observer

	mu       sync.Mutex
	attached bool
	queue    chan string
	done     chan struct{}

	frames  atomic.Uint64
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewEncoder creates a detached Encoder. observer may be nil.
func NewEncoder(cfg EncoderConfig, observer Observer) *Encoder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.Policy == "" {
		cfg.Policy = DropOldest
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Encoder{
		cfg:      cfg,
		mimeType: pcm.MIMEType(cfg.SampleRate),
		observer: observer,
	}
}

// Attach starts streaming to s. Frames handled before Attach are dropped.
func (e *Encoder) Attach(s Sender) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attached {
		return
	}
	e.attached = true
	e.queue = make(chan string, e.cfg.QueueSize)
	e.done = make(chan struct{})
	go e.run(s, e.queue, e.done)
}

// Detach stops streaming. Queued chunks are discarded and a send already
// in flight is not waited for. Safe to call repeatedly.
func (e *Encoder) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.attached {
		return
	}
	e.attached = false
	close(e.done)
	e.queue = nil
	e.done = nil
}

// HandleFrame encodes one frame and queues it for sending. It is the
// capture device callback.
func (e *Encoder) HandleFrame(samples []float32) {
	e.mu.Lock()
	queue, done := e.queue, e.done
	attached := e.attached
	e.mu.Unlock()
	if !attached {
		return
	}

	n := e.frames.Add(1)
	e.observer.FrameCaptured()
	if n%100 == 0 {
		slog.Debug("encoded audio frames", "count", n, "samples", len(samples))
	}

	chunk := pcm.EncodeBase64(samples)
	if e.cfg.Policy == Block {
		select {
		case queue <- chunk:
		case <-done:
		}
		return
	}

	for {
		select {
		case queue <- chunk:
			return
		default:
		}
		select {
		case <-queue:
			e.dropped.Add(1)
			e.observer.ChunkDropped()
		default:
		}
	}
}

func (e *Encoder) run(s Sender, queue <-chan string, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case chunk := <-queue:
			select {
			case <-done:
				return
			default:
			}
			err := s.SendRealtimeInput(transport.RealtimeInput{
				Media: &transport.Blob{MIMEType: e.mimeType, Data: chunk},
			})
			if err != nil {
				// Fatal transport failures arrive through OnError.
				slog.Debug("send audio chunk", "error", err)
				continue
			}
			e.sent.Add(1)
			e.observer.ChunkSent()
		}
	}
}

// Stats returns frames encoded, chunks sent and chunks dropped.
func (e *Encoder) Stats() (frames, sent, dropped uint64) {
	return e.frames.Load(), e.sent.Load(), e.dropped.Load()
}
