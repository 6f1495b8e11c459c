// Package openai implements the voice transport on the OpenAI Realtime API
// over WebRTC. Microphone audio is opus-encoded onto an RTP track, the
// model's voice arrives as an opus track, and transcripts flow over the
// "oai-events" data channel.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	opuscodec "github.com/jj11hh/opus"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"go.aimuz.me/speakup/pcm"
	"go.aimuz.me/speakup/transport"
)

// Max opus packet size.
const maxPacket = 1275

// Transport opens Realtime sessions.
type Transport struct {
	APIKey string
	// Endpoint overrides CallsEndpoint.
	Endpoint string
}

// New returns a Transport that authenticates with apiKey.
func New(apiKey string) *Transport {
	return &Transport{APIKey: apiKey}
}

func (t *Transport) Name() string { return "openai" }

// Open mints an ephemeral key and negotiates the peer connection. It blocks
// until the SDP exchange finishes; OnOpen fires once the data channel opens
// and the session.update has been sent.
func (t *Transport) Open(ctx context.Context, cfg transport.Config, cb transport.Callbacks) (transport.Session, error) {
	if cfg.InputSampleRate == 0 {
		cfg.InputSampleRate = 16000
	}
	if cfg.OutputSampleRate == 0 {
		cfg.OutputSampleRate = 24000
	}
	if err := checkRate(cfg.InputSampleRate); err != nil {
		return nil, err
	}
	if err := checkRate(cfg.OutputSampleRate); err != nil {
		return nil, err
	}

	secret, err := NewSecret(ctx, t.APIKey, SecretRequest{Model: cfg.Model, Instructions: cfg.SystemInstruction})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	slog.Info("realtime session created", "expires", time.Unix(secret.ExpiresAt, 0))

	s := &session{
		cfg:     cfg,
		cb:      cb,
		frames:  newReframer(cfg.InputSampleRate),
		packet:  make([]byte, maxPacket),
		outMIME: pcm.MIMEType(cfg.OutputSampleRate),
		turns:   newTurnGate(cfg.InputTranscription),
	}
	if err := s.connect(ctx, t.Endpoint, secret.Value); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

type session struct {
	cfg     transport.Config
	cb      transport.Callbacks
	outMIME string
	turns   *turnGate

	// Guarded by sendMu: touched only on the send path.
	sendMu  sync.Mutex
	frames  *reframer
	packet  []byte
	encoder *opuscodec.Encoder

	mu     sync.Mutex
	closed bool
	pc     *webrtc.PeerConnection
	track  *webrtc.TrackLocalStaticSample
	dc     *webrtc.DataChannel

	endOnce sync.Once
}

func (s *session) connect(ctx context.Context, endpoint, key string) error {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return fmt.Errorf("register codecs: %w", err)
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine))
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	})
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}
	s.mu.Lock()
	s.pc = pc
	s.mu.Unlock()

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		"speakup-mic",
	)
	if err != nil {
		return fmt.Errorf("create audio track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fmt.Errorf("add audio track: %w", err)
	}

	enc, err := opuscodec.NewEncoder(s.cfg.InputSampleRate, 1, opuscodec.AppVoIP)
	if err != nil {
		return fmt.Errorf("create opus encoder: %w", err)
	}

	dc, err := pc.CreateDataChannel("oai-events", nil)
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}

	s.sendMu.Lock()
	s.encoder = enc
	s.sendMu.Unlock()
	s.mu.Lock()
	s.track = track
	s.dc = dc
	s.mu.Unlock()

	dc.OnOpen(s.handleOpen)
	dc.OnMessage(s.handleDataMessage)
	dc.OnClose(func() { s.end("data channel closed", nil) })
	pc.OnTrack(s.handleTrack)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Debug("peer connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed:
			s.end("", fmt.Errorf("peer connection %s", state.String()))
		case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			s.end("peer connection "+state.String(), nil)
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	<-webrtc.GatheringCompletePromise(pc)

	answer, err := ExchangeSDP(ctx, endpoint, pc.LocalDescription().SDP, key)
	if err != nil {
		return fmt.Errorf("exchange SDP: %w", err)
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (s *session) handleOpen() {
	s.mu.Lock()
	dc, closed := s.dc, s.closed
	s.mu.Unlock()
	if closed || dc == nil {
		return
	}

	data, err := json.Marshal(NewSessionUpdate(s.cfg))
	if err != nil {
		s.end("", fmt.Errorf("marshal session update: %w", err))
		return
	}
	if err := dc.SendText(string(data)); err != nil {
		s.end("", fmt.Errorf("send session update: %w", err))
		return
	}
	slog.Info("data channel opened")
	if s.cb.OnOpen != nil {
		s.cb.OnOpen()
	}
}

func (s *session) handleDataMessage(msg webrtc.DataChannelMessage) {
	event, err := ParseEvent(msg.Data)
	if err != nil {
		slog.Warn("failed to parse event", "error", err)
		return
	}
	if ee, ok := event.(ErrorEvent); ok {
		// Realtime errors are per-request; the call stays up.
		slog.Warn("realtime error", "type", ee.Error.Type, "code", ee.Error.Code, "message", ee.Error.Message)
		return
	}
	if s.cb.OnMessage == nil {
		return
	}
	for _, m := range s.turns.messages(event) {
		s.cb.OnMessage(m)
	}
}

// handleTrack decodes the model's voice and delivers it as PCM16 chunks.
func (s *session) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	slog.Info("received remote track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	dec, err := opuscodec.NewDecoder(s.cfg.OutputSampleRate, 1)
	if err != nil {
		s.end("", fmt.Errorf("create opus decoder: %w", err))
		return
	}

	go func() {
		// 120ms is the longest opus frame.
		samples := make([]int16, s.cfg.OutputSampleRate*120/1000)
		for {
			pkt, _, err := track.ReadRTP()
			if err != nil {
				return
			}
			if len(pkt.Payload) == 0 {
				continue
			}
			n, err := dec.Decode(pkt.Payload, samples)
			if err != nil {
				slog.Debug("opus decode", "error", err)
				continue
			}
			if n == 0 || s.cb.OnMessage == nil {
				continue
			}
			data := pcm.EncodeInt16sBase64(samples[:n])
			s.cb.OnMessage(transport.AudioMessage(s.outMIME, data))
		}
	}()
}

// SendRealtimeInput encodes one base64 PCM16 chunk into 20ms opus frames.
func (s *session) SendRealtimeInput(in transport.RealtimeInput) error {
	if in.Media == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return transport.ErrClosed
	}
	track := s.track
	s.mu.Unlock()
	if track == nil {
		return transport.ErrNotReady
	}

	samples, err := pcm.Int16sBase64(in.Media.Data)
	if err != nil {
		return err
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.encoder == nil {
		return transport.ErrNotReady
	}
	frameDur := time.Second / framesPerSecond
	return s.frames.push(samples, func(frame []int16) error {
		n, err := s.encoder.Encode(frame, s.packet)
		if err != nil {
			return fmt.Errorf("opus encode: %w", err)
		}
		return track.WriteSample(media.Sample{Data: s.packet[:n], Duration: frameDur})
	})
}

// Close tears down the peer connection. It does not invoke OnClose.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pc := s.pc
	s.mu.Unlock()

	s.endOnce.Do(func() {})
	if pc != nil {
		if err := pc.Close(); err != nil {
			return fmt.Errorf("close peer connection: %w", err)
		}
	}
	return nil
}

// end reports the first remote termination, as an error or a close.
func (s *session) end(reason string, err error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.endOnce.Do(func() {
		if err != nil {
			slog.Error("realtime session failed", "error", err)
			if s.cb.OnError != nil {
				s.cb.OnError(err)
			}
			return
		}
		slog.Info("realtime session ended", "reason", reason)
		if s.cb.OnClose != nil {
			s.cb.OnClose(reason)
		}
	})
}
