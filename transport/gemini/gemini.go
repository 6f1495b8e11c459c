// Package gemini implements the voice transport on the Gemini Live API using
// the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"go.aimuz.me/speakup/transport"
)

// DefaultModel is a native-audio Live model.
const DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

// Transport opens Live sessions through the genai client.
type Transport struct {
	APIKey string
	// BaseURL overrides the SDK's default endpoint.
	BaseURL string
}

// New returns a Transport that authenticates with apiKey.
func New(apiKey string) *Transport {
	return &Transport{APIKey: apiKey}
}

func (t *Transport) Name() string { return "gemini" }

// Open dials the Live API. OnOpen fires when setupComplete arrives.
func (t *Transport) Open(ctx context.Context, cfg transport.Config, cb transport.Callbacks) (transport.Session, error) {
	cc := &genai.ClientConfig{
		APIKey:  t.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if t.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: t.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	live, err := client.Live.Connect(ctx, model, connectConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect live: %w", err)
	}

	s := &session{live: live, cb: cb}
	go s.receive()
	return s, nil
}

func connectConfig(cfg transport.Config) *genai.LiveConnectConfig {
	modality := genai.ModalityAudio
	if cfg.Modality == transport.ModalityText {
		modality = genai.ModalityText
	}
	lc := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{modality},
	}
	if cfg.Voice != "" {
		lc.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}
	if cfg.SystemInstruction != "" {
		lc.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	if cfg.InputTranscription {
		lc.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		lc.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return lc
}

type session struct {
	live *genai.Session
	cb   transport.Callbacks

	mu     sync.Mutex
	closed bool
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) receive() {
	for {
		msg, err := s.live.Receive()
		if err != nil {
			if s.isClosed() {
				return
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && (ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway) {
				slog.Info("live session closed by server", "code", ce.Code, "reason", ce.Text)
				if s.cb.OnClose != nil {
					s.cb.OnClose(ce.Text)
				}
				return
			}
			slog.Error("live receive failed", "error", err)
			if s.cb.OnError != nil {
				s.cb.OnError(fmt.Errorf("receive: %w", err))
			}
			return
		}

		if msg.SetupComplete != nil {
			slog.Debug("live setup complete")
			if s.cb.OnOpen != nil {
				s.cb.OnOpen()
			}
			continue
		}
		if msg.GoAway != nil {
			slog.Warn("live session going away", "timeLeft", msg.GoAway.TimeLeft)
		}
		if m := convert(msg); m != nil && s.cb.OnMessage != nil {
			s.cb.OnMessage(m)
		}
	}
}

// convert maps an SDK message onto the common shape. Audio bytes are
// re-encoded as base64 so every backend delivers the same wire text.
func convert(msg *genai.LiveServerMessage) *transport.ServerMessage {
	if msg == nil || msg.ServerContent == nil {
		return nil
	}
	sc := msg.ServerContent
	out := &transport.ServerContent{
		TurnComplete: sc.TurnComplete,
		Interrupted:  sc.Interrupted,
	}
	if sc.ModelTurn != nil {
		content := &transport.Content{}
		for _, p := range sc.ModelTurn.Parts {
			if p == nil {
				continue
			}
			part := &transport.Part{Text: p.Text}
			if p.InlineData != nil {
				part.InlineData = &transport.Blob{
					MIMEType: p.InlineData.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
				}
			}
			content.Parts = append(content.Parts, part)
		}
		out.ModelTurn = content
	}
	if sc.InputTranscription != nil {
		out.InputTranscription = &transport.Transcription{Text: sc.InputTranscription.Text}
	}
	if sc.OutputTranscription != nil {
		out.OutputTranscription = &transport.Transcription{Text: sc.OutputTranscription.Text}
	}
	return &transport.ServerMessage{ServerContent: out}
}

func (s *session) SendRealtimeInput(in transport.RealtimeInput) error {
	if s.isClosed() {
		return transport.ErrClosed
	}
	if in.Media == nil {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(in.Media.Data)
	if err != nil {
		return fmt.Errorf("decode base64: %w", err)
	}
	if err := s.live.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{MIMEType: in.Media.MIMEType, Data: data},
	}); err != nil {
		return fmt.Errorf("send realtime input: %w", err)
	}
	return nil
}

// Close closes the websocket. The receive loop exits without callbacks.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.live.Close()
}
