// Package geminiws speaks the Gemini Live BidiGenerateContent protocol
// directly over a websocket. It needs no SDK and makes the wire format
// visible, which is handy for proxies and tests.
package geminiws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go.aimuz.me/speakup/transport"
)

// DefaultEndpoint is the public Live API websocket.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// DefaultModel is used when the config names none.
const DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

const writeTimeout = 10 * time.Second

// Transport dials Endpoint with an API key query parameter.
type Transport struct {
	APIKey   string
	Endpoint string
	Dialer   *websocket.Dialer
}

// New returns a Transport for the public endpoint.
func New(apiKey string) *Transport {
	return &Transport{APIKey: apiKey, Endpoint: DefaultEndpoint}
}

func (t *Transport) Name() string { return "gemini-ws" }

// Open dials, sends the setup message and starts the read loop. OnOpen
// fires when the server acknowledges setup.
func (t *Transport) Open(ctx context.Context, cfg transport.Config, cb transport.Callbacks) (transport.Session, error) {
	endpoint := t.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if t.APIKey != "" {
		q := u.Query()
		q.Set("key", t.APIKey)
		u.RawQuery = q.Encode()
	}

	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}

	s := &session{conn: conn, cb: cb}
	if err := s.write(NewSetup(cfg)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}
	go s.readLoop()
	return s, nil
}

type session struct {
	conn *websocket.Conn
	cb   transport.Callbacks

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}

		var msg serverFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("failed to parse server message", "error", err)
			continue
		}
		if msg.SetupComplete != nil {
			slog.Debug("setup complete")
			if s.cb.OnOpen != nil {
				s.cb.OnOpen()
			}
			continue
		}
		if msg.GoAway != nil {
			slog.Warn("server going away", "timeLeft", msg.GoAway.TimeLeft)
		}
		if msg.ServerContent != nil && s.cb.OnMessage != nil {
			s.cb.OnMessage(&msg.ServerMessage)
		}
	}
}

func (s *session) handleReadError(err error) {
	if s.isClosed() {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) && (ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway) {
		slog.Info("websocket closed by server", "code", ce.Code, "reason", ce.Text)
		if s.cb.OnClose != nil {
			s.cb.OnClose(ce.Text)
		}
		return
	}
	slog.Error("websocket read failed", "error", err)
	if s.cb.OnError != nil {
		s.cb.OnError(fmt.Errorf("read: %w", err))
	}
}

func (s *session) SendRealtimeInput(in transport.RealtimeInput) error {
	if s.isClosed() {
		return transport.ErrClosed
	}
	if in.Media == nil {
		return nil
	}
	return s.write(clientRealtimeInput{RealtimeInput: realtimeInput{Audio: in.Media}})
}

func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// WriteControl may run concurrently with a stalled write; it must not
	// wait on writeMu.
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

// modelName adds the "models/" prefix the protocol expects.
func modelName(model string) string {
	if model == "" {
		model = DefaultModel
	}
	if strings.HasPrefix(model, "models/") || strings.HasPrefix(model, "projects/") {
		return model
	}
	return "models/" + model
}
