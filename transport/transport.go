// Package transport defines the contract between a conversation session and
// the remote voice service. Backends live in subpackages.
package transport

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	ErrNotReady = errors.New("transport: session not ready")
	ErrClosed   = errors.New("transport: session closed")
)

// Modality names an output modality requested from the service.
type Modality string

const (
	ModalityAudio Modality = "AUDIO"
	ModalityText  Modality = "TEXT"
)

// Config configures a new session.
type Config struct {
	Model               string
	Modality            Modality // Requested output modality, default audio
	SystemInstruction   string   // Opaque behaviour instructions for the assistant
	Voice               string   // Synthesized voice identifier
	InputTranscription  bool     // Stream transcripts of the user's speech
	OutputTranscription bool     // Stream transcripts of the assistant's speech
	InputSampleRate     int      // Sample rate of submitted audio
	OutputSampleRate    int      // Sample rate the service replies with
}

// Callbacks receive session events. They may be invoked from any goroutine
// and may arrive after Close; receivers must re-check their own state.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(*ServerMessage)
	OnError   func(error)
	OnClose   func(reason string)
}

// Transport opens sessions with a remote voice service.
type Transport interface {
	// Name identifies the backend, e.g. "gemini".
	Name() string
	// Open starts connecting. It returns once the session handle exists;
	// OnOpen fires when the session is ready to receive input.
	Open(ctx context.Context, cfg Config, cb Callbacks) (Session, error)
}

// Session is a live connection.
type Session interface {
	// SendRealtimeInput submits one media chunk without waiting for
	// acknowledgement.
	SendRealtimeInput(in RealtimeInput) error
	// Close ends the session. It does not wait for the remote side.
	Close() error
}

// RealtimeInput is a chunk of realtime media.
type RealtimeInput struct {
	Media *Blob `json:"media,omitempty"`
}

// Blob is inline media. Data is base64 text, as on the wire.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// ServerMessage is one inbound message. Every field may be absent.
type ServerMessage struct {
	ServerContent *ServerContent `json:"serverContent,omitempty"`
}

// ServerContent carries the conversational payload of a message.
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
}

// Content is a list of parts produced by the model.
type Content struct {
	Parts []*Part `json:"parts,omitempty"`
}

// Part is a single piece of model output.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Transcription is an incremental transcript fragment.
type Transcription struct {
	Text string `json:"text"`
}

// AudioData returns modelTurn.parts[0].inlineData.data, or "" when absent.
func (m *ServerMessage) AudioData() string {
	if m == nil || m.ServerContent == nil || m.ServerContent.ModelTurn == nil {
		return ""
	}
	parts := m.ServerContent.ModelTurn.Parts
	if len(parts) == 0 || parts[0] == nil || parts[0].InlineData == nil {
		return ""
	}
	return parts[0].InlineData.Data
}

// InputText returns the user transcript delta, or "".
func (m *ServerMessage) InputText() string {
	if m == nil || m.ServerContent == nil || m.ServerContent.InputTranscription == nil {
		return ""
	}
	return m.ServerContent.InputTranscription.Text
}

// OutputText returns the model transcript delta, or "".
func (m *ServerMessage) OutputText() string {
	if m == nil || m.ServerContent == nil || m.ServerContent.OutputTranscription == nil {
		return ""
	}
	return m.ServerContent.OutputTranscription.Text
}

// TurnComplete reports the turn-boundary signal.
func (m *ServerMessage) TurnComplete() bool {
	return m != nil && m.ServerContent != nil && m.ServerContent.TurnComplete
}

// Interrupted reports the barge-in signal.
func (m *ServerMessage) Interrupted() bool {
	return m != nil && m.ServerContent != nil && m.ServerContent.Interrupted
}

// AudioMessage builds a message carrying one audio chunk.
func AudioMessage(mimeType, data string) *ServerMessage {
	return &ServerMessage{ServerContent: &ServerContent{
		ModelTurn: &Content{Parts: []*Part{{InlineData: &Blob{MIMEType: mimeType, Data: data}}}},
	}}
}
