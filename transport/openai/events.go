package openai

import (
	"encoding/json"

	"go.aimuz.me/speakup/transport"
)

// Server event types consumed by the session.
const (
	EventInputTranscriptDelta  = "conversation.item.input_audio_transcription.delta"
	EventOutputTranscriptDelta = "response.output_audio_transcript.delta"
	EventAudioTranscriptDelta  = "response.audio_transcript.delta" // beta name
	EventInputTranscriptDone   = "conversation.item.input_audio_transcription.completed"
	EventInputTranscriptFailed = "conversation.item.input_audio_transcription.failed"
	EventResponseDone          = "response.done"
	EventSpeechStarted         = "input_audio_buffer.speech_started"
	EventInputCommitted        = "input_audio_buffer.committed"
	EventSessionUpdated        = "session.updated"
	EventError                 = "error"
)

// DefaultTranscriptionModel transcribes the user's side of the call.
const DefaultTranscriptionModel = "gpt-4o-mini-transcribe"

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string `json:"type"`
	CreateResponse    bool   `json:"create_response"`
	InterruptResponse bool   `json:"interrupt_response"`
}

// SessionUpdate is the client event that finishes session setup.
type SessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionParams `json:"session"`
}

// SessionParams are the session fields we set after connecting.
type SessionParams struct {
	Type         string      `json:"type"`
	Instructions string      `json:"instructions,omitempty"`
	Audio        AudioParams `json:"audio"`
}

// AudioParams groups input and output audio settings.
type AudioParams struct {
	Input  InputAudio  `json:"input"`
	Output OutputAudio `json:"output"`
}

// InputAudio configures the microphone side.
type InputAudio struct {
	Transcription *Transcription `json:"transcription,omitempty"`
	TurnDetection TurnDetection  `json:"turn_detection"`
}

// Transcription selects the user transcript model.
type Transcription struct {
	Model string `json:"model"`
}

// OutputAudio configures the synthesized voice.
type OutputAudio struct {
	Voice string `json:"voice,omitempty"`
}

// NewSessionUpdate builds the session.update for cfg.
func NewSessionUpdate(cfg transport.Config) SessionUpdate {
	u := SessionUpdate{
		Type: "session.update",
		Session: SessionParams{
			Type:         "realtime",
			Instructions: cfg.SystemInstruction,
			Audio: AudioParams{
				Input: InputAudio{
					TurnDetection: TurnDetection{
						Type:              "server_vad",
						CreateResponse:    true,
						InterruptResponse: true,
					},
				},
				Output: OutputAudio{Voice: cfg.Voice},
			},
		},
	}
	if cfg.InputTranscription {
		u.Session.Audio.Input.Transcription = &Transcription{Model: DefaultTranscriptionModel}
	}
	return u
}

// Event is a discriminated union for Realtime API events.
// Check the concrete type via type switch.
type Event interface {
	eventType() string
}

// TranscriptDeltaEvent is a streaming transcript fragment for either side.
type TranscriptDeltaEvent struct {
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	ItemID     string `json:"item_id"`
	ContentIdx int    `json:"content_index"`
	Delta      string `json:"delta"`
}

func (e TranscriptDeltaEvent) eventType() string { return e.Type }

// User reports whether the fragment transcribes the microphone.
func (e TranscriptDeltaEvent) User() bool { return e.Type == EventInputTranscriptDelta }

// InputTranscriptDoneEvent ends the transcription of one user item,
// successfully or not. It arrives asynchronously and may follow the
// response that answers the item.
type InputTranscriptDoneEvent struct {
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
}

func (e InputTranscriptDoneEvent) eventType() string { return e.Type }

// Failed reports whether transcription failed for the item.
func (e InputTranscriptDoneEvent) Failed() bool { return e.Type == EventInputTranscriptFailed }

// InputCommittedEvent is emitted when server VAD commits the user's speech
// as a conversation item.
type InputCommittedEvent struct {
	EventID string `json:"event_id"`
	ItemID  string `json:"item_id"`
}

func (InputCommittedEvent) eventType() string { return EventInputCommitted }

// ResponseDoneEvent marks the end of a model response.
type ResponseDoneEvent struct {
	EventID  string `json:"event_id"`
	Response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"response"`
}

func (ResponseDoneEvent) eventType() string { return EventResponseDone }

// SpeechStartedEvent is emitted when server VAD hears the user.
type SpeechStartedEvent struct {
	EventID      string `json:"event_id"`
	AudioStartMs int    `json:"audio_start_ms"`
	ItemID       string `json:"item_id"`
}

func (SpeechStartedEvent) eventType() string { return EventSpeechStarted }

// ErrorEvent is emitted when an API error occurs.
type ErrorEvent struct {
	EventID string `json:"event_id"`
	Error   struct {
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message"`
		Param   string `json:"param,omitempty"`
	} `json:"error"`
}

func (ErrorEvent) eventType() string { return EventError }

// UnknownEvent holds events we don't act on.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) eventType() string { return e.Type }

// ParseEvent unmarshals JSON into the appropriate Event type.
func ParseEvent(data []byte) (Event, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, err
	}

	switch header.Type {
	case EventInputTranscriptDelta, EventOutputTranscriptDelta, EventAudioTranscriptDelta:
		var e TranscriptDeltaEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventInputTranscriptDone, EventInputTranscriptFailed:
		var e InputTranscriptDoneEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventInputCommitted:
		var e InputCommittedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventResponseDone:
		var e ResponseDoneEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventSpeechStarted:
		var e SpeechStartedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventError:
		var e ErrorEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return UnknownEvent{Type: header.Type, Raw: data}, nil
	}
}

// ServerMessage maps an event onto the common message shape. It returns nil
// for events that carry nothing the session consumes.
func ServerMessage(e Event) *transport.ServerMessage {
	switch e := e.(type) {
	case TranscriptDeltaEvent:
		if e.Delta == "" {
			return nil
		}
		tr := &transport.Transcription{Text: e.Delta}
		if e.User() {
			return &transport.ServerMessage{ServerContent: &transport.ServerContent{InputTranscription: tr}}
		}
		return &transport.ServerMessage{ServerContent: &transport.ServerContent{OutputTranscription: tr}}
	case ResponseDoneEvent:
		return &transport.ServerMessage{ServerContent: &transport.ServerContent{TurnComplete: true}}
	case SpeechStartedEvent:
		return &transport.ServerMessage{ServerContent: &transport.ServerContent{Interrupted: true}}
	}
	return nil
}
