package openai

import (
	"encoding/json"
	"testing"

	"go.aimuz.me/speakup/transport"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name      string
		json      string
		wantType  string
		wantErr   bool
		checkFunc func(t *testing.T, e Event)
	}{
		{
			name: "InputTranscriptDelta",
			json: `{
				"type": "conversation.item.input_audio_transcription.delta",
				"event_id": "evt_1",
				"item_id": "item_1",
				"content_index": 0,
				"delta": "I goed"
			}`,
			wantType: EventInputTranscriptDelta,
			checkFunc: func(t *testing.T, e Event) {
				de, ok := e.(TranscriptDeltaEvent)
				if !ok {
					t.Fatalf("got %T, want TranscriptDeltaEvent", e)
				}
				if !de.User() {
					t.Error("User() = false, want true")
				}
				if de.Delta != "I goed" {
					t.Errorf("Delta = %q, want %q", de.Delta, "I goed")
				}
			},
		},
		{
			name: "OutputTranscriptDelta",
			json: `{
				"type": "response.output_audio_transcript.delta",
				"event_id": "evt_2",
				"delta": "Nice"
			}`,
			wantType: EventOutputTranscriptDelta,
			checkFunc: func(t *testing.T, e Event) {
				de, ok := e.(TranscriptDeltaEvent)
				if !ok {
					t.Fatalf("got %T, want TranscriptDeltaEvent", e)
				}
				if de.User() {
					t.Error("User() = true, want false")
				}
			},
		},
		{
			name:     "ResponseDone",
			json:     `{"type": "response.done", "event_id": "evt_3", "response": {"id": "resp_1", "status": "completed"}}`,
			wantType: EventResponseDone,
			checkFunc: func(t *testing.T, e Event) {
				rd, ok := e.(ResponseDoneEvent)
				if !ok {
					t.Fatalf("got %T, want ResponseDoneEvent", e)
				}
				if rd.Response.Status != "completed" {
					t.Errorf("Status = %q, want completed", rd.Response.Status)
				}
			},
		},
		{
			name:     "InputCommitted",
			json:     `{"type": "input_audio_buffer.committed", "event_id": "evt_4", "item_id": "item_1"}`,
			wantType: EventInputCommitted,
			checkFunc: func(t *testing.T, e Event) {
				if ce, ok := e.(InputCommittedEvent); !ok || ce.ItemID != "item_1" {
					t.Errorf("got %+v, want InputCommittedEvent for item_1", e)
				}
			},
		},
		{
			name:     "InputTranscriptFailed",
			json:     `{"type": "conversation.item.input_audio_transcription.failed", "event_id": "evt_5", "item_id": "item_1"}`,
			wantType: EventInputTranscriptFailed,
			checkFunc: func(t *testing.T, e Event) {
				de, ok := e.(InputTranscriptDoneEvent)
				if !ok {
					t.Fatalf("got %T, want InputTranscriptDoneEvent", e)
				}
				if !de.Failed() {
					t.Error("Failed() = false, want true")
				}
			},
		},
		{
			name: "Error",
			json: `{
				"type": "error",
				"event_id": "evt_err",
				"error": {
					"type": "invalid_request_error",
					"message": "Invalid API key"
				}
			}`,
			wantType: EventError,
			checkFunc: func(t *testing.T, e Event) {
				ee, ok := e.(ErrorEvent)
				if !ok {
					t.Fatalf("got %T, want ErrorEvent", e)
				}
				if ee.Error.Message != "Invalid API key" {
					t.Errorf("Error.Message = %q", ee.Error.Message)
				}
			},
		},
		{
			name:     "UnknownType",
			json:     `{"type": "rate_limits.updated", "event_id": "evt_u"}`,
			wantType: "rate_limits.updated",
		},
		{
			name:    "Malformed",
			json:    `{"type":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseEvent([]byte(tt.json))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if e.eventType() != tt.wantType {
				t.Errorf("eventType() = %q, want %q", e.eventType(), tt.wantType)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, e)
			}
		})
	}
}

func TestServerMessage(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		check func(t *testing.T, m *transport.ServerMessage)
	}{
		{
			name:  "user delta",
			event: TranscriptDeltaEvent{Type: EventInputTranscriptDelta, Delta: "hello"},
			check: func(t *testing.T, m *transport.ServerMessage) {
				if m.InputText() != "hello" || m.OutputText() != "" {
					t.Errorf("input=%q output=%q", m.InputText(), m.OutputText())
				}
			},
		},
		{
			name:  "model delta beta name",
			event: TranscriptDeltaEvent{Type: EventAudioTranscriptDelta, Delta: "hi"},
			check: func(t *testing.T, m *transport.ServerMessage) {
				if m.OutputText() != "hi" {
					t.Errorf("output=%q, want hi", m.OutputText())
				}
			},
		},
		{
			name:  "response done",
			event: ResponseDoneEvent{},
			check: func(t *testing.T, m *transport.ServerMessage) {
				if !m.TurnComplete() {
					t.Error("TurnComplete() = false")
				}
			},
		},
		{
			name:  "speech started",
			event: SpeechStartedEvent{},
			check: func(t *testing.T, m *transport.ServerMessage) {
				if !m.Interrupted() {
					t.Error("Interrupted() = false")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ServerMessage(tt.event)
			if m == nil {
				t.Fatal("ServerMessage() = nil")
			}
			tt.check(t, m)
		})
	}

	for _, e := range []Event{
		TranscriptDeltaEvent{Type: EventInputTranscriptDelta},
		ErrorEvent{},
		UnknownEvent{Type: "session.created"},
	} {
		if m := ServerMessage(e); m != nil {
			t.Errorf("ServerMessage(%T) = %+v, want nil", e, m)
		}
	}
}

func TestNewSessionUpdate(t *testing.T) {
	u := NewSessionUpdate(transport.Config{
		SystemInstruction:  "You are a tutor.",
		Voice:              "marin",
		InputTranscription: true,
	})
	data, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}

	var got struct {
		Type    string `json:"type"`
		Session struct {
			Instructions string `json:"instructions"`
			Audio        struct {
				Input struct {
					Transcription struct {
						Model string `json:"model"`
					} `json:"transcription"`
					TurnDetection struct {
						Type string `json:"type"`
					} `json:"turn_detection"`
				} `json:"input"`
				Output struct {
					Voice string `json:"voice"`
				} `json:"output"`
			} `json:"audio"`
		} `json:"session"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "session.update" {
		t.Errorf("type = %q", got.Type)
	}
	if got.Session.Instructions != "You are a tutor." {
		t.Errorf("instructions = %q", got.Session.Instructions)
	}
	if got.Session.Audio.Output.Voice != "marin" {
		t.Errorf("voice = %q", got.Session.Audio.Output.Voice)
	}
	if got.Session.Audio.Input.Transcription.Model != DefaultTranscriptionModel {
		t.Errorf("transcription model = %q", got.Session.Audio.Input.Transcription.Model)
	}
	if got.Session.Audio.Input.TurnDetection.Type != "server_vad" {
		t.Errorf("turn_detection = %q", got.Session.Audio.Input.TurnDetection.Type)
	}

	bare := NewSessionUpdate(transport.Config{})
	if bare.Session.Audio.Input.Transcription != nil {
		t.Error("transcription set without InputTranscription")
	}
}
