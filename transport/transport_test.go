package transport

import (
	"encoding/json"
	"testing"
)

func TestServerMessageAccessors(t *testing.T) {
	tests := []struct {
		name          string
		json          string
		wantAudio     string
		wantInput     string
		wantOutput    string
		wantTurn      bool
		wantInterrupt bool
	}{
		{
			name:      "audio chunk",
			json:      `{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAA="}}]}}}`,
			wantAudio: "AAA=",
		},
		{
			name:      "user transcript",
			json:      `{"serverContent":{"inputTranscription":{"text":"Hello"}}}`,
			wantInput: "Hello",
		},
		{
			name:       "model transcript",
			json:       `{"serverContent":{"outputTranscription":{"text":" there"}}}`,
			wantOutput: " there",
		},
		{
			name:     "turn complete",
			json:     `{"serverContent":{"turnComplete":true}}`,
			wantTurn: true,
		},
		{
			name:          "interrupted",
			json:          `{"serverContent":{"interrupted":true}}`,
			wantInterrupt: true,
		},
		{
			name: "setup complete has no content",
			json: `{"setupComplete":{}}`,
		},
		{
			name: "text part without audio",
			json: `{"serverContent":{"modelTurn":{"parts":[{"text":"hi"}]}}}`,
		},
		{
			name: "empty parts",
			json: `{"serverContent":{"modelTurn":{"parts":[]}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m ServerMessage
			if err := json.Unmarshal([]byte(tt.json), &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := m.AudioData(); got != tt.wantAudio {
				t.Errorf("AudioData() = %q, want %q", got, tt.wantAudio)
			}
			if got := m.InputText(); got != tt.wantInput {
				t.Errorf("InputText() = %q, want %q", got, tt.wantInput)
			}
			if got := m.OutputText(); got != tt.wantOutput {
				t.Errorf("OutputText() = %q, want %q", got, tt.wantOutput)
			}
			if got := m.TurnComplete(); got != tt.wantTurn {
				t.Errorf("TurnComplete() = %v, want %v", got, tt.wantTurn)
			}
			if got := m.Interrupted(); got != tt.wantInterrupt {
				t.Errorf("Interrupted() = %v, want %v", got, tt.wantInterrupt)
			}
		})
	}
}

func TestNilServerMessage(t *testing.T) {
	var m *ServerMessage
	if m.AudioData() != "" || m.InputText() != "" || m.OutputText() != "" || m.TurnComplete() || m.Interrupted() {
		t.Error("nil message accessors should return zero values")
	}
}

func TestAudioMessage(t *testing.T) {
	m := AudioMessage("audio/pcm;rate=24000", "AQID")
	if m.AudioData() != "AQID" {
		t.Errorf("AudioData() = %q, want %q", m.AudioData(), "AQID")
	}
}
