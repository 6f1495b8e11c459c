package geminiws

import "go.aimuz.me/speakup/transport"

// Client messages.

type clientSetup struct {
	Setup Setup `json:"setup"`
}

// Setup is the first message on a new connection.
type Setup struct {
	Model                    string           `json:"model"`
	GenerationConfig         GenerationConfig `json:"generationConfig"`
	SystemInstruction        *Instruction     `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
}

// GenerationConfig selects the reply modality and voice.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

type SpeechConfig struct {
	VoiceConfig VoiceConfig `json:"voiceConfig"`
}

type VoiceConfig struct {
	PrebuiltVoiceConfig PrebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// Instruction is a text-only content block.
type Instruction struct {
	Parts []transport.Part `json:"parts"`
}

type clientRealtimeInput struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	Audio *transport.Blob `json:"audio,omitempty"`
}

// NewSetup builds the setup message for cfg.
func NewSetup(cfg transport.Config) any {
	modality := string(cfg.Modality)
	if modality == "" {
		modality = string(transport.ModalityAudio)
	}
	s := Setup{
		Model:            modelName(cfg.Model),
		GenerationConfig: GenerationConfig{ResponseModalities: []string{modality}},
	}
	if cfg.Voice != "" {
		s.GenerationConfig.SpeechConfig = &SpeechConfig{
			VoiceConfig: VoiceConfig{PrebuiltVoiceConfig: PrebuiltVoiceConfig{VoiceName: cfg.Voice}},
		}
	}
	if cfg.SystemInstruction != "" {
		s.SystemInstruction = &Instruction{Parts: []transport.Part{{Text: cfg.SystemInstruction}}}
	}
	if cfg.InputTranscription {
		s.InputAudioTranscription = &struct{}{}
	}
	if cfg.OutputTranscription {
		s.OutputAudioTranscription = &struct{}{}
	}
	return clientSetup{Setup: s}
}

// Server messages.

type serverFrame struct {
	transport.ServerMessage
	SetupComplete *struct{} `json:"setupComplete,omitempty"`
	GoAway        *goAway   `json:"goAway,omitempty"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft"`
}
