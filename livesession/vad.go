package livesession

import (
	"math"
	"time"
)

// SpeechMeter is an RMS voice activity detector over captured frames. It
// only reports whether the user is speaking; it never gates sending, since
// turn-taking is decided by the remote service.
type SpeechMeter struct {
	threshold  float32
	hangover   time.Duration
	sampleRate int

	inSpeech bool
	silence  time.Duration // Audio time since the last loud frame
}

// NewSpeechMeter creates a meter. Speech ends after hangover of audio
// below threshold.
func NewSpeechMeter(threshold float32, hangover time.Duration, sampleRate int) *SpeechMeter {
	return &SpeechMeter{
		threshold:  threshold,
		hangover:   hangover,
		sampleRate: sampleRate,
	}
}

// Process consumes one frame. It reports the current speaking state and
// whether it changed with this frame.
func (m *SpeechMeter) Process(samples []float32) (speaking, changed bool) {
	if len(samples) == 0 || m.sampleRate <= 0 {
		return m.inSpeech, false
	}
	dur := time.Duration(len(samples)) * time.Second / time.Duration(m.sampleRate)

	if calculateRMS(samples) > m.threshold {
		m.silence = 0
		if !m.inSpeech {
			m.inSpeech = true
			return true, true
		}
		return true, false
	}

	if !m.inSpeech {
		return false, false
	}
	m.silence += dur
	if m.silence >= m.hangover {
		m.inSpeech = false
		m.silence = 0
		return false, true
	}
	return true, false
}

// Speaking reports whether speech is in progress.
func (m *SpeechMeter) Speaking() bool {
	return m.inSpeech
}

// Reset returns to silence.
func (m *SpeechMeter) Reset() {
	m.inSpeech = false
	m.silence = 0
}

func calculateRMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
