// Package pcm converts between float32 audio samples and the 16-bit
// little-endian PCM wire format exchanged with the conversation service.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Scale is the multiplier applied to a [-1, 1] sample to produce an int16.
const Scale = 0x7FFF

// ErrOddLength is returned when a PCM payload does not hold whole samples.
var ErrOddLength = errors.New("pcm: odd byte length")

// MIMEType returns the media type for 16-bit PCM at the given sample rate,
// e.g. "audio/pcm;rate=16000".
func MIMEType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// FloatToInt16 converts a float sample to int16. Values at or beyond ±1.0
// are clamped instead of wrapping; NaN maps to silence.
func FloatToInt16(s float32) int16 {
	if s != s {
		return 0
	}
	v := math.Round(float64(s) * Scale)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Int16ToFloat converts an int16 sample back to the [-1, 1] range.
// It is the exact inverse of FloatToInt16 up to rounding; -32768 clamps to -1.
func Int16ToFloat(v int16) float32 {
	if v == math.MinInt16 {
		return -1
	}
	return float32(v) / Scale
}

// Encode packs samples as little-endian int16.
func Encode(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(FloatToInt16(s)))
	}
	return buf
}

// EncodeBase64 packs samples as little-endian int16 and base64 encodes the
// result for transport.
func EncodeBase64(samples []float32) string {
	return base64.StdEncoding.EncodeToString(Encode(samples))
}

// Decode unpacks little-endian int16 PCM into float samples.
func Decode(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = Int16ToFloat(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return out, nil
}

// DecodeBase64 reverses EncodeBase64.
func DecodeBase64(s string) ([]float32, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return Decode(data)
}

// Int16s unpacks little-endian PCM into raw int16 samples.
func Int16s(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out, nil
}

// PackInt16s packs raw int16 samples as little-endian bytes.
func PackInt16s(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// Int16sBase64 decodes base64 PCM into raw int16 samples.
func Int16sBase64(s string) ([]int16, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return Int16s(data)
}

// EncodeInt16sBase64 packs raw samples and base64 encodes them.
func EncodeInt16sBase64(samples []int16) string {
	return base64.StdEncoding.EncodeToString(PackInt16s(samples))
}
