package openai

import "fmt"

// Opus accepts only these input sample rates.
var opusRates = map[int]bool{8000: true, 12000: true, 16000: true, 24000: true, 48000: true}

// Frames are 20ms.
const framesPerSecond = 50

func checkRate(rate int) error {
	if !opusRates[rate] {
		return fmt.Errorf("opus: unsupported sample rate %d", rate)
	}
	return nil
}

// reframer slices arbitrary-length PCM chunks into fixed opus frames.
// Not safe for concurrent use.
type reframer struct {
	size int
	buf  []int16
}

func newReframer(rate int) *reframer {
	size := rate / framesPerSecond
	return &reframer{size: size, buf: make([]int16, 0, size)}
}

// push appends samples and calls emit once for each complete frame.
// The frame slice is reused after emit returns.
func (r *reframer) push(samples []int16, emit func([]int16) error) error {
	for len(samples) > 0 {
		n := min(r.size-len(r.buf), len(samples))
		r.buf = append(r.buf, samples[:n]...)
		samples = samples[n:]
		if len(r.buf) == r.size {
			if err := emit(r.buf); err != nil {
				r.buf = r.buf[:0]
				return err
			}
			r.buf = r.buf[:0]
		}
	}
	return nil
}
