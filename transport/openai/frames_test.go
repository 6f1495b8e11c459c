package openai

import (
	"errors"
	"testing"
)

func TestReframer(t *testing.T) {
	r := newReframer(16000)
	if r.size != 320 {
		t.Fatalf("frame size = %d, want 320", r.size)
	}

	var frames [][]int16
	emit := func(f []int16) error {
		frames = append(frames, append([]int16(nil), f...))
		return nil
	}

	// 4096 samples -> 12 frames of 320, 256 left over.
	chunk := make([]int16, 4096)
	for i := range chunk {
		chunk[i] = int16(i)
	}
	if err := r.push(chunk, emit); err != nil {
		t.Fatal(err)
	}
	if len(frames) != 12 {
		t.Fatalf("got %d frames, want 12", len(frames))
	}
	if len(r.buf) != 256 {
		t.Errorf("pending = %d, want 256", len(r.buf))
	}
	if frames[1][0] != 320 {
		t.Errorf("frame 1 starts at %d, want 320", frames[1][0])
	}

	// The next 64 samples complete frame 13 and continue the sequence.
	if err := r.push(make([]int16, 64), emit); err != nil {
		t.Fatal(err)
	}
	if len(frames) != 13 {
		t.Fatalf("got %d frames, want 13", len(frames))
	}
	if frames[12][0] != 3840 {
		t.Errorf("frame 12 starts at %d, want 3840", frames[12][0])
	}
}

func TestReframerEmitError(t *testing.T) {
	r := newReframer(8000)
	boom := errors.New("boom")
	err := r.push(make([]int16, 500), func([]int16) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("push err = %v, want boom", err)
	}
}

func TestCheckRate(t *testing.T) {
	for _, rate := range []int{8000, 16000, 24000, 48000} {
		if err := checkRate(rate); err != nil {
			t.Errorf("checkRate(%d) = %v", rate, err)
		}
	}
	if err := checkRate(44100); err == nil {
		t.Error("checkRate(44100) = nil, want error")
	}
}
