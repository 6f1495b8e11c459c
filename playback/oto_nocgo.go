//go:build !cgo

package playback

// Speaker is unavailable without cgo.
type Speaker struct {
	*Mixer
}

// OpenSpeaker returns ErrUnsupported when built without cgo.
func OpenSpeaker(cfg Config) (*Speaker, error) {
	return nil, ErrUnsupported
}
