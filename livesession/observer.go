package livesession

// Observer receives pipeline counters. Implementations must be cheap and
// non-blocking; they are called from device and network callbacks.
type Observer interface {
	FrameCaptured()
	ChunkSent()
	ChunkDropped()
	BufferScheduled(seconds float64)
	Interrupted()
	TurnCompleted()
	StateChanged(state string)
	SessionFailed(kind string)
}

type nopObserver struct{}

func (nopObserver) FrameCaptured() {}
func (nopObserver) ChunkSent() {}
func (nopObserver) ChunkDropped() {}
func (nopObserver) BufferScheduled(float64) {}
func (nopObserver) Interrupted() {}
func (nopObserver) TurnCompleted() {}
func (nopObserver) StateChanged(string) {}
func (nopObserver) SessionFailed(string) {}
