// Package livesession runs one live voice conversation: it owns the
// transport session and the audio devices, streams microphone audio out,
// schedules the assistant's audio for playback, and turns transcript
// fragments into a conversation log with tutor feedback.
package livesession

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a Controller.
type State int

const (
	Idle State = iota
	Connecting
	Active
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sentinel errors.
var (
	// ErrNotIdle is returned by Start while a session is connecting or active.
	ErrNotIdle = errors.New("livesession: session already running")
	// ErrStopped is returned by Start when Stop interrupted it.
	ErrStopped = errors.New("livesession: stopped while starting")
)

// ErrorKind classifies fatal session failures.
type ErrorKind int

const (
	// KindPermission: microphone access was denied.
	KindPermission ErrorKind = iota + 1
	// KindDevice: an audio device failed to open, or audio failed to decode or play.
	KindDevice
	// KindTransport: the remote session failed.
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindDevice:
		return "device"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// SessionError is the error that moved a session into the Error state.
type SessionError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// KindOf returns the kind of a *SessionError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
