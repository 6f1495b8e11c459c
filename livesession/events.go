package livesession

import "go.aimuz.me/speakup/internal/types"

// Event is a discriminated union of controller notifications.
// Check the concrete type via type switch.
type Event interface {
	eventName() string
}

// StateEvent reports a lifecycle transition. Err is set when entering Error.
type StateEvent struct {
	State State
	Err   error
}

func (StateEvent) eventName() string { return "state" }

// TranscriptEvent carries the in-progress transcript after each fragment,
// and an empty one when a turn completes.
type TranscriptEvent struct {
	Transcript types.LiveTranscript
}

func (TranscriptEvent) eventName() string { return "transcript" }

// MessageEvent carries a message appended to the conversation log.
type MessageEvent struct {
	Message types.Message
}

func (MessageEvent) eventName() string { return "message" }

// FeedbackEvent carries newly classified feedback.
type FeedbackEvent struct {
	Feedback types.Feedback
}

func (FeedbackEvent) eventName() string { return "feedback" }

// InterruptEvent reports barge-in; Stopped is the number of sources cut off.
type InterruptEvent struct {
	Stopped int
}

func (InterruptEvent) eventName() string { return "interrupt" }

// SpeakingEvent reports the microphone speech meter changing state.
type SpeakingEvent struct {
	Speaking bool
}

func (SpeakingEvent) eventName() string { return "speaking" }

// ResetEvent reports that the conversation log was cleared.
type ResetEvent struct{}

func (ResetEvent) eventName() string { return "reset" }
