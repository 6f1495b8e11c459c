// Package types provides shared type definitions for the application.
package types

import "time"

// Role identifies the speaker of a conversation message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one finalized utterance in the conversation log.
// Messages are immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Language  string    `json:"language,omitempty"` // ISO 639-1 code, empty if unknown
	Timestamp time.Time `json:"timestamp"`
}

// Category classifies a piece of tutor feedback.
type Category string

const (
	CategoryGrammar         Category = "Grammar"
	CategoryPronunciation   Category = "Pronunciation"
	CategoryNaturalPhrasing Category = "NaturalPhrasing"
	CategoryGeneral         Category = "General"
)

// Feedback is the most recent categorized remark extracted from the
// assistant's transcript.
type Feedback struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

// LiveTranscript is the in-progress text of the current turn for both speakers.
type LiveTranscript struct {
	User  string `json:"user"`
	Model string `json:"model"`
}

// Empty reports whether neither speaker has produced text this turn.
func (t LiveTranscript) Empty() bool {
	return t.User == "" && t.Model == ""
}

// ─────────────────────────────────────────────────────────────────────────────
// Session Status
// ─────────────────────────────────────────────────────────────────────────────

// Status is a point-in-time snapshot of a conversation session.
type Status struct {
	State          string `json:"state"`
	Backend        string `json:"backend"`
	LastError      string `json:"lastError,omitempty"`
	Duration       int64  `json:"duration"` // Running duration in seconds
	Speaking       bool   `json:"speaking"` // User speech detected on the microphone
	FramesCaptured uint64 `json:"framesCaptured"`
	ChunksSent     uint64 `json:"chunksSent"`
	ChunksDropped  uint64 `json:"chunksDropped"`
	BuffersPlayed  uint64 `json:"buffersPlayed"`
	Interruptions  uint64 `json:"interruptions"`
	Turns          uint64 `json:"turns"`
	MessageCount   int    `json:"messageCount"`
}
