package app

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.aimuz.me/speakup/hotkey"
	"go.aimuz.me/speakup/internal/types"
	"go.aimuz.me/speakup/livesession"
)

// Console renders controller events as lines of text.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// Banner prints the session header.
func (c *Console) Banner(backend string, hotkeys bool) {
	c.printf("speakup · %s\n", backend)
	if hotkeys {
		c.printf("%s start/stop · %s new conversation · Ctrl+C quit\n", hotkey.ComboToggle, hotkey.ComboReset)
	} else {
		c.printf("Ctrl+C quit\n")
	}
}

// Render prints one event. Live transcript fragments and meter changes are
// only logged at debug level; finalized messages and feedback are printed.
func (c *Console) Render(e livesession.Event) {
	switch e := e.(type) {
	case livesession.StateEvent:
		if e.Err != nil {
			c.printf("[%s] %v\n", e.State, e.Err)
			return
		}
		c.printf("[%s]\n", e.State)
	case livesession.MessageEvent:
		c.printf("%s\n", formatMessage(e.Message))
	case livesession.FeedbackEvent:
		c.printf("  >> %s: %s\n", feedbackLabel(e.Feedback.Category), e.Feedback.Text)
	case livesession.ResetEvent:
		c.printf("--- new conversation ---\n")
	case livesession.TranscriptEvent:
		slog.Debug("live transcript", "user", e.Transcript.User, "model", e.Transcript.Model)
	case livesession.InterruptEvent:
		slog.Debug("assistant interrupted", "stopped", e.Stopped)
	case livesession.SpeakingEvent:
		slog.Debug("speech activity", "speaking", e.Speaking)
	}
}

// Summary prints session counters on exit.
func (c *Console) Summary(st types.Status) {
	c.printf("turns: %d · interruptions: %d · audio chunks sent: %d (dropped %d)\n",
		st.Turns, st.Interruptions, st.ChunksSent, st.ChunksDropped)
}

func formatMessage(m types.Message) string {
	who := "you"
	if m.Role == types.RoleModel {
		who = "tutor"
	}
	line := fmt.Sprintf("%s %s: %s", m.Timestamp.Format(time.TimeOnly), who, m.Text)
	if m.Language != "" {
		line += " (" + m.Language + ")"
	}
	return line
}

func feedbackLabel(c types.Category) string {
	if c == types.CategoryNaturalPhrasing {
		return "Natural Phrasing"
	}
	return string(c)
}
