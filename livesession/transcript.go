package livesession

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"go.aimuz.me/speakup/internal/types"
)

// Placeholder text for the silent side of a completed turn.
const (
	PlaceholderUser  = "(no speech)"
	PlaceholderModel = "(no response)"
)

// LanguageDetector tags finalized text with an ISO 639-1 code, or "".
type LanguageDetector interface {
	Detect(text string) string
}

// Assembler accumulates transcript fragments for the current turn and
// appends a user/model message pair to the log when the turn completes.
type Assembler struct {
	classifier *Classifier
	detector   LanguageDetector

	// Overridable in tests.
	now   func() time.Time
	newID func() string

	mu   sync.Mutex
	live types.LiveTranscript
	log  []types.Message
}

// NewAssembler creates an Assembler that forwards the model transcript to
// classifier. detector may be nil.
func NewAssembler(classifier *Classifier, detector LanguageDetector) *Assembler {
	if classifier == nil {
		classifier = &Classifier{}
	}
	return &Assembler{
		classifier: classifier,
		detector:   detector,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// AppendUser appends a user transcript fragment and returns the live state.
func (a *Assembler) AppendUser(delta string) types.LiveTranscript {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.live.User += delta
	return a.live
}

// AppendModel appends a model transcript fragment, re-classifies the whole
// model text so far and returns the live state plus any new feedback.
func (a *Assembler) AppendModel(delta string) (types.LiveTranscript, *types.Feedback) {
	a.mu.Lock()
	a.live.Model += delta
	live := a.live
	a.mu.Unlock()

	if fb, ok := a.classifier.Classify(live.Model); ok {
		return live, &fb
	}
	return live, nil
}

// CompleteTurn finalizes the turn. If either side spoke it appends and
// returns a user message followed by a model message; either way the
// accumulators are cleared.
func (a *Assembler) CompleteTurn() []types.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	live := a.live
	a.live = types.LiveTranscript{}
	if live.Empty() {
		return nil
	}

	now := a.now()
	pair := []types.Message{
		a.message(types.RoleUser, live.User, PlaceholderUser, now),
		a.message(types.RoleModel, live.Model, PlaceholderModel, now),
	}
	a.log = append(a.log, pair...)
	return pair
}

func (a *Assembler) message(role types.Role, text, placeholder string, ts time.Time) types.Message {
	m := types.Message{ID: a.newID(), Role: role, Text: text, Timestamp: ts}
	if text == "" {
		m.Text = placeholder
		return m
	}
	if a.detector != nil {
		m.Language = a.detector.Detect(text)
	}
	return m
}

// Live returns the in-progress transcript.
func (a *Assembler) Live() types.LiveTranscript {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// Messages returns a copy of the conversation log.
func (a *Assembler) Messages() []types.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.Message, len(a.log))
	copy(out, a.log)
	return out
}

// Len returns the number of logged messages.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.log)
}

// Reset starts a new conversation: log, accumulators and feedback are cleared.
func (a *Assembler) Reset() {
	a.mu.Lock()
	a.live = types.LiveTranscript{}
	a.log = nil
	a.mu.Unlock()
	a.classifier.Reset()
}
