package livesession

import (
	"strings"
	"sync"

	"go.aimuz.me/speakup/internal/types"
)

type marker struct {
	category types.Category
	tag      string
}

// markers in priority order.
var markers = []marker{
	{types.CategoryGrammar, "[Grammar]"},
	{types.CategoryPronunciation, "[Pronunciation]"},
	{types.CategoryNaturalPhrasing, "[Natural Phrasing]"},
}

// FeedbackMarkers returns the tags the assistant is asked to use, in
// priority order. Prompts embed them verbatim.
func FeedbackMarkers() []string {
	tags := make([]string, len(markers))
	for i, m := range markers {
		tags[i] = m.tag
	}
	return tags
}

// ParseFeedback finds the highest-priority marker present in text and
// returns the trimmed text following it, up to the next marker of any
// kind. Position in the text does not affect priority.
func ParseFeedback(text string) (types.Feedback, bool) {
	for _, m := range markers {
		i := strings.Index(text, m.tag)
		if i < 0 {
			continue
		}
		rest := text[i+len(m.tag):]
		end := len(rest)
		for _, other := range markers {
			if j := strings.Index(rest, other.tag); j >= 0 && j < end {
				end = j
			}
		}
		return types.Feedback{Category: m.category, Text: strings.TrimSpace(rest[:end])}, true
	}
	return types.Feedback{}, false
}

// Classifier keeps the most recent feedback found in the model transcript.
type Classifier struct {
	mu     sync.Mutex
	latest *types.Feedback
}

// Classify scans the full model transcript of the current turn. When a
// marker is found the result replaces the previous feedback whatever its
// category; otherwise the previous feedback stays.
func (c *Classifier) Classify(transcript string) (types.Feedback, bool) {
	fb, ok := ParseFeedback(transcript)
	if !ok {
		return types.Feedback{}, false
	}
	c.mu.Lock()
	c.latest = &fb
	c.mu.Unlock()
	return fb, true
}

// Latest returns the retained feedback, if any.
func (c *Classifier) Latest() (types.Feedback, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return types.Feedback{}, false
	}
	return *c.latest, true
}

// Reset forgets the retained feedback.
func (c *Classifier) Reset() {
	c.mu.Lock()
	c.latest = nil
	c.mu.Unlock()
}
