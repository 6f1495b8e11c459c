package openai

import (
	"sync"

	"go.aimuz.me/speakup/transport"
)

// turnGate holds back response.done while the user's speech that the
// response answers is still being transcribed. Input transcription runs
// asynchronously, so without the gate its late deltas would land in the
// next turn.
type turnGate struct {
	mu      sync.Mutex
	track   bool                // input transcription is enabled
	pending map[string]struct{} // committed items not yet transcribed
	waitFor map[string]struct{} // items the held turn waits on
	held    bool
}

func newTurnGate(inputTranscription bool) *turnGate {
	return &turnGate{
		track:   inputTranscription,
		pending: make(map[string]struct{}),
		waitFor: make(map[string]struct{}),
	}
}

// messages maps e to the messages to deliver now, releasing a held turn
// once its transcriptions have finished.
func (g *turnGate) messages(e Event) []*transport.ServerMessage {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch e := e.(type) {
	case InputCommittedEvent:
		if g.track && e.ItemID != "" {
			g.pending[e.ItemID] = struct{}{}
		}
		return nil

	case InputTranscriptDoneEvent:
		delete(g.pending, e.ItemID)
		delete(g.waitFor, e.ItemID)
		if g.held && len(g.waitFor) == 0 {
			g.held = false
			return []*transport.ServerMessage{turnComplete()}
		}
		return nil

	case ResponseDoneEvent:
		var out []*transport.ServerMessage
		if g.held {
			// A second response ends the first turn regardless.
			out = append(out, turnComplete())
			g.held = false
		}
		if len(g.pending) == 0 {
			return append(out, turnComplete())
		}
		clear(g.waitFor)
		for id := range g.pending {
			g.waitFor[id] = struct{}{}
		}
		g.held = true
		return out
	}

	if m := ServerMessage(e); m != nil {
		return []*transport.ServerMessage{m}
	}
	return nil
}

func turnComplete() *transport.ServerMessage {
	return &transport.ServerMessage{ServerContent: &transport.ServerContent{TurnComplete: true}}
}
