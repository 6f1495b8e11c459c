package openai

import (
	"slices"
	"testing"
)

// feed runs events through g and summarizes what was delivered: "u:" and
// "m:" for user and model text, "|" for a turn boundary.
func feed(g *turnGate, events ...Event) []string {
	var got []string
	for _, e := range events {
		for _, m := range g.messages(e) {
			switch {
			case m.InputText() != "":
				got = append(got, "u:"+m.InputText())
			case m.OutputText() != "":
				got = append(got, "m:"+m.OutputText())
			case m.TurnComplete():
				got = append(got, "|")
			}
		}
	}
	return got
}

func userDelta(item, text string) Event {
	return TranscriptDeltaEvent{Type: EventInputTranscriptDelta, ItemID: item, Delta: text}
}

func modelDelta(text string) Event {
	return TranscriptDeltaEvent{Type: EventOutputTranscriptDelta, Delta: text}
}

func transcribed(item string) Event {
	return InputTranscriptDoneEvent{Type: EventInputTranscriptDone, ItemID: item}
}

func TestTurnGate(t *testing.T) {
	tests := []struct {
		name   string
		track  bool
		events []Event
		want   []string
	}{
		{
			name:  "transcript before response",
			track: true,
			events: []Event{
				InputCommittedEvent{ItemID: "a"},
				userDelta("a", "I goed"),
				transcribed("a"),
				modelDelta("went"),
				ResponseDoneEvent{},
			},
			want: []string{"u:I goed", "m:went", "|"},
		},
		{
			name:  "late transcript stays in its turn",
			track: true,
			events: []Event{
				InputCommittedEvent{ItemID: "a"},
				modelDelta("went"),
				ResponseDoneEvent{},
				userDelta("a", "I goed"),
				transcribed("a"),
			},
			want: []string{"m:went", "u:I goed", "|"},
		},
		{
			name:  "failed transcription releases the turn",
			track: true,
			events: []Event{
				InputCommittedEvent{ItemID: "a"},
				ResponseDoneEvent{},
				InputTranscriptDoneEvent{Type: EventInputTranscriptFailed, ItemID: "a"},
			},
			want: []string{"|"},
		},
		{
			name:  "next response ends a held turn",
			track: true,
			events: []Event{
				InputCommittedEvent{ItemID: "a"},
				ResponseDoneEvent{},
				ResponseDoneEvent{},
			},
			want: []string{"|"},
		},
		{
			name:  "later commit does not hold the earlier turn",
			track: true,
			events: []Event{
				InputCommittedEvent{ItemID: "a"},
				ResponseDoneEvent{},
				InputCommittedEvent{ItemID: "b"},
				transcribed("a"),
			},
			want: []string{"|"},
		},
		{
			name:  "untracked without input transcription",
			track: false,
			events: []Event{
				InputCommittedEvent{ItemID: "a"},
				modelDelta("hi"),
				ResponseDoneEvent{},
			},
			want: []string{"m:hi", "|"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feed(newTurnGate(tt.track), tt.events...)
			if !slices.Equal(got, tt.want) {
				t.Errorf("delivered %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTurnGatePassesInterrupt(t *testing.T) {
	msgs := newTurnGate(true).messages(SpeechStartedEvent{})
	if len(msgs) != 1 || !msgs[0].Interrupted() {
		t.Errorf("messages(speech started) = %v, want one interrupt", msgs)
	}
}
