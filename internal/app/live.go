package app

import (
	"context"

	"go.aimuz.me/speakup/livesession"
)

// Forward delivers controller events to handle until ctx is cancelled or
// handle returns false. It blocks; the controller's channel is never closed.
func Forward(ctx context.Context, events <-chan livesession.Event, handle func(livesession.Event) bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			if !handle(e) {
				return
			}
		}
	}
}
