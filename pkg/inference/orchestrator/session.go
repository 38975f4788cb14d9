package orchestrator

import (
	"github.com/google/uuid"

	"github.com/go-burattino/burattino/pkg/conversation"
	"github.com/go-burattino/burattino/pkg/tools"
)

// StreamSession is the per-turn state of the orchestration loop. It is
// created when a turn starts and discarded when the loop terminates, whether
// by success, ceiling or transport failure. The tool-call tracker lives here
// so concurrent turns can never share call state.
type StreamSession struct {
	TurnID      string
	Iteration   int
	Accumulated string
	Messages    conversation.Conversation
	Tracker     *tools.Tracker

	// notified records call identities whose terminal notification has gone
	// out, so a replayed identity never produces a second one.
	notified map[string]bool
}

func NewStreamSession(messages conversation.Conversation) *StreamSession {
	return &StreamSession{
		TurnID:   uuid.NewString(),
		Messages: messages,
		Tracker:  tools.NewTracker(),
		notified: make(map[string]bool),
	}
}
