package engine

import (
	"context"

	"github.com/go-burattino/burattino/pkg/conversation"
	"github.com/go-burattino/burattino/pkg/events"
)

// Engine streams one model response for a conversation. Implementations
// handle provider-specific transport (OpenAI-compatible, Anthropic-compatible,
// GLM-compatible) and publish start/partial/thinking/interrupt events through
// the configured sinks while streaming. The orchestrator depends only on this
// capability, never on concrete provider types.
type Engine interface {
	RunInference(ctx context.Context, messages conversation.Conversation) (*Response, error)
}

// Response is the terminal outcome of one stream: the full accumulated raw
// text (directives included), any out-of-band reasoning text, and whatever
// usage metadata the provider reported.
type Response struct {
	Text       string
	Reasoning  string
	Usage      *events.Usage
	StopReason string
	Metadata   events.EventMetadata
}
