package events

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// Text completion lifecycle for a single stream iteration.
	EventTypeStart             EventType = "start"
	EventTypePartialCompletion EventType = "partial"
	// Separate partial stream for reasoning/thinking text.
	EventTypePartialThinking EventType = "partial-thinking"
	EventTypeFinal           EventType = "final"
	EventTypeInterrupt       EventType = "interrupt"
	EventTypeError           EventType = "error"

	// Tool lifecycle. A call emits exactly one started event followed by
	// exactly one terminal (completed or failed) event.
	EventTypeToolCallStarted   EventType = "tool-call-started"
	EventTypeToolCallCompleted EventType = "tool-call-completed"
	EventTypeToolCallFailed    EventType = "tool-call-failed"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata correlates events with the turn and stream they belong to.
type EventMetadata struct {
	LLMInferenceData
	ID        uuid.UUID `json:"message_id" yaml:"message_id"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	TurnID    string    `json:"turn_id,omitempty" yaml:"turn_id,omitempty"`
	Iteration int       `json:"iteration,omitempty" yaml:"iteration,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if em.Iteration > 0 {
		e.Int("iteration", em.Iteration)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.StopReason != nil && *em.StopReason != "" {
		e.Str("stop_reason", *em.StopReason)
	}
	if em.Usage != nil {
		e.Int("input_tokens", em.Usage.InputTokens)
		e.Int("output_tokens", em.Usage.OutputTokens)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// raw JSON this event was deserialized from, if any
	payload []byte
}

func (e *EventImpl) Type() EventType         { return e.Type_ }
func (e *EventImpl) Metadata() EventMetadata { return e.Metadata_ }
func (e *EventImpl) Payload() []byte         { return e.payload }

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

var _ Event = &EventImpl{}

type EventStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventStart {
	return &EventStart{EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata}}
}

// EventPartialCompletion carries a visible text fragment. Delta is the new
// fragment; Completion is the full visible text forwarded so far.
type EventPartialCompletion struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl:  EventImpl{Type_: EventTypePartialCompletion, Metadata_: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

// EventThinkingPartial mirrors EventPartialCompletion for reasoning text.
type EventThinkingPartial struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewThinkingPartialEvent(metadata EventMetadata, delta string, completion string) *EventThinkingPartial {
	return &EventThinkingPartial{
		EventImpl:  EventImpl{Type_: EventTypePartialThinking, Metadata_: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata}, Text: text}
}

type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{EventImpl: EventImpl{Type_: EventTypeInterrupt, Metadata_: metadata}, Text: text}
}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{EventImpl: EventImpl{Type_: EventTypeError, Metadata_: metadata}, ErrorString: err.Error()}
}

// ToolCallInfo identifies one tool call across its lifecycle events.
// CallID is the call's identity key (tool name + canonical parameter JSON).
type ToolCallInfo struct {
	CallID     string         `json:"call_id"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

func (tc ToolCallInfo) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("call_id", tc.CallID).Str("name", tc.Name)
}

type EventToolCallStarted struct {
	EventImpl
	ToolCall ToolCallInfo `json:"tool_call"`
}

func NewToolCallStartedEvent(metadata EventMetadata, toolCall ToolCallInfo) *EventToolCallStarted {
	return &EventToolCallStarted{
		EventImpl: EventImpl{Type_: EventTypeToolCallStarted, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

type EventToolCallCompleted struct {
	EventImpl
	ToolCall   ToolCallInfo `json:"tool_call"`
	Result     string       `json:"result"`
	DurationMs int64        `json:"duration_ms"`
}

func NewToolCallCompletedEvent(metadata EventMetadata, toolCall ToolCallInfo, result string, durationMs int64) *EventToolCallCompleted {
	return &EventToolCallCompleted{
		EventImpl:  EventImpl{Type_: EventTypeToolCallCompleted, Metadata_: metadata},
		ToolCall:   toolCall,
		Result:     result,
		DurationMs: durationMs,
	}
}

type EventToolCallFailed struct {
	EventImpl
	ToolCall ToolCallInfo `json:"tool_call"`
	Error    string       `json:"error"`
}

func NewToolCallFailedEvent(metadata EventMetadata, toolCall ToolCallInfo, errorString string) *EventToolCallFailed {
	return &EventToolCallFailed{
		EventImpl: EventImpl{Type_: EventTypeToolCallFailed, Metadata_: metadata},
		ToolCall:  toolCall,
		Error:     errorString,
	}
}

func (e EventPartialCompletion) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("delta", e.Delta)
}

func (e EventFinal) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("text", e.Text)
}

func (e EventError) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("error", e.ErrorString)
}

func (e EventToolCallStarted) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Object("tool_call", e.ToolCall)
}

// NewEventFromJson decodes a serialized event back into its typed form so
// watermill subscribers can dispatch on the concrete type.
func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "decode event header")
	}
	e.payload = b

	switch e.Type_ {
	case EventTypeStart:
		return toTyped[EventStart](e)
	case EventTypePartialCompletion:
		return toTyped[EventPartialCompletion](e)
	case EventTypePartialThinking:
		return toTyped[EventThinkingPartial](e)
	case EventTypeFinal:
		return toTyped[EventFinal](e)
	case EventTypeInterrupt:
		return toTyped[EventInterrupt](e)
	case EventTypeError:
		return toTyped[EventError](e)
	case EventTypeToolCallStarted:
		return toTyped[EventToolCallStarted](e)
	case EventTypeToolCallCompleted:
		return toTyped[EventToolCallCompleted](e)
	case EventTypeToolCallFailed:
		return toTyped[EventToolCallFailed](e)
	}

	return e, nil
}

func toTyped[T any](e Event) (*T, error) {
	var ret *T
	if err := json.Unmarshal(e.Payload(), &ret); err != nil {
		return nil, errors.Wrapf(err, "decode %s event", e.Type())
	}
	return ret, nil
}
