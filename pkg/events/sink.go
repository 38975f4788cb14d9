package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// EventSink is a destination for inference events. Implementations publish
// to watermill, invoke UI callbacks, or record events for tests.
type EventSink interface {
	PublishEvent(event Event) error
}

// MultiSink fans one event out to several sinks. The first publish error is
// returned after all sinks have been tried.
type MultiSink struct {
	sinks []EventSink
}

func NewMultiSink(sinks ...EventSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) PublishEvent(event Event) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.PublishEvent(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ EventSink = (*MultiSink)(nil)

// NullSink discards all events.
type NullSink struct{}

func (NullSink) PublishEvent(Event) error { return nil }

var _ EventSink = NullSink{}

// WatermillSink publishes events to a watermill Publisher so they can be
// distributed through the message bus to multiple subscribers.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{publisher: publisher, topic: topic}
}

func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := w.publisher.Publish(w.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)

// Callbacks is the explicit callback surface a UI collaborator registers for
// one live turn. Nil members are skipped.
type Callbacks struct {
	OnChunk         func(text string)
	OnReasoning     func(text string)
	OnComplete      func(finalText string)
	OnError         func(message string)
	OnToolStarted   func(toolName string, parameters map[string]any)
	OnToolCompleted func(toolName string, parameters map[string]any, result string, durationMs int64)
	OnToolFailed    func(toolName string, parameters map[string]any, errorMessage string)
}

// CallbackSink adapts the event stream onto a Callbacks surface, independent
// of any UI framework.
type CallbackSink struct {
	cb Callbacks
}

func NewCallbackSink(cb Callbacks) *CallbackSink {
	return &CallbackSink{cb: cb}
}

func (s *CallbackSink) PublishEvent(event Event) error {
	switch ev := event.(type) {
	case *EventPartialCompletion:
		if s.cb.OnChunk != nil && ev.Delta != "" {
			s.cb.OnChunk(ev.Delta)
		}
	case *EventThinkingPartial:
		if s.cb.OnReasoning != nil && ev.Delta != "" {
			s.cb.OnReasoning(ev.Delta)
		}
	case *EventFinal:
		if s.cb.OnComplete != nil {
			s.cb.OnComplete(ev.Text)
		}
	case *EventError:
		if s.cb.OnError != nil {
			s.cb.OnError(ev.ErrorString)
		}
	case *EventToolCallStarted:
		if s.cb.OnToolStarted != nil {
			s.cb.OnToolStarted(ev.ToolCall.Name, ev.ToolCall.Parameters)
		}
	case *EventToolCallCompleted:
		if s.cb.OnToolCompleted != nil {
			s.cb.OnToolCompleted(ev.ToolCall.Name, ev.ToolCall.Parameters, ev.Result, ev.DurationMs)
		}
	case *EventToolCallFailed:
		if s.cb.OnToolFailed != nil {
			s.cb.OnToolFailed(ev.ToolCall.Name, ev.ToolCall.Parameters, ev.Error)
		}
	}
	return nil
}

var _ EventSink = (*CallbackSink)(nil)
