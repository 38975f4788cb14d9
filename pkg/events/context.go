package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

type ctxKey int

const (
	ctxKeyEventSinks ctxKey = iota
	ctxKeyTurnInfo
)

// TurnInfo carries the correlation identifiers of the turn an inference
// stream belongs to. The orchestrator attaches it to the context; engines
// seed their event metadata from it.
type TurnInfo struct {
	SessionID string
	TurnID    string
	Iteration int
}

// WithTurnInfo attaches turn correlation identifiers to the context.
func WithTurnInfo(ctx context.Context, info TurnInfo) context.Context {
	return context.WithValue(ctx, ctxKeyTurnInfo, info)
}

// GetTurnInfo returns the turn correlation identifiers from the context.
func GetTurnInfo(ctx context.Context) TurnInfo {
	if v := ctx.Value(ctxKeyTurnInfo); v != nil {
		if info, ok := v.(TurnInfo); ok {
			return info
		}
	}
	return TurnInfo{}
}

// WithEventSinks attaches one or more EventSink instances to the context so
// downstream code can publish events without access to engine configuration.
func WithEventSinks(ctx context.Context, sinks ...EventSink) context.Context {
	if len(sinks) == 0 {
		return ctx
	}
	existing := GetEventSinks(ctx)
	combined := append([]EventSink{}, existing...)
	combined = append(combined, sinks...)
	return context.WithValue(ctx, ctxKeyEventSinks, combined)
}

// GetEventSinks returns the list of EventSinks attached to the context.
func GetEventSinks(ctx context.Context) []EventSink {
	if v := ctx.Value(ctxKeyEventSinks); v != nil {
		if sinks, ok := v.([]EventSink); ok {
			return sinks
		}
	}
	return nil
}

// PublishEventToContext publishes the event to all sinks stored in the
// context. Individual sink errors are ignored so one failing subscriber
// cannot disrupt the stream.
func PublishEventToContext(ctx context.Context, event Event) {
	sinks := GetEventSinks(ctx)
	if len(sinks) == 0 {
		log.Trace().Str("event_type", string(event.Type())).Msg("PublishEventToContext: no sinks in context")
		return
	}
	for _, sink := range sinks {
		_ = sink.PublishEvent(event)
	}
}
