package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/go-burattino/burattino/pkg/events"
)

// PublishEvent delivers an event to the engine's configured sinks and to any
// sinks attached to the context. Publish failures are logged and swallowed;
// event delivery must never break an in-flight stream.
func PublishEvent(ctx context.Context, config *Config, ev events.Event) {
	for _, sink := range config.EventSinks {
		if err := sink.PublishEvent(ev); err != nil {
			log.Warn().Err(err).Str("event_type", string(ev.Type())).Msg("engine: failed to publish event to sink")
		}
	}
	events.PublishEventToContext(ctx, ev)
}
