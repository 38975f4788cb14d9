package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"

	"github.com/go-burattino/burattino/pkg/helpers"
)

// EventRouter wires a gochannel pub/sub with a watermill router so UI
// collaborators can subscribe to turn events by topic.
type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithVerbose() EventRouterOption {
	return func(r *EventRouter) {
		r.logger = helpers.NewWatermill(log.Logger)
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger: watermill.NopLogger{},
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}
	ret.router = router

	return ret, nil
}

func (e *EventRouter) Close() error {
	log.Debug().Msg("Closing publisher")
	if err := e.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close pubsub")
	}
	log.Debug().Msg("Closing router")
	if err := e.router.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close router")
	}
	return nil
}

// AddHandler registers a no-publish handler for the topic. The handler is
// expected to Ack the message itself or return an error.
func (e *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, f)
}

// AddSinkHandler registers a handler that decodes events and forwards them to
// the given sink, typically a CallbackSink owned by the UI.
func (e *EventRouter) AddSinkHandler(name string, topic string, sink EventSink) {
	e.AddHandler(name, topic, func(msg *message.Message) error {
		defer msg.Ack()

		ev, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Error().Err(err).Str("message_id", msg.UUID).Msg("Failed to parse event from message payload")
			return nil
		}
		return sink.PublishEvent(ev)
	})
}

func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}
