package engine

import (
	"time"

	"github.com/pkg/errors"

	"github.com/go-burattino/burattino/pkg/events"
)

// Settings carries the provider and model parameters one engine needs to
// open a stream. Values come from the configuration store; lookups happen
// before any engine is constructed.
type Settings struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	MaxTokens   *int
	// Timeout bounds one stream. Elapsing surfaces as a transport error,
	// never as a silent stop.
	Timeout time.Duration
}

const DefaultTimeout = 120 * time.Second

func (s Settings) StreamTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

// Config holds engine behavior that is not provider-specific: where events
// go during streaming.
type Config struct {
	EventSinks []events.EventSink
}

func NewConfig() *Config {
	return &Config{}
}

type Option func(*Config) error

func ApplyOptions(config *Config, options ...Option) error {
	for _, opt := range options {
		if err := opt(config); err != nil {
			return errors.Wrap(err, "applying engine option")
		}
	}
	return nil
}

// WithSink registers an additional event sink for streaming events.
func WithSink(sink events.EventSink) Option {
	return func(config *Config) error {
		if sink == nil {
			return errors.New("nil event sink")
		}
		config.EventSinks = append(config.EventSinks, sink)
		return nil
	}
}
