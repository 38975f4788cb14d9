package events

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSONRoundTrip(t *testing.T) {
	meta := EventMetadata{SessionID: "s-1", TurnID: "t-1", Iteration: 2}

	events := []Event{
		NewStartEvent(meta),
		NewPartialCompletionEvent(meta, "hel", "hel"),
		NewThinkingPartialEvent(meta, "hmm", "hmm"),
		NewFinalEvent(meta, "hello"),
		NewInterruptEvent(meta, "hel"),
		NewErrorEvent(meta, errors.New("boom")),
		NewToolCallStartedEvent(meta, ToolCallInfo{CallID: "k", Name: "get_weather", Parameters: map[string]any{"city": "Berlin"}}),
		NewToolCallCompletedEvent(meta, ToolCallInfo{CallID: "k", Name: "get_weather"}, `{"temp":22}`, 120),
		NewToolCallFailedEvent(meta, ToolCallInfo{CallID: "k", Name: "get_weather"}, "no network"),
	}

	for _, ev := range events {
		payload, err := json.Marshal(ev)
		require.NoError(t, err)

		decoded, err := NewEventFromJson(payload)
		require.NoError(t, err, "event type %s", ev.Type())
		assert.Equal(t, ev.Type(), decoded.Type())
		assert.IsType(t, ev, decoded)
	}

	decoded, err := NewEventFromJson([]byte(`{"type":"partial","delta":"x","completion":"x"}`))
	require.NoError(t, err)
	partial, ok := decoded.(*EventPartialCompletion)
	require.True(t, ok)
	assert.Equal(t, "x", partial.Delta)
}

type countingSink struct {
	n   int
	err error
}

func (c *countingSink) PublishEvent(Event) error {
	c.n++
	return c.err
}

func TestMultiSinkFansOutAndKeepsGoingOnError(t *testing.T) {
	failing := &countingSink{err: errors.New("sink down")}
	ok := &countingSink{}

	multi := NewMultiSink(failing, ok)
	err := multi.PublishEvent(NewFinalEvent(EventMetadata{}, "done"))

	require.Error(t, err)
	assert.Equal(t, 1, failing.n)
	assert.Equal(t, 1, ok.n, "later sinks still receive the event")
}
