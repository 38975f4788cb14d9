package sniffer

import (
	"strings"

	"github.com/go-burattino/burattino/pkg/events"
)

// Sink wraps a downstream EventSink and filters directive text out of
// partial-completion events before they reach display. One Sink serves one
// inference stream; the orchestrator creates a fresh one per iteration.
type Sink struct {
	next    events.EventSink
	sniffer *Sniffer
	raw     strings.Builder
	visible strings.Builder
}

var _ events.EventSink = (*Sink)(nil)

func NewSink(next events.EventSink, sentinels ...string) *Sink {
	return &Sink{next: next, sniffer: New(sentinels...)}
}

// PublishEvent intercepts partial completions and forwards the filtered
// variant; all other events pass through untouched.
func (s *Sink) PublishEvent(ev events.Event) error {
	pc, ok := ev.(*events.EventPartialCompletion)
	if !ok {
		return s.next.PublishEvent(ev)
	}
	s.raw.WriteString(pc.Delta)
	filtered := s.sniffer.Feed(pc.Delta)
	if filtered == "" {
		// Fully withheld or suppressed: nothing displayable yet, so no
		// event either. A withheld tail surfaces via FlushTail.
		return nil
	}
	s.visible.WriteString(filtered)
	return s.next.PublishEvent(events.NewPartialCompletionEvent(ev.Metadata(), filtered, s.visible.String()))
}

// FlushTail releases any withheld marker-prefix bytes at end of stream. Must
// be called once after the provider stream finishes, before the stream's
// visible text is read.
func (s *Sink) FlushTail(meta events.EventMetadata) error {
	tail := s.sniffer.Flush()
	if tail == "" {
		return nil
	}
	s.visible.WriteString(tail)
	return s.next.PublishEvent(events.NewPartialCompletionEvent(meta, tail, s.visible.String()))
}

// Visible returns the accumulated displayable text for the stream.
func (s *Sink) Visible() string { return s.visible.String() }

// Raw returns the full unfiltered stream text, directives included. Directive
// parsing operates on this.
func (s *Sink) Raw() string { return s.raw.String() }

// Suppressed reports whether a directive marker was confirmed in the stream.
func (s *Sink) Suppressed() bool { return s.sniffer.Suppressed() }
