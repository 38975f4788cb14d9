// Package display rebuilds the ordered list of display messages purely from
// the inference event stream. It lives on the consumer side: nothing here
// calls into the orchestrator, and the orchestrator never mutates the
// message list.
package display

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/go-burattino/burattino/pkg/events"
	"github.com/go-burattino/burattino/pkg/tools"
)

// Role of a display message. Tool cards and streamed prose are assistant
// messages; the user role only enters through AddUserMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one visible entry: plain prose, a reasoning aside, or a tool
// card. A message carrying a tool call is never reused as a streaming
// target; streaming after a tool card always opens a new slot.
type Message struct {
	Role      Role
	Content   string
	Reasoning string
	ToolCall  *tools.CallResult
}

// Notifier surfaces a transient, user-visible failure outside the message
// list.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Reconstructor folds events into the display message list. It implements
// events.EventSink so it can be subscribed to the event bus directly.
type Reconstructor struct {
	mu        sync.Mutex
	messages  []*Message
	streaming bool
	inflight  map[string]*tools.CallResult
	notifier  Notifier
}

var _ events.EventSink = (*Reconstructor)(nil)

func NewReconstructor(notifier Notifier) *Reconstructor {
	return &Reconstructor{
		inflight: make(map[string]*tools.CallResult),
		notifier: notifier,
	}
}

// Messages returns the live list. Entries are shared by reference: terminal
// tool events mutate the existing message rather than replacing it, so a UI
// holding the slice sees updates in place.
func (r *Reconstructor) Messages() []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// AddUserMessage appends the user message that triggers a turn. An error
// event rolls it back so a failed turn never leaves an unanswered user
// message behind.
func (r *Reconstructor) AddUserMessage(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, &Message{Role: RoleUser, Content: content})
	r.streaming = false
}

func (r *Reconstructor) PublishEvent(ev events.Event) error {
	r.Apply(ev)
	return nil
}

// Apply folds one event into the list.
func (r *Reconstructor) Apply(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case *events.EventPartialCompletion:
		if e.Delta != "" {
			r.slot().Content += e.Delta
		}
	case *events.EventThinkingPartial:
		if e.Delta != "" {
			r.slot().Reasoning += e.Delta
		}
	case *events.EventFinal:
		r.streaming = false
		r.inflight = make(map[string]*tools.CallResult)
	case *events.EventInterrupt:
		r.streaming = false
	case *events.EventError:
		r.streaming = false
		r.rollbackUserMessage()
		if r.notifier != nil {
			r.notifier.Notify(e.ErrorString)
		}
	case *events.EventToolCallStarted:
		r.startToolCard(e.ToolCall)
	case *events.EventToolCallCompleted:
		r.finishToolCall(e.ToolCall, func(result *tools.CallResult) {
			result.Status = tools.StatusCompleted
			result.Result = e.Result
			result.Duration = time.Duration(e.DurationMs) * time.Millisecond
		})
	case *events.EventToolCallFailed:
		r.finishToolCall(e.ToolCall, func(result *tools.CallResult) {
			result.Status = tools.StatusFailed
			result.Error = e.Error
		})
	}
}

// slot returns the message streaming fragments currently append into,
// opening one if needed. A new slot is only avoided when the preceding
// message is an assistant message without a tool call: a contiguous prose
// run stays one message, while prose after a tool card starts fresh.
func (r *Reconstructor) slot() *Message {
	if r.streaming {
		return r.messages[len(r.messages)-1]
	}
	if n := len(r.messages); n > 0 {
		last := r.messages[n-1]
		if last.Role == RoleAssistant && last.ToolCall == nil {
			r.streaming = true
			return last
		}
	}
	msg := &Message{Role: RoleAssistant}
	r.messages = append(r.messages, msg)
	r.streaming = true
	return msg
}

// startToolCard always opens a brand-new message, even mid-stream, so tool
// cards are never merged with prose.
func (r *Reconstructor) startToolCard(info events.ToolCallInfo) {
	result := &tools.CallResult{
		Name:       info.Name,
		Parameters: info.Parameters,
		Status:     tools.StatusExecuting,
	}
	r.inflight[info.CallID] = result
	r.messages = append(r.messages, &Message{Role: RoleAssistant, ToolCall: result})
	r.streaming = false
}

// finishToolCall mutates the tracked in-flight result in place. Replaying a
// terminal event for an already-terminal call is a no-op.
func (r *Reconstructor) finishToolCall(info events.ToolCallInfo, mutate func(*tools.CallResult)) {
	result, ok := r.inflight[info.CallID]
	if !ok {
		log.Debug().Str("call_id", info.CallID).Msg("display: terminal event for unknown tool call")
		return
	}
	if result.Terminal() {
		return
	}
	mutate(result)
}

// rollbackUserMessage discards the most recently appended user message.
func (r *Reconstructor) rollbackUserMessage() {
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Role == RoleUser {
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return
		}
	}
}
