package tools

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FrontendRequest asks the front-end execution context to run a tool's code
// with the given parameters and answer with a Resolve carrying the same ID.
type FrontendRequest struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Source     string         `json:"source"`
	Parameters map[string]any `json:"parameters"`
}

// FrontendSender delivers a request to the front-end execution context.
type FrontendSender interface {
	Send(req FrontendRequest) error
}

// FrontendSenderFunc adapts a function to FrontendSender.
type FrontendSenderFunc func(req FrontendRequest) error

func (f FrontendSenderFunc) Send(req FrontendRequest) error { return f(req) }

// FrontendBridge forwards tool executions to the front-end and awaits a
// correlated result. Correlation uses a single in-flight slot per bridge,
// not a queue: dispatching while another call is outstanding is a caller
// error. On timeout the bridge stops waiting; the front-end execution is
// not cancelled and a late result for a vacated slot is dropped.
type FrontendBridge struct {
	sender FrontendSender

	mu       sync.Mutex
	inflight *pendingCall
}

type pendingCall struct {
	id   string
	done chan frontendAnswer
}

type frontendAnswer struct {
	result any
	err    string
}

func NewFrontendBridge(sender FrontendSender) *FrontendBridge {
	return &FrontendBridge{sender: sender}
}

// Dispatch forwards the tool to the front-end and blocks until the result
// arrives or ctx expires.
func (b *FrontendBridge) Dispatch(ctx context.Context, def *Definition, params map[string]any) (any, error) {
	call := &pendingCall{id: uuid.NewString(), done: make(chan frontendAnswer, 1)}

	b.mu.Lock()
	if b.inflight != nil {
		b.mu.Unlock()
		return nil, errors.New("frontend bridge busy: a tool call is already in flight")
	}
	b.inflight = call
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.inflight == call {
			b.inflight = nil
		}
		b.mu.Unlock()
	}()

	req := FrontendRequest{ID: call.id, Name: def.Name, Source: def.Source, Parameters: params}
	if err := b.sender.Send(req); err != nil {
		return nil, errors.Wrap(err, "forwarding tool to frontend")
	}

	select {
	case answer := <-call.done:
		if answer.err != "" {
			return nil, errors.New(answer.err)
		}
		return answer.result, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Errorf("tool %s timed out", def.Name)
		}
		return nil, ctx.Err()
	}
}

// Resolve delivers the front-end's answer for a request ID. Answers for
// unknown or vacated slots are dropped.
func (b *FrontendBridge) Resolve(id string, result any, errMsg string) {
	b.mu.Lock()
	call := b.inflight
	if call != nil && call.id == id {
		b.inflight = nil
	} else {
		call = nil
	}
	b.mu.Unlock()

	if call == nil {
		log.Debug().Str("id", id).Msg("tools: dropping uncorrelated frontend result")
		return
	}
	call.done <- frontendAnswer{result: result, err: errMsg}
}
