// Package orchestrator drives the stream/detect/execute/re-stream loop of
// one user turn: it opens provider streams through the marker sniffer, parses
// tool-call directives out of the accumulated raw text, routes them through
// the tool router, feeds results back into the conversation and iterates up
// to a hard ceiling.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-burattino/burattino/pkg/conversation"
	"github.com/go-burattino/burattino/pkg/events"
	"github.com/go-burattino/burattino/pkg/inference/directive"
	"github.com/go-burattino/burattino/pkg/inference/engine"
	"github.com/go-burattino/burattino/pkg/inference/sniffer"
	"github.com/go-burattino/burattino/pkg/prompt"
	"github.com/go-burattino/burattino/pkg/tools"
)

// FileReader is the file-access collaborator that loads attachments.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Store receives the final conversation for durability after a successful
// turn. The storage format is the collaborator's concern.
type Store interface {
	SaveConversation(ctx context.Context, sessionID string, messages conversation.Conversation) error
}

// Orchestrator owns the conversation history across turns and runs one turn
// at a time. The history is never mutated by any other component while a
// turn is live.
type Orchestrator struct {
	engine     engine.Engine
	router     *tools.Router
	toolConfig tools.Config
	sinks      *events.MultiSink
	store      Store
	files      FileReader
	sessionID  string

	history conversation.Conversation
}

type Option func(*Orchestrator)

func WithStore(store Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

func WithFileReader(files FileReader) Option {
	return func(o *Orchestrator) { o.files = files }
}

func WithHistory(history conversation.Conversation) Option {
	return func(o *Orchestrator) { o.history = history }
}

func NewOrchestrator(eng engine.Engine, router *tools.Router, toolConfig tools.Config, sessionID string, sinks []events.EventSink, options ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:     eng,
		router:     router,
		toolConfig: toolConfig,
		sinks:      events.NewMultiSink(sinks...),
		sessionID:  sessionID,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// History returns the conversation accumulated over completed turns.
func (o *Orchestrator) History() conversation.Conversation { return o.history }

// TurnRequest is the inbound surface of one turn.
type TurnRequest struct {
	ProjectContext    string
	AgentContext      string
	UserMessage       string
	AttachedFilePaths []string
}

// TurnResult is what a finished turn produced.
type TurnResult struct {
	// Text is the visible text of the last stream, directives removed.
	Text       string
	Messages   conversation.Conversation
	Iterations int
}

// SendTurn runs one full turn: context injection, the iteration loop, the
// persistence hand-off. On success the orchestrator's history is advanced;
// on a transport error the history is left exactly as it was before the turn
// and an error event is surfaced.
func (o *Orchestrator) SendTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	session, err := o.newSession(req)
	if err != nil {
		o.publishError(events.EventMetadata{ID: uuid.New(), SessionID: o.sessionID}, err)
		return nil, err
	}

	result, err := o.runLoop(ctx, session)
	if err != nil {
		return nil, err
	}

	o.history = result.Messages
	if o.store != nil {
		if err := o.store.SaveConversation(ctx, o.sessionID, result.Messages.Clone()); err != nil {
			log.Warn().Err(err).Str("session_id", o.sessionID).Msg("orchestrator: persistence hand-off failed")
		}
	}
	return result, nil
}

// newSession builds the per-turn session: project/agent context as system
// messages, attachments injected as synthetic system messages before the
// user message.
func (o *Orchestrator) newSession(req TurnRequest) (*StreamSession, error) {
	messages := o.history.Clone()
	system, err := prompt.System(req.AgentContext, req.ProjectContext)
	if err != nil {
		return nil, err
	}
	if system != "" {
		messages = messages.Append(conversation.NewMessage(conversation.RoleSystem, system))
	}
	for _, path := range req.AttachedFilePaths {
		if o.files == nil {
			return nil, errors.Errorf("no file-access collaborator configured, cannot attach %s", path)
		}
		content, err := o.files.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading attachment %s", path)
		}
		messages = messages.Append(conversation.NewMessage(
			conversation.RoleSystem,
			fmt.Sprintf("Attached file %s:\n%s", path, string(content)),
		))
	}
	messages = messages.Append(conversation.NewMessage(conversation.RoleUser, req.UserMessage))
	return NewStreamSession(messages), nil
}

// runLoop is the per-turn state machine: STREAMING, then either DONE when no
// directive is found, or EXECUTING_TOOLS and back to STREAMING. The ceiling
// force-terminates in DONE after exactly maxIterations streams, returning the
// last produced text with outstanding directives left unexecuted.
func (o *Orchestrator) runLoop(ctx context.Context, session *StreamSession) (*TurnResult, error) {
	maxIterations := o.toolConfig.MaxIterations
	if maxIterations <= 0 {
		maxIterations = tools.DefaultConfig().MaxIterations
	}

	lastText := ""
	var lastMeta events.EventMetadata

	for session.Iteration < maxIterations {
		session.Iteration++
		log.Debug().Int("iteration", session.Iteration).Str("turn_id", session.TurnID).Msg("orchestrator: streaming")

		sink := sniffer.NewSink(o.sinks, directive.Sentinels()...)
		streamCtx := events.WithTurnInfo(ctx, events.TurnInfo{
			SessionID: o.sessionID,
			TurnID:    session.TurnID,
			Iteration: session.Iteration,
		})
		streamCtx = events.WithEventSinks(streamCtx, sink)

		resp, err := o.engine.RunInference(streamCtx, session.Messages)
		if err != nil {
			// Transport failure aborts the whole turn. The partial
			// assistant text of this iteration is discarded.
			meta := events.EventMetadata{ID: uuid.New(), SessionID: o.sessionID, TurnID: session.TurnID, Iteration: session.Iteration}
			o.publishError(meta, err)
			return nil, errors.Wrap(err, "transport error")
		}
		if err := sink.FlushTail(resp.Metadata); err != nil {
			log.Warn().Err(err).Msg("orchestrator: failed to flush withheld stream tail")
		}

		session.Accumulated = resp.Text
		lastText = sink.Visible()
		lastMeta = resp.Metadata

		calls := directive.Parse(resp.Text)
		if len(calls) == 0 {
			session.Messages = session.Messages.Append(conversation.NewMessage(conversation.RoleAssistant, resp.Text))
			return o.finish(session, lastText, lastMeta), nil
		}

		log.Debug().Int("num_calls", len(calls)).Int("iteration", session.Iteration).Msg("orchestrator: directives found")
		if session.Iteration >= maxIterations {
			// Ceiling hit with directives still outstanding.
			session.Messages = session.Messages.Append(conversation.NewMessage(conversation.RoleAssistant, resp.Text))
			break
		}

		session.Messages = session.Messages.Append(conversation.NewMessage(conversation.RoleAssistant, resp.Text))
		results := o.executeTools(ctx, session, lastMeta, calls)
		for _, result := range results {
			session.Messages = session.Messages.Append(
				conversation.NewToolMessage(result.Key(), result.ContextContent()),
			)
		}
	}

	return o.finish(session, lastText, lastMeta), nil
}

// executeTools emits a started notification per directive, runs them through
// the router (concurrently across distinct tools, all awaited before the
// next stream), and emits exactly one terminal notification per call
// identity.
func (o *Orchestrator) executeTools(ctx context.Context, session *StreamSession, meta events.EventMetadata, calls []directive.ToolCall) []*tools.CallResult {
	infos := make([]events.ToolCallInfo, len(calls))
	started := map[string]bool{}
	for i, call := range calls {
		name := tools.NormalizeName(call.Name)
		key := tools.CallKey(name, call.Parameters)
		infos[i] = events.ToolCallInfo{CallID: key, Name: name, Parameters: call.Parameters}
		// A replayed identity is the same logical call: no second started
		// notification, whether it ran in an earlier iteration or earlier
		// in this batch.
		if _, tracked := session.Tracker.Get(key); tracked || started[key] {
			continue
		}
		started[key] = true
		o.publish(events.NewToolCallStartedEvent(meta, infos[i]))
	}

	results := o.router.ExecuteAll(ctx, session.Tracker, calls)

	for i, result := range results {
		if session.notified[result.Key()] {
			continue
		}
		session.notified[result.Key()] = true
		info := infos[i]
		switch result.Status {
		case tools.StatusCompleted:
			o.publish(events.NewToolCallCompletedEvent(meta, info, result.ContextContent(), result.Duration.Milliseconds()))
		case tools.StatusFailed:
			o.publish(events.NewToolCallFailedEvent(meta, info, result.Error))
		}
	}
	return results
}

func (o *Orchestrator) finish(session *StreamSession, text string, meta events.EventMetadata) *TurnResult {
	if meta.ID == uuid.Nil {
		meta = events.EventMetadata{ID: uuid.New(), SessionID: o.sessionID, TurnID: session.TurnID, Iteration: session.Iteration}
	}
	o.publish(events.NewFinalEvent(meta, text))
	return &TurnResult{Text: text, Messages: session.Messages, Iterations: session.Iteration}
}

func (o *Orchestrator) publish(ev events.Event) {
	if err := o.sinks.PublishEvent(ev); err != nil {
		log.Warn().Err(err).Str("event_type", string(ev.Type())).Msg("orchestrator: failed to publish event")
	}
}

func (o *Orchestrator) publishError(meta events.EventMetadata, err error) {
	o.publish(events.NewErrorEvent(meta, err))
}
