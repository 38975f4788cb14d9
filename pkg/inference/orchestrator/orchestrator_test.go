package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-burattino/burattino/pkg/conversation"
	"github.com/go-burattino/burattino/pkg/events"
	"github.com/go-burattino/burattino/pkg/inference/engine"
	"github.com/go-burattino/burattino/pkg/tools"
)

// scriptedEngine replays canned responses, publishing partial events to the
// context sinks the way a real provider engine does. The final response
// repeats if the loop asks for more.
type scriptedEngine struct {
	responses []scriptedResponse
	calls     int
}

type scriptedResponse struct {
	fragments []string
	err       error
}

func (e *scriptedEngine) RunInference(ctx context.Context, messages conversation.Conversation) (*engine.Response, error) {
	idx := e.calls
	e.calls++
	if idx >= len(e.responses) {
		idx = len(e.responses) - 1
	}
	r := e.responses[idx]
	if r.err != nil {
		return nil, r.err
	}

	info := events.GetTurnInfo(ctx)
	meta := events.EventMetadata{ID: uuid.New(), SessionID: info.SessionID, TurnID: info.TurnID, Iteration: info.Iteration}
	events.PublishEventToContext(ctx, events.NewStartEvent(meta))
	full := ""
	for _, f := range r.fragments {
		full += f
		events.PublishEventToContext(ctx, events.NewPartialCompletionEvent(meta, f, full))
	}
	return &engine.Response{Text: full, Metadata: meta}, nil
}

type recordedCallbacks struct {
	mu         sync.Mutex
	chunks     []string
	completes  []string
	errs       []string
	started    []string
	completed  []string
	failed     []string
	failureMsg string
}

func (r *recordedCallbacks) sink() events.EventSink {
	return events.NewCallbackSink(events.Callbacks{
		OnChunk: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.chunks = append(r.chunks, text)
		},
		OnComplete: func(finalText string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes = append(r.completes, finalText)
		},
		OnError: func(message string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, message)
		},
		OnToolStarted: func(name string, params map[string]any) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.started = append(r.started, name)
		},
		OnToolCompleted: func(name string, params map[string]any, result string, durationMs int64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completed = append(r.completed, name)
		},
		OnToolFailed: func(name string, params map[string]any, errorMessage string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.failed = append(r.failed, name)
			r.failureMsg = errorMessage
		},
	})
}

type addInput struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

func addRouter(t *testing.T) *tools.Router {
	t.Helper()
	def, err := tools.NewToolFromFunc("add", "adds two numbers", func(in addInput) (float64, error) {
		return in.A + in.B, nil
	})
	require.NoError(t, err)
	def.Parameters.Required = []string{"a", "b"}
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(*def))
	return tools.NewRouter(reg, tools.DefaultConfig(), nil, nil)
}

func newOrchestrator(eng engine.Engine, router *tools.Router, cfg tools.Config, sinks []events.EventSink, options ...Option) *Orchestrator {
	return NewOrchestrator(eng, router, cfg, "session-1", sinks, options...)
}

const addDirective = `[TOOL_REQUEST]{"name":"add","parameters":{"a":1,"b":2}}[END_TOOL_REQUEST]`

func TestPlainTurnStreamsChunksInOrder(t *testing.T) {
	eng := &scriptedEngine{responses: []scriptedResponse{
		{fragments: []string{"Hello", " wor", "ld"}},
	}}
	rec := &recordedCallbacks{}
	orch := newOrchestrator(eng, addRouter(t), tools.DefaultConfig(), []events.EventSink{rec.sink()})

	result, err := orch.SendTurn(context.Background(), TurnRequest{UserMessage: "hi"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", " wor", "ld"}, rec.chunks)
	assert.Equal(t, []string{"Hello world"}, rec.completes)
	assert.Equal(t, "Hello world", result.Text)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 1, eng.calls)
}

func TestToolCallRoundTrip(t *testing.T) {
	eng := &scriptedEngine{responses: []scriptedResponse{
		{fragments: []string{"Let me add those. ", addDirective}},
		{fragments: []string{"The sum is 3."}},
	}}
	rec := &recordedCallbacks{}
	orch := newOrchestrator(eng, addRouter(t), tools.DefaultConfig(), []events.EventSink{rec.sink()})

	result, err := orch.SendTurn(context.Background(), TurnRequest{UserMessage: "add 1 and 2"})
	require.NoError(t, err)

	assert.Equal(t, "The sum is 3.", result.Text)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, []string{"add"}, rec.started)
	assert.Equal(t, []string{"add"}, rec.completed)
	assert.Empty(t, rec.failed)

	// No fragment of the directive ever reached the chunk callback.
	for _, chunk := range rec.chunks {
		assert.NotContains(t, chunk, "TOOL_REQUEST")
	}

	// The tool result went back into the conversation as a tool message.
	var toolMessages []conversation.Message
	for _, msg := range result.Messages {
		if msg.Role == conversation.RoleTool {
			toolMessages = append(toolMessages, msg)
		}
	}
	require.Len(t, toolMessages, 1)
	assert.Equal(t, "3", toolMessages[0].Content)
}

func TestIterationCap(t *testing.T) {
	// A model that always answers with a fresh directive: distinct
	// parameters each time so no identity collision short-circuits it.
	eng := &scriptedEngine{responses: []scriptedResponse{
		{fragments: []string{`[TOOL_REQUEST]{"name":"add","parameters":{"a":1,"b":1}}`}},
		{fragments: []string{`[TOOL_REQUEST]{"name":"add","parameters":{"a":2,"b":2}}`}},
		{fragments: []string{`[TOOL_REQUEST]{"name":"add","parameters":{"a":3,"b":3}}`}},
		{fragments: []string{`[TOOL_REQUEST]{"name":"add","parameters":{"a":4,"b":4}}`}},
	}}
	rec := &recordedCallbacks{}
	cfg := tools.DefaultConfig().WithMaxIterations(3)
	orch := newOrchestrator(eng, addRouter(t), cfg, []events.EventSink{rec.sink()})

	result, err := orch.SendTurn(context.Background(), TurnRequest{UserMessage: "loop forever"})
	require.NoError(t, err, "hitting the ceiling is DONE, not an error")

	assert.Equal(t, 3, eng.calls, "exactly maxIterations streams")
	assert.Equal(t, 3, result.Iterations)
	// Only the first two iterations executed tools; the last directive is
	// left outstanding.
	assert.Len(t, rec.completed, 2)
	assert.Len(t, rec.completes, 1, "final event fires once")
	assert.Contains(t, result.Messages.LastAssistantText(), `"a":3`,
		"the final stream's raw text is still recorded in the conversation")
}

func TestValidationFailureFeedsBackAndContinues(t *testing.T) {
	eng := &scriptedEngine{responses: []scriptedResponse{
		{fragments: []string{`[TOOL_REQUEST]{"name":"add","parameters":{"a":"x","b":2}}`}},
		{fragments: []string{"recovered"}},
	}}
	rec := &recordedCallbacks{}
	orch := newOrchestrator(eng, addRouter(t), tools.DefaultConfig(), []events.EventSink{rec.sink()})

	result, err := orch.SendTurn(context.Background(), TurnRequest{UserMessage: "add"})
	require.NoError(t, err, "a failed tool never aborts the turn")

	assert.Equal(t, "recovered", result.Text)
	assert.Equal(t, 2, eng.calls)
	require.Len(t, rec.failed, 1)
	assert.Contains(t, rec.failureMsg, `"a"`)
	assert.Empty(t, rec.errs, "validation failures are not UI-level errors")

	// The failure text was fed back for the model to react to.
	found := false
	for _, msg := range result.Messages {
		if msg.Role == conversation.RoleTool && strings.Contains(msg.Content, "failed") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTransportErrorAbortsTurn(t *testing.T) {
	eng := &scriptedEngine{responses: []scriptedResponse{
		{err: errors.New("connection reset")},
	}}
	rec := &recordedCallbacks{}
	var stored int
	store := storeFunc(func(ctx context.Context, sessionID string, messages conversation.Conversation) error {
		stored++
		return nil
	})
	orch := newOrchestrator(eng, addRouter(t), tools.DefaultConfig(), []events.EventSink{rec.sink()}, WithStore(store))

	_, err := orch.SendTurn(context.Background(), TurnRequest{UserMessage: "hi"})
	require.Error(t, err)

	require.Len(t, rec.errs, 1)
	assert.Contains(t, rec.errs[0], "connection reset")
	assert.Empty(t, rec.completes, "no final event on a failed turn")
	assert.Empty(t, orch.History(), "history is untouched by a failed turn")
	assert.Zero(t, stored, "nothing is persisted for a failed turn")
}

type storeFunc func(ctx context.Context, sessionID string, messages conversation.Conversation) error

func (f storeFunc) SaveConversation(ctx context.Context, sessionID string, messages conversation.Conversation) error {
	return f(ctx, sessionID, messages)
}

func TestStoreHandoffOnSuccess(t *testing.T) {
	eng := &scriptedEngine{responses: []scriptedResponse{{fragments: []string{"ok"}}}}
	var handed conversation.Conversation
	store := storeFunc(func(ctx context.Context, sessionID string, messages conversation.Conversation) error {
		assert.Equal(t, "session-1", sessionID)
		handed = messages
		return nil
	})
	orch := newOrchestrator(eng, addRouter(t), tools.DefaultConfig(), nil, WithStore(store))

	result, err := orch.SendTurn(context.Background(), TurnRequest{UserMessage: "hi"})
	require.NoError(t, err)
	require.NotNil(t, handed)
	assert.Equal(t, result.Messages.View(), handed.View())

	// The hand-off received its own copy.
	handed[0].Content = "tampered"
	assert.NotEqual(t, "tampered", orch.History()[0].Content)
}

type fileMap map[string]string

func (f fileMap) ReadFile(path string) ([]byte, error) {
	content, ok := f[path]
	if !ok {
		return nil, errors.Errorf("no such file: %s", path)
	}
	return []byte(content), nil
}

func TestAttachedFilesInjectedBeforeUserMessage(t *testing.T) {
	eng := &scriptedEngine{responses: []scriptedResponse{{fragments: []string{"ok"}}}}
	orch := newOrchestrator(eng, addRouter(t), tools.DefaultConfig(), nil,
		WithFileReader(fileMap{"notes.txt": "remember the milk"}))

	result, err := orch.SendTurn(context.Background(), TurnRequest{
		ProjectContext:    "a project",
		UserMessage:       "summarize",
		AttachedFilePaths: []string{"notes.txt"},
	})
	require.NoError(t, err)

	msgs := result.Messages
	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Equal(t, conversation.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "a project")
	assert.Equal(t, conversation.RoleSystem, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "remember the milk")
	assert.Equal(t, conversation.RoleUser, msgs[2].Role)
}

func TestAttachedFileReadFailureIsFatalBeforeStreaming(t *testing.T) {
	eng := &scriptedEngine{responses: []scriptedResponse{{fragments: []string{"ok"}}}}
	rec := &recordedCallbacks{}
	orch := newOrchestrator(eng, addRouter(t), tools.DefaultConfig(), []events.EventSink{rec.sink()},
		WithFileReader(fileMap{}))

	_, err := orch.SendTurn(context.Background(), TurnRequest{
		UserMessage:       "summarize",
		AttachedFilePaths: []string{"missing.txt"},
	})
	require.Error(t, err)
	assert.Zero(t, eng.calls, "no network call after a configuration failure")
	assert.Len(t, rec.errs, 1)
}

func TestRepeatedIdentityNotifiesOnce(t *testing.T) {
	// The model re-issues the exact same call in the next iteration. The
	// tracker treats it as the same logical call: one started, one terminal.
	eng := &scriptedEngine{responses: []scriptedResponse{
		{fragments: []string{addDirective}},
		{fragments: []string{addDirective}},
		{fragments: []string{"done"}},
	}}
	rec := &recordedCallbacks{}
	orch := newOrchestrator(eng, addRouter(t), tools.DefaultConfig(), []events.EventSink{rec.sink()})

	result, err := orch.SendTurn(context.Background(), TurnRequest{UserMessage: "add"})
	require.NoError(t, err)
	assert.Equal(t, "done", result.Text)
	assert.Len(t, rec.started, 1)
	assert.Len(t, rec.completed, 1)
}

func TestHistoryAccumulatesAcrossTurns(t *testing.T) {
	eng := &scriptedEngine{responses: []scriptedResponse{
		{fragments: []string{"first answer"}},
		{fragments: []string{"second answer"}},
	}}
	orch := newOrchestrator(eng, addRouter(t), tools.DefaultConfig(), nil)

	_, err := orch.SendTurn(context.Background(), TurnRequest{UserMessage: "one"})
	require.NoError(t, err)
	result, err := orch.SendTurn(context.Background(), TurnRequest{UserMessage: "two"})
	require.NoError(t, err)

	require.Len(t, result.Messages, 4)
	assert.Equal(t, "one", result.Messages[0].Content)
	assert.Equal(t, "first answer", result.Messages[1].Content)
	assert.Equal(t, "two", result.Messages[2].Content)
	assert.Equal(t, "second answer", result.Messages[3].Content)
}
