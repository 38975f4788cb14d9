// Package openai implements the OpenAI-compatible streaming engine.
package openai

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-burattino/burattino/pkg/conversation"
	"github.com/go-burattino/burattino/pkg/events"
	"github.com/go-burattino/burattino/pkg/inference/engine"
)

// Engine streams chat completions from an OpenAI-compatible endpoint.
type Engine struct {
	settings engine.Settings
	config   *engine.Config
}

var _ engine.Engine = (*Engine)(nil)

func NewEngine(settings engine.Settings, options ...engine.Option) (*Engine, error) {
	config := engine.NewConfig()
	if err := engine.ApplyOptions(config, options...); err != nil {
		return nil, err
	}
	return &Engine{settings: settings, config: config}, nil
}

func (e *Engine) client() *go_openai.Client {
	cfg := go_openai.DefaultConfig(e.settings.APIKey)
	if e.settings.BaseURL != "" {
		cfg.BaseURL = e.settings.BaseURL
	}
	return go_openai.NewClientWithConfig(cfg)
}

// RunInference opens one stream and accumulates the full raw response,
// publishing a start event, a partial event per text delta, and an interrupt
// event if the context is cancelled mid-stream. Timeouts surface as errors,
// never as a silent stop.
func (e *Engine) RunInference(ctx context.Context, messages conversation.Conversation) (*engine.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.settings.StreamTimeout())
	defer cancel()

	req := go_openai.ChatCompletionRequest{
		Model:    e.settings.Model,
		Messages: MessagesToOpenAI(messages),
		Stream:   true,
	}
	if e.settings.Temperature != nil {
		req.Temperature = float32(*e.settings.Temperature)
	}
	if e.settings.MaxTokens != nil {
		req.MaxTokens = *e.settings.MaxTokens
	}

	info := events.GetTurnInfo(ctx)
	metadata := events.EventMetadata{
		ID:        uuid.New(),
		SessionID: info.SessionID,
		TurnID:    info.TurnID,
		Iteration: info.Iteration,
		LLMInferenceData: events.LLMInferenceData{
			Model:       e.settings.Model,
			Temperature: e.settings.Temperature,
			MaxTokens:   e.settings.MaxTokens,
		},
	}

	log.Debug().Str("model", req.Model).Int("num_messages", len(req.Messages)).Msg("openai: starting stream")
	engine.PublishEvent(ctx, e.config, events.NewStartEvent(metadata))

	stream, err := e.client().CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "opening completion stream")
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn().Err(err).Msg("openai: failed to close stream")
		}
	}()

	message := ""
	var stopReason string
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("openai: stream cancelled")
			engine.PublishEvent(ctx, e.config, events.NewInterruptEvent(metadata, message))
			return nil, ctx.Err()
		default:
		}

		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				engine.PublishEvent(ctx, e.config, events.NewInterruptEvent(metadata, message))
				return nil, errors.Wrap(ctx.Err(), "stream timed out")
			}
			return nil, errors.Wrap(err, "receiving stream chunk")
		}
		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]
		if choice.FinishReason != "" {
			stopReason = string(choice.FinishReason)
		}
		if delta := choice.Delta.Content; delta != "" {
			message += delta
			engine.PublishEvent(ctx, e.config, events.NewPartialCompletionEvent(metadata, delta, message))
		}
	}

	if stopReason != "" {
		metadata.StopReason = &stopReason
	}
	log.Debug().Int("length", len(message)).Str("stop_reason", stopReason).Msg("openai: stream completed")
	return &engine.Response{Text: message, StopReason: stopReason, Metadata: metadata}, nil
}

// MessagesToOpenAI maps conversation roles onto the OpenAI chat format.
// Tool-result messages keep their correlation ID.
func MessagesToOpenAI(messages conversation.Conversation) []go_openai.ChatCompletionMessage {
	out := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := go_openai.ChatCompletionMessage{Content: msg.Content}
		switch msg.Role {
		case conversation.RoleSystem:
			m.Role = go_openai.ChatMessageRoleSystem
		case conversation.RoleUser:
			m.Role = go_openai.ChatMessageRoleUser
		case conversation.RoleAssistant:
			m.Role = go_openai.ChatMessageRoleAssistant
		case conversation.RoleTool:
			m.Role = go_openai.ChatMessageRoleTool
			m.ToolCallID = msg.ToolCallID
		default:
			m.Role = go_openai.ChatMessageRoleUser
		}
		out = append(out, m)
	}
	return out
}
