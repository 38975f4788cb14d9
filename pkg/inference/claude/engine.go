// Package claude implements the Anthropic-compatible streaming engine.
package claude

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-burattino/burattino/pkg/conversation"
	"github.com/go-burattino/burattino/pkg/events"
	"github.com/go-burattino/burattino/pkg/inference/engine"
)

const defaultMaxTokens = 4096

// Engine streams messages from an Anthropic-compatible endpoint, publishing
// partial events for text deltas and thinking events for reasoning deltas.
type Engine struct {
	client   anthropic.Client
	settings engine.Settings
	config   *engine.Config
}

var _ engine.Engine = (*Engine)(nil)

func NewEngine(settings engine.Settings, options ...engine.Option) (*Engine, error) {
	config := engine.NewConfig()
	if err := engine.ApplyOptions(config, options...); err != nil {
		return nil, err
	}
	opts := []option.RequestOption{option.WithAPIKey(settings.APIKey)}
	if settings.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(settings.BaseURL))
	}
	return &Engine{
		client:   anthropic.NewClient(opts...),
		settings: settings,
		config:   config,
	}, nil
}

func (e *Engine) RunInference(ctx context.Context, messages conversation.Conversation) (*engine.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.settings.StreamTimeout())
	defer cancel()

	system, params := BuildMessages(messages)
	maxTokens := int64(defaultMaxTokens)
	if e.settings.MaxTokens != nil {
		maxTokens = int64(*e.settings.MaxTokens)
	}
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.settings.Model),
		MaxTokens: maxTokens,
		Messages:  params,
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if e.settings.Temperature != nil {
		req.Temperature = anthropic.Float(*e.settings.Temperature)
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

	log.Debug().Str("model", e.settings.Model).Int("num_messages", len(params)).Msg("claude: starting stream")
	engine.PublishEvent(ctx, e.config, events.NewStartEvent(metadata))

	var message, reasoning strings.Builder
	var usage *events.Usage
	var stopReason string

	stream := e.client.Messages.NewStreaming(ctx, req)
	for stream.Next() {
		event := stream.Current()
		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := variant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text != "" {
					message.WriteString(delta.Text)
					engine.PublishEvent(ctx, e.config, events.NewPartialCompletionEvent(metadata, delta.Text, message.String()))
				}
			case anthropic.ThinkingDelta:
				if delta.Thinking != "" {
					reasoning.WriteString(delta.Thinking)
					engine.PublishEvent(ctx, e.config, events.NewThinkingPartialEvent(metadata, delta.Thinking, reasoning.String()))
				}
			}
		case anthropic.MessageDeltaEvent:
			if variant.Usage.OutputTokens > 0 {
				usage = &events.Usage{
					InputTokens:  int(variant.Usage.InputTokens),
					OutputTokens: int(variant.Usage.OutputTokens),
				}
			}
			if variant.Delta.StopReason != "" {
				stopReason = string(variant.Delta.StopReason)
			}
		}
	}
	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			engine.PublishEvent(ctx, e.config, events.NewInterruptEvent(metadata, message.String()))
			return nil, errors.Wrap(ctx.Err(), "stream timed out")
		}
		return nil, errors.Wrap(err, "anthropic streaming error")
	}

	metadata.Usage = usage
	if stopReason != "" {
		metadata.StopReason = &stopReason
	}
	log.Debug().Int("length", message.Len()).Str("stop_reason", stopReason).Msg("claude: stream completed")
	return &engine.Response{
		Text:       message.String(),
		Reasoning:  reasoning.String(),
		Usage:      usage,
		StopReason: stopReason,
		Metadata:   metadata,
	}, nil
}

// BuildMessages maps the conversation onto Anthropic message params. System
// messages collect into the top-level system prompt; tool results have no
// dedicated role and are carried as user messages.
func BuildMessages(messages conversation.Conversation) (string, []anthropic.MessageParam) {
	var systemParts []string
	var out []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case conversation.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case conversation.RoleUser, conversation.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case conversation.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return strings.Join(systemParts, "\n\n"), out
}
