// Package glm implements the GLM-compatible streaming engine. GLM endpoints
// serve the OpenAI wire format but have no tool role, so tool results are
// folded into user-role content before the request is built.
package glm

import (
	"context"
	"fmt"

	"github.com/go-burattino/burattino/pkg/conversation"
	"github.com/go-burattino/burattino/pkg/inference/engine"
	"github.com/go-burattino/burattino/pkg/inference/openai"
)

const DefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4"

type Engine struct {
	inner *openai.Engine
}

var _ engine.Engine = (*Engine)(nil)

func NewEngine(settings engine.Settings, options ...engine.Option) (*Engine, error) {
	if settings.BaseURL == "" {
		settings.BaseURL = DefaultBaseURL
	}
	inner, err := openai.NewEngine(settings, options...)
	if err != nil {
		return nil, err
	}
	return &Engine{inner: inner}, nil
}

func (e *Engine) RunInference(ctx context.Context, messages conversation.Conversation) (*engine.Response, error) {
	return e.inner.RunInference(ctx, FoldToolMessages(messages))
}

// FoldToolMessages rewrites tool-role messages as user-role content so the
// conversation only carries roles GLM accepts. The correlation ID is dropped;
// the result text keeps enough context for the model to continue.
func FoldToolMessages(messages conversation.Conversation) conversation.Conversation {
	out := make(conversation.Conversation, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == conversation.RoleTool {
			out = append(out, conversation.NewMessage(
				conversation.RoleUser,
				fmt.Sprintf("[tool result] %s", msg.Content),
			))
			continue
		}
		out = append(out, msg)
	}
	return out
}
