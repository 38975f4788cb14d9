package conversation

import (
	"fmt"
	"strings"

	clone "github.com/huandu/go-clone"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in the durable conversation log that is sent to
// the provider on every stream iteration. ToolCallID is only set for
// RoleTool messages and correlates the result with the call that produced it.
type Message struct {
	Role       Role   `json:"role" yaml:"role"`
	Content    string `json:"content" yaml:"content"`
	ToolCallID string `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
}

func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

func NewToolMessage(toolCallID string, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

func (m Message) View() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Content, "\n"))
}

// Conversation is an ordered, append-only sequence of messages. During a
// single orchestration run it is owned exclusively by the orchestrator.
type Conversation []Message

// Append returns the conversation with the messages added. The receiver is
// not mutated so callers holding the original slice see a stable view.
func (c Conversation) Append(msgs ...Message) Conversation {
	out := make(Conversation, 0, len(c)+len(msgs))
	out = append(out, c...)
	out = append(out, msgs...)
	return out
}

// Clone returns a deep copy, safe to hand off to a collaborator that may
// outlive the current turn.
func (c Conversation) Clone() Conversation {
	return clone.Clone(c).(Conversation)
}

// LastAssistantText returns the content of the last assistant message, or ""
// when the conversation holds none.
func (c Conversation) LastAssistantText() string {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == RoleAssistant {
			return c[i].Content
		}
	}
	return ""
}

func (c Conversation) View() string {
	var sb strings.Builder
	for _, m := range c {
		sb.WriteString(m.View())
		sb.WriteString("\n")
	}
	return sb.String()
}
