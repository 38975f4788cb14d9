package tools

import (
	"encoding/json"
	"fmt"
	"time"

	clone "github.com/huandu/go-clone"
)

// Environment selects where a tool's body runs.
type Environment string

const (
	// EnvironmentSandbox runs the tool in an isolated out-of-process worker.
	EnvironmentSandbox Environment = "sandbox"
	// EnvironmentFrontend forwards the tool to the front-end execution
	// context and awaits a correlated result message.
	EnvironmentFrontend Environment = "frontend"
)

// Definition describes a tool callable by the model. Definitions are loaded
// once per run from the configuration store and are immutable for the
// duration of the run.
type Definition struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Parameters  *Schema       `json:"parameters" yaml:"parameters"`
	Environment Environment   `json:"environment" yaml:"environment"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	// Source is the script body for sandbox/frontend tools. Empty for
	// native tools registered from Go functions.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	fn *Func
}

// Native reports whether the tool is backed by a registered Go function
// rather than a script body.
func (d *Definition) Native() bool { return d.fn != nil }

// Schema is the declared parameter schema of a tool: required fields,
// per-field type, optional enum.
type Schema struct {
	Type       string              `json:"type" yaml:"type"`
	Properties map[string]Property `json:"properties" yaml:"properties"`
	Required   []string            `json:"required,omitempty" yaml:"required,omitempty"`
}

type Property struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []any  `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Status of a tool call. A result is mutable while executing and becomes
// terminal exactly once.
type Status string

const (
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// CallResult is the outcome of one tool call, threaded back into the
// conversation and mirrored into the display layer.
type CallResult struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
	Status     Status         `json:"status"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	Duration   time.Duration  `json:"duration,omitempty"`
}

// NewCallResult starts an executing result with its own copy of the
// parameters, so later mutation of the caller's map cannot alias into it.
func NewCallResult(name string, parameters map[string]any) *CallResult {
	return &CallResult{
		Name:       name,
		Parameters: clone.Clone(parameters).(map[string]any),
		Status:     StatusExecuting,
	}
}

// Terminal reports whether the result has reached completed or failed.
func (r *CallResult) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Key returns the result's call identity key.
func (r *CallResult) Key() string { return CallKey(r.Name, r.Parameters) }

// ContextContent renders the result as the content of a synthetic tool-role
// conversation message.
func (r *CallResult) ContextContent() string {
	if r.Status == StatusFailed {
		return fmt.Sprintf("Tool %s failed: %s", r.Name, r.Error)
	}
	b, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Sprintf("%v", r.Result)
	}
	return string(b)
}

// CallKey computes the identity key of a tool call: tool name plus the
// canonical JSON of its parameters. json.Marshal writes map keys in sorted
// order, which makes the encoding canonical. Identical concurrent calls
// share a key and are treated as the same logical call.
func CallKey(name string, parameters map[string]any) string {
	b, err := json.Marshal(parameters)
	if err != nil {
		// Unmarshalable parameters cannot collide meaningfully.
		return name + ":" + fmt.Sprintf("%v", parameters)
	}
	return name + ":" + string(b)
}
