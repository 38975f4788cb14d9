package events

// Usage reports token consumption as surfaced by the provider stream.
type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
}

// LLMInferenceData consolidates common inference metadata for UI and storage.
type LLMInferenceData struct {
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	StopReason  *string  `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	Usage       *Usage   `json:"usage,omitempty" yaml:"usage,omitempty"`
	DurationMs  *int64   `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
}
