// Package factory constructs provider engines by family name, keeping the
// rest of the system independent of concrete provider types.
package factory

import (
	"github.com/pkg/errors"

	"github.com/go-burattino/burattino/pkg/inference/claude"
	"github.com/go-burattino/burattino/pkg/inference/engine"
	"github.com/go-burattino/burattino/pkg/inference/glm"
	"github.com/go-burattino/burattino/pkg/inference/openai"
)

// Provider families understood by the factory.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGLM    = "glm"
)

// NewEngine builds the engine for a provider family. Unknown families are a
// configuration error, raised before any network call.
func NewEngine(provider string, settings engine.Settings, options ...engine.Option) (engine.Engine, error) {
	switch provider {
	case ProviderOpenAI:
		return openai.NewEngine(settings, options...)
	case ProviderClaude:
		return claude.NewEngine(settings, options...)
	case ProviderGLM:
		return glm.NewEngine(settings, options...)
	default:
		return nil, errors.Errorf("unknown provider family: %s", provider)
	}
}
