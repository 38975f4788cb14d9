package tools

import (
	"time"

	"github.com/mb0/glob"
)

// Config specifies how tools are used during one orchestration run.
type Config struct {
	Enabled          bool          `json:"enabled" yaml:"enabled"`
	MaxIterations    int           `json:"max_iterations" yaml:"max_iterations"`
	ExecutionTimeout time.Duration `json:"execution_timeout" yaml:"execution_timeout"`
	MaxParallelTools int           `json:"max_parallel_tools" yaml:"max_parallel_tools"`
	// AllowedTools holds glob patterns; nil allows every registered tool.
	AllowedTools []string `json:"allowed_tools" yaml:"allowed_tools"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		MaxIterations:    10,
		ExecutionTimeout: 30 * time.Second,
		MaxParallelTools: 4,
		AllowedTools:     nil,
	}
}

func (c Config) WithMaxIterations(n int) Config {
	c.MaxIterations = n
	return c
}

func (c Config) WithExecutionTimeout(d time.Duration) Config {
	c.ExecutionTimeout = d
	return c
}

func (c Config) WithAllowedTools(patterns []string) Config {
	c.AllowedTools = patterns
	return c
}

// IsToolAllowed matches the tool name against the allowed-tools patterns.
func (c *Config) IsToolAllowed(name string) bool {
	if c.AllowedTools == nil {
		return true
	}
	for _, pattern := range c.AllowedTools {
		if ok, err := glob.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// FilterTools returns only the definitions allowed by this configuration.
func (c *Config) FilterTools(defs []Definition) []Definition {
	if c.AllowedTools == nil {
		return defs
	}
	out := make([]Definition, 0, len(defs))
	for _, def := range defs {
		if c.IsToolAllowed(def.Name) {
			out = append(out, def)
		}
	}
	return out
}
