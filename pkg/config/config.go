// Package config loads the provider, model and tool stores. All lookups are
// resolved before any network call; a missing provider, model or tool is a
// fatal configuration error.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/go-burattino/burattino/pkg/inference/engine"
)

// Provider is one configured backend endpoint.
type Provider struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Kind    string `mapstructure:"kind" yaml:"kind"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	// AllowInsecure permits plain-HTTP and local-network base URLs, for
	// local inference proxies.
	AllowInsecure bool `mapstructure:"allow_insecure" yaml:"allow_insecure"`
}

// Model is a named model preset bound to a provider.
type Model struct {
	Name           string   `mapstructure:"name" yaml:"name"`
	Provider       string   `mapstructure:"provider" yaml:"provider"`
	Model          string   `mapstructure:"model" yaml:"model"`
	Temperature    *float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens      *int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Config is the loaded configuration store.
type Config struct {
	Providers []Provider `mapstructure:"providers"`
	Models    []Model    `mapstructure:"models"`
	// ToolsFile points at the user tool store, loaded separately.
	ToolsFile string `mapstructure:"tools_file"`
	// DefaultModel names the model used when the caller does not pick one.
	DefaultModel string `mapstructure:"default_model"`
	// SandboxInterpreter runs sandbox tool workers, e.g. "node".
	SandboxInterpreter string `mapstructure:"sandbox_interpreter"`
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("sandbox_interpreter", "node")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	log.Debug().Str("path", path).Int("providers", len(cfg.Providers)).Int("models", len(cfg.Models)).Msg("config: loaded")
	return cfg, nil
}

// GetProvider resolves a provider by name.
func (c *Config) GetProvider(name string) (*Provider, error) {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i], nil
		}
	}
	return nil, errors.Errorf("provider not configured: %s", name)
}

// GetModel resolves a model preset by name.
func (c *Config) GetModel(name string) (*Model, error) {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i], nil
		}
	}
	return nil, errors.Errorf("model not configured: %s", name)
}

// EngineSettings resolves a model preset into the provider family and the
// settings an engine needs.
func (c *Config) EngineSettings(modelName string) (string, engine.Settings, error) {
	model, err := c.GetModel(modelName)
	if err != nil {
		return "", engine.Settings{}, err
	}
	provider, err := c.GetProvider(model.Provider)
	if err != nil {
		return "", engine.Settings{}, err
	}
	if provider.BaseURL != "" {
		if err := validateEndpoint(provider.BaseURL, provider.AllowInsecure); err != nil {
			return "", engine.Settings{}, err
		}
	}
	settings := engine.Settings{
		BaseURL:     provider.BaseURL,
		APIKey:      provider.APIKey,
		Model:       model.Model,
		Temperature: model.Temperature,
		MaxTokens:   model.MaxTokens,
	}
	if model.TimeoutSeconds > 0 {
		settings.Timeout = time.Duration(model.TimeoutSeconds) * time.Second
	}
	return provider.Kind, settings, nil
}
