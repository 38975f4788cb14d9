package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/go-burattino/burattino/pkg/tools"
)

// ToolSpec is the YAML shape of one user-defined tool in the tool store.
type ToolSpec struct {
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	Parameters     *tools.Schema     `yaml:"parameters"`
	Environment    tools.Environment `yaml:"environment"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Enabled        bool              `yaml:"enabled"`
	Source         string            `yaml:"source"`
}

type toolsFile struct {
	Tools []ToolSpec `yaml:"tools"`
}

// LoadTools reads the user tool store and builds a registry. Every declared
// parameter schema is compile-checked up front; a schema that does not
// compile is a fatal configuration error, raised before any tool can run.
func LoadTools(path string) (*tools.Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading tool store %s", path)
	}
	var file toolsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrapf(err, "parsing tool store %s", path)
	}

	registry := tools.NewRegistry()
	for _, spec := range file.Tools {
		if err := checkSchemaCompiles(spec.Name, spec.Parameters); err != nil {
			return nil, err
		}
		def := tools.Definition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Parameters,
			Environment: spec.Environment,
			Timeout:     time.Duration(spec.TimeoutSeconds) * time.Second,
			Enabled:     spec.Enabled,
			Source:      spec.Source,
		}
		if def.Environment == "" {
			def.Environment = tools.EnvironmentSandbox
		}
		if err := registry.Register(def); err != nil {
			return nil, errors.Wrapf(err, "registering tool %s", spec.Name)
		}
	}
	log.Debug().Str("path", path).Int("tools", registry.Count()).Msg("config: tool store loaded")
	return registry, nil
}

// checkSchemaCompiles verifies a declared parameter schema is valid JSON
// Schema.
func checkSchemaCompiles(name string, schema *tools.Schema) error {
	if schema == nil {
		return nil
	}
	doc, err := json.Marshal(schema)
	if err != nil {
		return errors.Wrapf(err, "tool %s: encoding parameter schema", name)
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(doc)); err != nil {
		return errors.Wrapf(err, "tool %s: invalid parameter schema", name)
	}
	return nil
}
