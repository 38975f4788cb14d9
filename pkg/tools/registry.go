package tools

import (
	"sync"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
)

// Registry holds the tools available to one run. Registration normalizes
// names to snake_case so directives produced by different models resolve to
// the same entry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Definition)}
}

// NormalizeName maps a tool name to its registry key.
func NormalizeName(name string) string { return strcase.ToSnake(name) }

func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	def.Name = NormalizeName(def.Name)
	r.tools[def.Name] = def
	return nil
}

func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[NormalizeName(name)]
	if !ok {
		return nil, errors.Errorf("tool not found: %s", name)
	}
	cp := def
	return &cp, nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[NormalizeName(name)]
	return ok
}

func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		out = append(out, def)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
