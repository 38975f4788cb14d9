// Package prompt renders system-prompt templates for project and agent
// context.
package prompt

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
)

// Render executes a prompt template with the sprig function set.
func Render(name, tmpl string, data map[string]any) (string, error) {
	t, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(tmpl)
	if err != nil {
		return "", errors.Wrapf(err, "parsing prompt template %s", name)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", errors.Wrapf(err, "rendering prompt template %s", name)
	}
	return sb.String(), nil
}

// DefaultSystemTemplate is the built-in system prompt. Project and agent
// context are optional; empty sections render away.
const DefaultSystemTemplate = `{{- if .Agent }}{{ .Agent | trim }}

{{ end -}}
{{- if .Project }}Project context:
{{ .Project | trim }}
{{ end -}}`

// System renders the default system prompt from agent and project context.
// Both empty yields the empty string, meaning no system message at all.
func System(agentContext, projectContext string) (string, error) {
	out, err := Render("system", DefaultSystemTemplate, map[string]any{
		"Agent":   agentContext,
		"Project": projectContext,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
