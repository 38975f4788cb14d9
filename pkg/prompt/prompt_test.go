package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderWithSprigFunctions(t *testing.T) {
	out, err := Render("t", `Hello {{ .Name | upper }}`, map[string]any{"Name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "Hello WORLD", out)
}

func TestRenderBadTemplate(t *testing.T) {
	_, err := Render("t", `{{ .Name |`, nil)
	assert.Error(t, err)
}

func TestSystemPrompt(t *testing.T) {
	out, err := System("You are terse.", "A Go repo.")
	require.NoError(t, err)
	assert.Contains(t, out, "You are terse.")
	assert.Contains(t, out, "Project context:\nA Go repo.")
}

func TestSystemPromptEmpty(t *testing.T) {
	out, err := System("", "")
	require.NoError(t, err)
	assert.Empty(t, out)
}
