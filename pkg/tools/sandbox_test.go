package tools

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessRunnerRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	runner := NewProcessRunner("sh")
	def := &Definition{
		Name:   "echo_result",
		Source: `cat - >/dev/null; printf '{"answer": 42}'`,
	}
	out, err := runner.Run(context.Background(), def, map[string]any{"x": 1.0})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"answer": float64(42)}, out)
}

func TestProcessRunnerPlainTextOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	runner := NewProcessRunner("sh")
	def := &Definition{
		Name:   "echo_text",
		Source: `cat - >/dev/null; printf 'not json'`,
	}
	out, err := runner.Run(context.Background(), def, nil)
	require.NoError(t, err)
	assert.Equal(t, "not json", out)
}

func TestProcessRunnerTimeoutKillsWorker(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	runner := NewProcessRunner("sh")
	def := &Definition{
		Name:   "sleeper",
		Source: `sleep 10`,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := runner.Run(ctx, def, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestProcessRunnerSurfacesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	runner := NewProcessRunner("sh")
	def := &Definition{
		Name:   "broken",
		Source: `echo "boom" >&2; exit 3`,
	}
	_, err := runner.Run(context.Background(), def, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
