package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SandboxRunner executes a script tool in an isolated out-of-process worker.
// The worker receives the tool's parameters as JSON on stdin and writes its
// result to stdout. Exceeding the deadline on ctx forcibly terminates the
// worker.
type SandboxRunner interface {
	Run(ctx context.Context, def *Definition, params map[string]any) (any, error)
}

// ProcessRunner runs tool source through an interpreter in a fresh child
// process per call. One worker per call, no shared state between calls.
type ProcessRunner struct {
	Interpreter string
	Args        []string
}

func NewProcessRunner(interpreter string, args ...string) *ProcessRunner {
	return &ProcessRunner{Interpreter: interpreter, Args: args}
}

var _ SandboxRunner = (*ProcessRunner)(nil)

func (p *ProcessRunner) Run(ctx context.Context, def *Definition, params map[string]any) (any, error) {
	src, err := os.CreateTemp("", "tool-"+def.Name+"-*.js")
	if err != nil {
		return nil, errors.Wrap(err, "creating worker source file")
	}
	defer func() { _ = os.Remove(src.Name()) }()
	if _, err := src.WriteString(def.Source); err != nil {
		_ = src.Close()
		return nil, errors.Wrap(err, "writing worker source")
	}
	if err := src.Close(); err != nil {
		return nil, errors.Wrap(err, "closing worker source")
	}

	input, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling parameters")
	}

	args := append(append([]string{}, p.Args...), src.Name())
	cmd := exec.CommandContext(ctx, p.Interpreter, args...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// The deadline kill only reaches the interpreter itself. Grandchildren it
	// spawned inherit the output pipes and would keep Run blocked until the
	// whole tree exits; WaitDelay forces the pipes closed shortly after the
	// kill so the call returns within the deadline.
	cmd.WaitDelay = time.Second

	log.Debug().Str("tool", def.Name).Str("interpreter", p.Interpreter).Msg("tools: starting sandbox worker")
	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.Errorf("tool %s timed out", def.Name)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.Errorf("tool %s worker failed: %s", def.Name, msg)
	}

	out := strings.TrimSpace(stdout.String())
	var result any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		// Non-JSON output is still a valid result, as plain text.
		return out, nil
	}
	return result, nil
}
