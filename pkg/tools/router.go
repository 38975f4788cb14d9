package tools

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-burattino/burattino/pkg/inference/directive"
)

// Router validates and executes parsed tool-call directives. Validation runs
// in a fixed order and the first failure wins: the tool must exist, be
// enabled and be allowed, then required fields, then types, then enums. Any
// failure becomes a failed CallResult fed back to the model; nothing the
// router does aborts the orchestration loop.
type Router struct {
	registry *Registry
	config   Config
	sandbox  SandboxRunner
	frontend *FrontendBridge
}

func NewRouter(registry *Registry, config Config, sandbox SandboxRunner, frontend *FrontendBridge) *Router {
	return &Router{registry: registry, config: config, sandbox: sandbox, frontend: frontend}
}

// Execute runs one directive to a terminal CallResult. The tracker is the
// per-turn call table owned by the caller; a directive whose identity key is
// already tracked returns the existing result instead of re-executing.
func (rt *Router) Execute(ctx context.Context, tracker *Tracker, call directive.ToolCall) *CallResult {
	result := NewCallResult(NormalizeName(call.Name), call.Parameters)
	if tracked := tracker.Begin(result); tracked != result {
		return tracked
	}
	key := result.Key()
	started := time.Now()

	fail := func(err error) *CallResult {
		log.Debug().Str("tool", result.Name).Err(err).Msg("tools: call failed")
		tracker.Fail(key, err.Error(), time.Since(started))
		return result
	}

	def, err := rt.registry.Get(call.Name)
	if err != nil {
		return fail(err)
	}
	if !def.Enabled {
		return fail(errors.Errorf("tool %s is disabled", def.Name))
	}
	if !rt.config.IsToolAllowed(def.Name) {
		return fail(errors.Errorf("tool %s is not allowed in this session", def.Name))
	}
	if err := ValidateParameters(def.Parameters, result.Parameters); err != nil {
		return fail(err)
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = rt.config.ExecutionTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Debug().Str("tool", def.Name).Str("environment", string(def.Environment)).Msg("tools: executing")
	value, err := rt.dispatch(execCtx, def, result.Parameters)
	if err != nil {
		return fail(err)
	}
	tracker.Complete(key, value, time.Since(started))
	return result
}

func (rt *Router) dispatch(ctx context.Context, def *Definition, params map[string]any) (any, error) {
	if def.Native() {
		return def.fn.call(ctx, params)
	}
	switch def.Environment {
	case EnvironmentSandbox:
		if rt.sandbox == nil {
			return nil, errors.New("no sandbox runner configured")
		}
		return rt.sandbox.Run(ctx, def, params)
	case EnvironmentFrontend:
		if rt.frontend == nil {
			return nil, errors.New("no frontend bridge configured")
		}
		return rt.frontend.Dispatch(ctx, def, params)
	default:
		return nil, errors.Errorf("unknown execution environment %q", def.Environment)
	}
}

// ExecuteAll runs the directives of one model turn. Distinct calls may run
// concurrently up to MaxParallelTools, but all are awaited before returning
// and the results come back in directive order, keeping conversation-history
// ordering deterministic. A failing call never cancels its siblings.
func (rt *Router) ExecuteAll(ctx context.Context, tracker *Tracker, calls []directive.ToolCall) []*CallResult {
	results := make([]*CallResult, len(calls))
	g := &errgroup.Group{}
	if rt.config.MaxParallelTools > 0 {
		g.SetLimit(rt.config.MaxParallelTools)
	}
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = rt.Execute(ctx, tracker, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
