// Package executor is the integration point between the LLM-facing tool
// registry and the approval gate: it runs gate.Orchestrator.CheckAndExecute
// for every tool call the model requests, and only on an approved Outcome
// does it hand the call to the matching tools.Tool.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
	"github.com/nextlevelbuilder/ralph-gate/internal/providers"
	"github.com/nextlevelbuilder/ralph-gate/internal/tools"
)

// Executor binds a tool registry to one session's gate orchestrator and
// verifier. policy, when non-nil, narrows which tools are visible before
// the gate ever sees a call — the "not even offered" layer spec.md §10
// describes. rateLimiter, when non-nil, caps total tool executions per
// hour for the session, independent of the gate's own per-tool denial
// backoff (gate.DenialTracker).
type Executor struct {
	registry    *tools.Registry
	orch        *gate.Orchestrator
	verifier    *gate.Verifier
	policy      *tools.PolicyEngine
	rateLimiter *rate.Limiter
}

func New(registry *tools.Registry, orch *gate.Orchestrator, verifier *gate.Verifier, policy *tools.PolicyEngine) *Executor {
	return &Executor{registry: registry, orch: orch, verifier: verifier, policy: policy}
}

// NewRateLimiter builds the session-wide tool-execution limiter from a
// ToolsConfig.RateLimitPerHour value. perHour <= 0 disables it (nil
// return), matching the config's documented "0 = disabled".
func NewRateLimiter(perHour int) *rate.Limiter {
	if perHour <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), 1)
}

// WithRateLimiter attaches a session tool-execution rate limiter built by
// NewRateLimiter.
func (e *Executor) WithRateLimiter(l *rate.Limiter) *Executor {
	e.rateLimiter = l
	return e
}

// Run checks call against the gate, and — if approved — executes it
// against the registered tool. It never calls Execute on a tool the gate
// rejected.
func (e *Executor) Run(ctx context.Context, call providers.ToolCall) *tools.Result {
	t := e.registry.Get(call.Name)
	if t == nil {
		return tools.ErrorResult(fmt.Sprintf("unknown tool %q", call.Name))
	}

	if e.policy != nil {
		visible := false
		for _, name := range e.policy.FilterNames(e.registry.Names()) {
			if name == call.Name {
				visible = true
				break
			}
		}
		if !visible {
			return tools.ErrorResult(fmt.Sprintf("unknown tool %q", call.Name))
		}
	}

	if e.rateLimiter != nil && !e.rateLimiter.Allow() {
		return tools.ErrorResult(fmt.Sprintf("%s: session tool-execution rate limit exceeded", call.Name))
	}

	outcome := e.orch.CheckAndExecute(gate.ToolCall{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: call.Arguments,
	})
	if outcome.Err != nil {
		return denialResult(outcome.Err)
	}

	if outcome.ApprovedPath != nil {
		ctx = tools.WithVerifier(ctx, e.verifier)
		ctx = tools.WithApprovedPath(ctx, outcome.ApprovedPath)
	}

	return t.Execute(ctx, call.Arguments)
}

// denialResult translates a *gate.Error into the tool-facing Result shape,
// preserving enough detail (kind, retry-after) for the agent loop to
// relay a useful message back to the model.
func denialResult(err error) *tools.Result {
	if gerr, ok := err.(*gate.Error); ok {
		msg := gerr.Message
		if gerr.Path != "" {
			msg = fmt.Sprintf("%s (%s)", msg, gerr.Path)
		}
		if gerr.RetryAfter > 0 {
			msg = fmt.Sprintf("%s; retry after %ds", msg, gerr.RetryAfter)
		}
		slog.Warn("executor: tool call rejected by gate", "kind", gerr.Kind, "message", gerr.Message)
		return tools.ErrorResult(msg).WithError(err)
	}
	return tools.ErrorResult(err.Error()).WithError(err)
}
