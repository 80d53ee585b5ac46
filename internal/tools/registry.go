package tools

import (
	"context"
	"sync"
)

// Tool is the interface every built-in tool implements. It mirrors the
// shape the LLM-facing schema needs (Name/Description/Parameters) plus
// Execute, which the executor calls only after the gate orchestrator has
// approved the call.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// AsyncCallback delivers a tool's result once it finishes running in the
// background (spec.md's Result.Async branch — used by sub-agent spawns,
// which return immediately and report completion later).
type AsyncCallback func(result *Result)

// Registry holds the set of tools available to a session, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t, keyed by t.Name(). A later call with the same name
// replaces the earlier one.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool named name, or nil if none is registered.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns every registered tool name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Definitions returns the LLM-facing schema for every registered tool.
func (r *Registry) Definitions() []map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]map[string]interface{}, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, map[string]interface{}{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		})
	}
	return defs
}
