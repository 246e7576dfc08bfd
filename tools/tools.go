// Package tools declares the closed set of model-callable functions and
// the static name -> handler table the orchestrator dispatches through.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/coursechat/internal/telemetry"
	"github.com/mohammad-safakhou/coursechat/provider"
)

// Result is one tool execution outcome. Text goes back to the model;
// Sources are threaded to the caller explicitly so nothing leaks across
// concurrent turns. Each source entry is either a models.Source or, for
// older tools, a plain string label; the orchestrator normalizes both.
type Result struct {
	Text    string
	Sources []any
}

// Tool is one declared, model-callable operation.
type Tool interface {
	Definition() provider.ToolDefinition
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// Registry is the static lookup table from tool name to handler. The set
// is fixed at construction; there is no dynamic registration.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		name := t.Definition().Name
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// Definitions lists the declared tool schemas in registration order.
func (r *Registry) Definitions() []provider.ToolDefinition {
	defs := make([]provider.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute dispatches one tool call. A name outside the declared set is
// answered with a plain result the model can read, not an error: a model
// hallucinating a tool must not abort the turn.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return Result{Text: fmt.Sprintf("Tool '%s' not found", name)}, nil
	}
	telemetry.ToolExecutions.WithLabelValues(name).Inc()
	return t.Execute(ctx, args)
}
