// Package tool provides the in-process tool registry and the built-in
// local tools the CLI executes plans with. The registry implements the
// engine's Executor contract: a step names a tool, the registry looks
// it up and runs it with the step's parameters.
package tool

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// Tool is one executable capability.
type Tool interface {
	ID() string
	Description() string
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// Registry holds registered tools keyed by ID.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool. Registering a duplicate ID is an error.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.ID()]; exists {
		return types.NewErrorf(types.TOOL_NOT_FOUND, "tool %s is already registered", t.ID())
	}
	r.tools[t.ID()] = t
	r.logger.Debug("tool registered", "tool_id", t.ID())
	return nil
}

// Get returns the tool with the given ID.
func (r *Registry) Get(id string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[id]
	if !ok {
		return nil, types.NewErrorf(types.TOOL_NOT_FOUND, "tool %s is not registered", id)
	}
	return t, nil
}

// IDs returns the registered tool IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ExecuteStep runs the step's tool with the step's parameters. It
// satisfies the execution engine's Executor interface.
func (r *Registry) ExecuteStep(ctx context.Context, step types.Step, _ types.ExecutionContext) (any, error) {
	t, err := r.Get(step.ToolID)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("executing tool", "tool_id", step.ToolID, "step_id", step.ID)
	return t.Execute(ctx, step.Parameters)
}
