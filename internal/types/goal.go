package types

import "time"

// Goal is a declaratively described objective submitted to the execution
// engine. Success criteria are free-form statements evaluated by the
// planner after each step; a goal is achieved only when every criterion
// holds.
type Goal struct {
	ID              ID           `json:"id" yaml:"id"`
	Description     string       `json:"description" yaml:"description"`
	Priority        Priority     `json:"priority" yaml:"priority"`
	Deadline        *time.Time   `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	Constraints     []Constraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	SuccessCriteria []string     `json:"success_criteria,omitempty" yaml:"success_criteria,omitempty"`
}

// Constraint is a named restriction on how a goal may be pursued, such
// as a time budget or a set of allowed tools.
type Constraint struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Plan is an ordered sequence of steps produced by a planner for one goal.
type Plan struct {
	GoalID            ID            `json:"goal_id"`
	Steps             []Step        `json:"steps"`
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
}

// Step is a single unit of work within a plan, bound to a tool.
type Step struct {
	ID                 string         `json:"id" yaml:"id"`
	Description        string         `json:"description" yaml:"description"`
	ToolID             string         `json:"tool_id" yaml:"tool_id"`
	Parameters         map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	EstimatedResources ResourceSpec   `json:"estimated_resources,omitempty" yaml:"estimated_resources,omitempty"`
	DependsOn          []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// ResourceSpec quantifies system resources a step expects to consume or
// a manager holds as limits.
type ResourceSpec struct {
	CPUPercent  float64 `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryMB    uint64  `json:"memory_mb" yaml:"memory_mb"`
	NetworkMbps float64 `json:"network_mbps" yaml:"network_mbps"`
}

// IsZero reports whether no resources are requested.
func (r ResourceSpec) IsZero() bool {
	return r.CPUPercent == 0 && r.MemoryMB == 0 && r.NetworkMbps == 0
}

// ResourceState is a point-in-time snapshot of resource usage and the
// tools currently available for execution.
type ResourceState struct {
	Usage          ResourceSpec `json:"usage"`
	Limits         ResourceSpec `json:"limits"`
	AvailableTools []string     `json:"available_tools,omitempty"`
}

// ToolExecutionResult records the outcome of one executed step. A failed
// step produces a result with Success=false and Error set; it does not
// terminate the goal.
type ToolExecutionResult struct {
	ToolID        string        `json:"tool_id"`
	Success       bool          `json:"success"`
	Result        any           `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	ResourcesUsed ResourceSpec  `json:"resources_used"`
}

// ContextEntry is one append-only record in a goal's context memory.
type ContextEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Data      map[string]any `json:"data,omitempty"`
}

// ExecutionContext is the accumulated state of one goal's pursuit:
// the goal itself, a resource snapshot taken at submission, every tool
// result so far, and the context memory trail.
type ExecutionContext struct {
	Goal               Goal                  `json:"goal"`
	CurrentState       string                `json:"current_state,omitempty"`
	AvailableResources ResourceState         `json:"available_resources"`
	ToolResults        []ToolExecutionResult `json:"tool_results,omitempty"`
	ContextMemory      []ContextEntry        `json:"context_memory,omitempty"`
}

// Clone returns a deep-enough copy for snapshot reads: the slices are
// copied so the caller can range over them while the engine appends.
func (c *ExecutionContext) Clone() ExecutionContext {
	out := *c
	out.ToolResults = make([]ToolExecutionResult, len(c.ToolResults))
	copy(out.ToolResults, c.ToolResults)
	out.ContextMemory = make([]ContextEntry, len(c.ContextMemory))
	copy(out.ContextMemory, c.ContextMemory)
	return out
}

// LastContextEvent returns the event name of the most recent context
// memory entry, or the empty string when the memory is empty.
func (c *ExecutionContext) LastContextEvent() string {
	if len(c.ContextMemory) == 0 {
		return ""
	}
	return c.ContextMemory[len(c.ContextMemory)-1].Event
}
