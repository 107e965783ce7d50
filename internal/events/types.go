package events

import (
	"time"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// EventType identifies the category and nature of an event in the
// workforce core. Goal events track a single goal's pursuit inside an
// engine; agent events track orchestrator-level lifecycle.
type EventType string

// Goal Lifecycle Events
const (
	EventGoalSubmitted EventType = "goal.submitted"
	EventPlanCreated   EventType = "goal.plan_created"
	EventStepStarted   EventType = "goal.step_started"
	EventStepCompleted EventType = "goal.step_completed"
	EventGoalProgress  EventType = "goal.progress"
	EventGoalAchieved  EventType = "goal.achieved"
	EventGoalFailed    EventType = "goal.failed"
)

// Agent Lifecycle Events
const (
	EventAgentSpawned   EventType = "agent.spawned"
	EventAgentCancelled EventType = "agent.cancelled"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// Event is a single observability record published on the bus. Delivery
// is best effort; producers never block or fail on slow consumers.
type Event struct {
	// Type identifies the category and nature of the event
	Type EventType `json:"type"`

	// Timestamp records when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// GoalID associates the event with a goal (empty for agent-only events)
	GoalID types.ID `json:"goal_id,omitempty"`

	// AgentID identifies the agent the event belongs to (empty when the
	// engine runs outside an orchestrator)
	AgentID string `json:"agent_id,omitempty"`

	// Payload contains event-specific typed data (use type assertion to access)
	Payload any `json:"payload,omitempty"`

	// Attrs contains additional key-value attributes for flexible metadata
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Filter defines criteria for filtering events in subscriptions.
// All fields use AND logic; empty fields act as wildcards.
type Filter struct {
	// Types filters by event types (empty = all types)
	Types []EventType `json:"types,omitempty"`

	// GoalID filters by goal (empty = all goals)
	GoalID types.ID `json:"goal_id,omitempty"`

	// AgentID filters by agent (empty = all agents)
	AgentID string `json:"agent_id,omitempty"`
}

// Matches determines if the given event satisfies this filter's criteria.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		matched := false
		for _, t := range f.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.GoalID != "" && event.GoalID != f.GoalID {
		return false
	}

	if f.AgentID != "" && event.AgentID != f.AgentID {
		return false
	}

	return true
}

// Payload Types
// Typed payload data for each event type.

// GoalSubmittedPayload contains data for goal.submitted events.
type GoalSubmittedPayload struct {
	GoalID      types.ID       `json:"goal_id"`
	Description string         `json:"description"`
	Priority    types.Priority `json:"priority,omitempty"`
}

// PlanCreatedPayload contains data for goal.plan_created events.
type PlanCreatedPayload struct {
	GoalID    types.ID `json:"goal_id"`
	StepCount int      `json:"step_count"`
}

// StepStartedPayload contains data for goal.step_started events.
type StepStartedPayload struct {
	GoalID      types.ID `json:"goal_id"`
	StepIndex   int      `json:"step_index"`
	StepID      string   `json:"step_id"`
	ToolID      string   `json:"tool_id"`
	Description string   `json:"description,omitempty"`
}

// StepCompletedPayload contains data for goal.step_completed events.
type StepCompletedPayload struct {
	GoalID    types.ID      `json:"goal_id"`
	StepIndex int           `json:"step_index"`
	StepID    string        `json:"step_id"`
	ToolID    string        `json:"tool_id"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// GoalProgressPayload contains data for goal.progress events.
type GoalProgressPayload struct {
	GoalID         types.ID `json:"goal_id"`
	CompletedSteps int      `json:"completed_steps"`
	TotalSteps     int      `json:"total_steps"`
	CurrentStep    string   `json:"current_step,omitempty"`
}

// GoalAchievedPayload contains data for goal.achieved events.
type GoalAchievedPayload struct {
	GoalID        types.ID      `json:"goal_id"`
	StepsExecuted int           `json:"steps_executed"`
	Duration      time.Duration `json:"duration"`
}

// GoalFailedPayload contains data for goal.failed events.
type GoalFailedPayload struct {
	GoalID        types.ID `json:"goal_id"`
	Error         string   `json:"error"`
	StepsExecuted int      `json:"steps_executed"`
}

// AgentSpawnedPayload contains data for agent.spawned events.
type AgentSpawnedPayload struct {
	AgentID   string   `json:"agent_id"`
	AgentName string   `json:"agent_name"`
	GoalID    types.ID `json:"goal_id"`
}

// AgentCancelledPayload contains data for agent.cancelled events.
type AgentCancelledPayload struct {
	AgentID string   `json:"agent_id"`
	GoalID  types.ID `json:"goal_id,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}
