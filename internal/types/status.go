package types

import (
	"encoding/json"
	"fmt"
)

// AgentState represents the lifecycle state of a worker agent.
type AgentState string

const (
	AgentStateIdle      AgentState = "idle"
	AgentStateRunning   AgentState = "running"
	AgentStatePaused    AgentState = "paused"
	AgentStateCompleted AgentState = "completed"
	AgentStateFailed    AgentState = "failed"
)

// String returns the string representation of AgentState
func (s AgentState) String() string {
	return string(s)
}

// IsValid checks if the AgentState is a valid value
func (s AgentState) IsValid() bool {
	switch s {
	case AgentStateIdle, AgentStateRunning, AgentStatePaused,
		AgentStateCompleted, AgentStateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state is final. Terminal agents are
// eligible for result collection and cleanup.
func (s AgentState) IsTerminal() bool {
	return s == AgentStateCompleted || s == AgentStateFailed
}

// MarshalJSON implements json.Marshaler
func (s AgentState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler
func (s *AgentState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	state := AgentState(str)
	if !state.IsValid() {
		return fmt.Errorf("invalid agent state: %s", str)
	}

	*s = state
	return nil
}

// Priority represents the urgency of a goal.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// String returns the string representation of Priority
func (p Priority) String() string {
	return string(p)
}

// IsValid checks if the Priority is a valid value
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Priority) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	priority := Priority(str)
	if !priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", str)
	}

	*p = priority
	return nil
}
