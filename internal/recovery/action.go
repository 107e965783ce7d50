package recovery

import (
	"fmt"
	"time"
)

// ActionKind discriminates the recovery action variants.
type ActionKind string

const (
	ActionRetry            ActionKind = "retry"
	ActionFallback         ActionKind = "fallback"
	ActionSkip             ActionKind = "skip"
	ActionAbort            ActionKind = "abort"
	ActionRequestUserInput ActionKind = "request_user_input"
	ActionWaitAndRetry     ActionKind = "wait_and_retry"
)

// Action is the outcome of a recovery attempt. The manager only
// classifies; it never performs a fallback itself. Message carries the
// fallback description or the user-facing prompt, Wait the delay for
// wait-and-retry actions.
type Action struct {
	Kind    ActionKind    `json:"kind"`
	Message string        `json:"message,omitempty"`
	Wait    time.Duration `json:"wait,omitempty"`
}

// Retry asks the caller to re-invoke the failed operation immediately.
func Retry() Action {
	return Action{Kind: ActionRetry}
}

// Fallback tells the caller to use the described alternative approach.
func Fallback(description string) Action {
	return Action{Kind: ActionFallback, Message: description}
}

// Skip tells the caller to drop the failed operation and continue.
func Skip() Action {
	return Action{Kind: ActionSkip}
}

// Abort tells the caller to stop execution entirely.
func Abort() Action {
	return Action{Kind: ActionAbort}
}

// RequestUserInput surfaces the failure for human intervention with the
// given prompt. Consent-required failures are never silently retried.
func RequestUserInput(message string) Action {
	return Action{Kind: ActionRequestUserInput, Message: message}
}

// WaitAndRetry asks the caller to sleep for the given duration, then
// re-invoke the failed operation.
func WaitAndRetry(wait time.Duration) Action {
	return Action{Kind: ActionWaitAndRetry, Wait: wait}
}

// String renders the action for logs.
func (a Action) String() string {
	switch a.Kind {
	case ActionFallback, ActionRequestUserInput:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Message)
	case ActionWaitAndRetry:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Wait)
	default:
		return string(a.Kind)
	}
}
