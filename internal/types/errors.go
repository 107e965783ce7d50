package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for workforce core errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Tool failure codes, split by the subsystem the tool touches.
const (
	TOOL_BROWSER_FAILED    ErrorCode = "TOOL_BROWSER_FAILED"
	TOOL_FILESYSTEM_FAILED ErrorCode = "TOOL_FILESYSTEM_FAILED"
	TOOL_API_FAILED        ErrorCode = "TOOL_API_FAILED"
	TOOL_DATABASE_FAILED   ErrorCode = "TOOL_DATABASE_FAILED"
	TOOL_NOT_FOUND         ErrorCode = "TOOL_NOT_FOUND"
)

// Model failure codes for language-model backed operations.
const (
	MODEL_RATE_LIMITED   ErrorCode = "MODEL_RATE_LIMITED"
	MODEL_CONTEXT_LENGTH ErrorCode = "MODEL_CONTEXT_LENGTH"
	MODEL_TIMEOUT        ErrorCode = "MODEL_TIMEOUT"
	MODEL_UNAVAILABLE    ErrorCode = "MODEL_UNAVAILABLE"
)

// Goal and planning error codes
const (
	GOAL_INVALID    ErrorCode = "GOAL_INVALID"
	GOAL_NOT_FOUND  ErrorCode = "GOAL_NOT_FOUND"
	PLANNING_FAILED ErrorCode = "PLANNING_FAILED"
)

// Agent lifecycle error codes
const (
	AGENT_CAPACITY_REACHED ErrorCode = "AGENT_CAPACITY_REACHED"
	AGENT_NOT_FOUND        ErrorCode = "AGENT_NOT_FOUND"
)

// Resource and permission error codes
const (
	RESOURCE_EXHAUSTED ErrorCode = "RESOURCE_EXHAUSTED"
	PERMISSION_DENIED  ErrorCode = "PERMISSION_DENIED"
	LOCK_HELD          ErrorCode = "LOCK_HELD"
)

// Knowledge store error codes
const (
	KNOWLEDGE_OPEN_FAILED  ErrorCode = "KNOWLEDGE_OPEN_FAILED"
	KNOWLEDGE_WRITE_FAILED ErrorCode = "KNOWLEDGE_WRITE_FAILED"
	KNOWLEDGE_QUERY_FAILED ErrorCode = "KNOWLEDGE_QUERY_FAILED"
)

// Severity catch-all codes used by the recovery layer.
const (
	TRANSIENT_FAILURE  ErrorCode = "TRANSIENT_FAILURE"
	FATAL_FAILURE      ErrorCode = "FATAL_FAILURE"
	RECOVERY_EXHAUSTED ErrorCode = "RECOVERY_EXHAUSTED"
)

// WorkforceError is the structured error type used across the core.
// It carries a namespaced code, a human-readable message, a retryability
// hint, and an optional wrapped cause.
type WorkforceError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if a cause exists.
func (e *WorkforceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *WorkforceError) Unwrap() error {
	return e.Cause
}

// Is matches by error code so callers can compare against sentinel
// WorkforceError values without caring about the message.
func (e *WorkforceError) Is(target error) bool {
	var wfErr *WorkforceError
	if errors.As(target, &wfErr) {
		return e.Code == wfErr.Code
	}
	return false
}

// NewError creates a non-retryable WorkforceError.
func NewError(code ErrorCode, message string) *WorkforceError {
	return &WorkforceError{Code: code, Message: message}
}

// NewErrorf creates a non-retryable WorkforceError with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *WorkforceError {
	return &WorkforceError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewRetryableError creates a retryable WorkforceError. Use for transient
// failures that may succeed on a later attempt, such as timeouts.
func NewRetryableError(code ErrorCode, message string) *WorkforceError {
	return &WorkforceError{Code: code, Message: message, Retryable: true}
}

// WrapError creates a non-retryable WorkforceError that wraps an existing
// error. The cause stays reachable through Unwrap.
func WrapError(code ErrorCode, message string, cause error) *WorkforceError {
	return &WorkforceError{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) a
// WorkforceError. Returns an empty code for plain errors.
func CodeOf(err error) ErrorCode {
	var wfErr *WorkforceError
	if errors.As(err, &wfErr) {
		return wfErr.Code
	}
	return ""
}
