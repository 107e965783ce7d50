// Package recovery classifies execution failures and decides how the
// caller should proceed. Strategies pair an error predicate with a
// handler producing a RecoveryAction; built-in strategies cover browser
// tools, model providers, the filesystem, external APIs, resource
// exhaustion, and permissions, in that priority order.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// Strategy is a named (predicate, handler) pair. Matches decides
// whether the strategy applies to an error; Handle classifies it into
// an Action. A handler returning an error causes the manager to skip
// this strategy and keep scanning.
type Strategy struct {
	Name    string
	Matches func(err error) bool
	Handle  func(ctx context.Context, err error) (Action, error)
}

// Manager coordinates recovery strategies. Strategies are consulted in
// registration order and the first match wins; errors matching no
// strategy yield Abort.
type Manager struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewManager creates a Manager with the built-in strategies registered.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{logger: logger}
	m.registerBrowserRecovery()
	m.registerModelRecovery()
	m.registerFileRecovery()
	m.registerAPIRecovery()
	m.registerResourceRecovery()
	m.registerPermissionRecovery()
	return m
}

// Register appends a custom strategy after the built-in ones.
func (m *Manager) Register(s Strategy) {
	m.strategies = append(m.strategies, s)
}

// Recover scans strategies in registration order and returns the first
// matching strategy's action. A failing handler is logged and skipped.
// When nothing matches, the error is unclassified and execution must
// abort.
func (m *Manager) Recover(ctx context.Context, err error) Action {
	for _, s := range m.strategies {
		if !s.Matches(err) {
			continue
		}
		m.logger.Debug("applying recovery strategy", "strategy", s.Name)
		action, handleErr := s.Handle(ctx, err)
		if handleErr != nil {
			m.logger.Warn("recovery strategy failed",
				"strategy", s.Name, "error", handleErr)
			continue
		}
		m.logger.Info("recovery strategy selected action",
			"strategy", s.Name, "action", action.String())
		return action
	}

	m.logger.Warn("no recovery strategy for error", "error", err)
	return Abort()
}

// RecoverWithRetry repeatedly classifies err and interprets the action.
// Retry and WaitAndRetry re-invoke operation (the latter sleeping
// first); Fallback, Skip, Abort, and RequestUserInput stop the loop and
// surface a distinguishing error. Exhausting maxAttempts without a
// successful operation yields a terminal recovery-exhausted error
// distinct from the original.
func (m *Manager) RecoverWithRetry(ctx context.Context, err error, operation func(context.Context) error, maxAttempts int) error {
	lastErr := err

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		action := m.Recover(ctx, err)

		switch action.Kind {
		case ActionRetry:
			m.logger.Info("retrying operation", "attempt", attempt)
		case ActionWaitAndRetry:
			m.logger.Info("waiting before retry", "wait", action.Wait, "attempt", attempt)
			if sleepErr := sleepCtx(ctx, action.Wait); sleepErr != nil {
				return sleepErr
			}
		case ActionFallback:
			return types.NewError(types.TRANSIENT_FAILURE,
				fmt.Sprintf("fallback required: %s", action.Message))
		case ActionSkip:
			return types.NewError(types.TRANSIENT_FAILURE, "operation skipped")
		case ActionAbort:
			return err
		case ActionRequestUserInput:
			return types.NewError(types.PERMISSION_DENIED, action.Message)
		}

		opErr := operation(ctx)
		if opErr == nil {
			return nil
		}
		m.logger.Warn("retry failed", "attempt", attempt, "error", opErr)
		lastErr = opErr
	}

	return types.WrapError(types.RECOVERY_EXHAUSTED,
		fmt.Sprintf("recovery exhausted after %d attempts", maxAttempts), lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Classification helpers. Structured error codes are preferred; plain
// errors fall back to substring matching on the error text.

func codeIs(err error, code types.ErrorCode) bool {
	target := &types.WorkforceError{Code: code}
	return errors.Is(err, target)
}

func textContainsAny(err error, subs ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range subs {
		if strings.Contains(msg, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

func isBrowserFailure(err error) bool {
	return codeIs(err, types.TOOL_BROWSER_FAILED) || textContainsAny(err, "browser")
}

func isFilesystemFailure(err error) bool {
	return codeIs(err, types.TOOL_FILESYSTEM_FAILED) || textContainsAny(err, "file", "directory", "path")
}

func isAPIFailure(err error) bool {
	return codeIs(err, types.TOOL_API_FAILED) || textContainsAny(err, "api", "http")
}

func (m *Manager) registerBrowserRecovery() {
	m.Register(Strategy{
		Name: "browser element not found recovery",
		Matches: func(err error) bool {
			return isBrowserFailure(err) && textContainsAny(err, "element not found")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return Fallback("use semantic selector fallback"), nil
		},
	})
	m.Register(Strategy{
		Name: "browser crash recovery",
		Matches: func(err error) bool {
			return isBrowserFailure(err) && textContainsAny(err, "crash")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return Fallback("restart browser"), nil
		},
	})
	m.Register(Strategy{
		Name: "browser timeout recovery",
		Matches: func(err error) bool {
			return isBrowserFailure(err) && textContainsAny(err, "timeout")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return WaitAndRetry(5 * time.Second), nil
		},
	})
}

func (m *Manager) registerModelRecovery() {
	m.Register(Strategy{
		Name: "model rate limit recovery",
		Matches: func(err error) bool {
			return codeIs(err, types.MODEL_RATE_LIMITED)
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return Fallback("switch to alternative model provider"), nil
		},
	})
	m.Register(Strategy{
		Name: "model context length recovery",
		Matches: func(err error) bool {
			return codeIs(err, types.MODEL_CONTEXT_LENGTH) || textContainsAny(err, "context length", "context too long")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return Fallback("summarize context"), nil
		},
	})
	m.Register(Strategy{
		Name: "model timeout recovery",
		Matches: func(err error) bool {
			return codeIs(err, types.MODEL_TIMEOUT)
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return WaitAndRetry(10 * time.Second), nil
		},
	})
	m.Register(Strategy{
		Name: "model unavailable recovery",
		Matches: func(err error) bool {
			return codeIs(err, types.MODEL_UNAVAILABLE) || textContainsAny(err, "model not available", "model unavailable")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return Fallback("switch to fallback model"), nil
		},
	})
}

func (m *Manager) registerFileRecovery() {
	m.Register(Strategy{
		Name: "file not found recovery",
		Matches: func(err error) bool {
			return isFilesystemFailure(err) && textContainsAny(err, "not found")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return RequestUserInput(fmt.Sprintf(
				"File not found. Please provide the correct path: %v", err)), nil
		},
	})
	m.Register(Strategy{
		Name: "disk full recovery",
		Matches: func(err error) bool {
			return isFilesystemFailure(err) && textContainsAny(err, "disk full", "no space")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return RequestUserInput("Disk full. Please free up disk space and try again."), nil
		},
	})
}

func (m *Manager) registerAPIRecovery() {
	m.Register(Strategy{
		Name: "api rate limit recovery",
		Matches: func(err error) bool {
			return isAPIFailure(err) && textContainsAny(err, "rate limit", "429")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return WaitAndRetry(60 * time.Second), nil
		},
	})
	m.Register(Strategy{
		Name: "api timeout recovery",
		Matches: func(err error) bool {
			return isAPIFailure(err) && textContainsAny(err, "timeout")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return WaitAndRetry(3 * time.Second), nil
		},
	})
	m.Register(Strategy{
		Name: "api authentication recovery",
		Matches: func(err error) bool {
			return isAPIFailure(err) && textContainsAny(err, "401", "403", "unauthorized", "forbidden")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return RequestUserInput("API authentication failed. Please check your API credentials."), nil
		},
	})
}

func (m *Manager) registerResourceRecovery() {
	m.Register(Strategy{
		Name: "resource limit recovery",
		Matches: func(err error) bool {
			return codeIs(err, types.RESOURCE_EXHAUSTED) || textContainsAny(err, "resource")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return Fallback("clear caches and reduce workload"), nil
		},
	})
}

func (m *Manager) registerPermissionRecovery() {
	m.Register(Strategy{
		Name: "permission denied recovery",
		Matches: func(err error) bool {
			return codeIs(err, types.PERMISSION_DENIED) || textContainsAny(err, "permission denied")
		},
		Handle: func(ctx context.Context, err error) (Action, error) {
			return RequestUserInput(fmt.Sprintf(
				"Permission denied. Please grant the required permissions: %v", err)), nil
		},
	})
}
