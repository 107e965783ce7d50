// Package engine implements goal-directed execution: submit a goal,
// plan it, run the plan step by step, and evaluate success criteria
// after every step.
//
// The engine owns no policy about how plans are made or steps are run;
// those arrive through the Planner and Executor interfaces. Resource
// accounting, knowledge persistence, and event emission are likewise
// injected, so a single engine can run standalone or as one agent among
// many under the orchestrator.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/events"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// Planner turns a goal into an ordered plan and evaluates success
// criteria against the accumulated execution context.
type Planner interface {
	CreatePlan(ctx context.Context, goal types.Goal, execCtx types.ExecutionContext) (types.Plan, error)
	EvaluateCriterion(ctx context.Context, criterion string, execCtx types.ExecutionContext) (bool, error)
}

// Executor runs a single plan step and returns its result payload.
// A step error is recorded as data on the goal; it does not abort the
// achievement loop.
type Executor interface {
	ExecuteStep(ctx context.Context, step types.Step, execCtx types.ExecutionContext) (any, error)
}

// ResourceManager is the engine's view of resource accounting.
// Reserve is best effort; a refusal makes the engine back off and retry
// the same step.
type ResourceManager interface {
	CheckAvailability() bool
	Reserve(spec types.ResourceSpec) bool
	Release(spec types.ResourceSpec)
	State() types.ResourceState
}

// KnowledgeBase persists goals and step experiences. Write failures are
// fatal to the operation that triggered them.
type KnowledgeBase interface {
	AddGoal(ctx context.Context, goal types.Goal) error
	AddExperience(ctx context.Context, goal types.Goal, result types.ToolExecutionResult) error
}

// Config holds engine tuning knobs.
type Config struct {
	// ResourceBackoff is the fixed wait between reservation retries for
	// a blocked step.
	ResourceBackoff time.Duration

	// IdleInterval paces the scheduler loop.
	IdleInterval time.Duration
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		ResourceBackoff: 1 * time.Second,
		IdleInterval:    100 * time.Millisecond,
	}
}

// TaskState is the observable terminal state of one goal's background
// achievement task.
type TaskState struct {
	Done     bool
	Achieved bool
	Err      error
}

type goalTask struct {
	cancel   context.CancelFunc
	done     chan struct{}
	achieved bool
	err      error
}

// Engine runs goal-achievement tasks. Each submitted goal gets its own
// background task tracked in a task-handle map, so callers can observe
// terminal state and cancel cleanly.
type Engine struct {
	planner   Planner
	executor  Executor
	resources ResourceManager
	knowledge KnowledgeBase
	bus       events.Publisher
	logger    *slog.Logger
	cfg       Config
	agentID   string

	mu          sync.Mutex
	activeGoals []types.Goal
	contexts    map[types.ID]*types.ExecutionContext
	tasks       map[types.ID]*goalTask
	stopped     bool
}

// New creates an Engine. agentID tags emitted events and may be empty
// for a standalone engine.
func New(planner Planner, executor Executor, resources ResourceManager, knowledge KnowledgeBase, bus events.Publisher, logger *slog.Logger, cfg Config, agentID string) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ResourceBackoff <= 0 {
		cfg.ResourceBackoff = DefaultConfig().ResourceBackoff
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultConfig().IdleInterval
	}
	return &Engine{
		planner:   planner,
		executor:  executor,
		resources: resources,
		knowledge: knowledge,
		bus:       bus,
		logger:    logger,
		cfg:       cfg,
		agentID:   agentID,
		contexts:  make(map[types.ID]*types.ExecutionContext),
		tasks:     make(map[types.ID]*goalTask),
	}
}

// SubmitGoal validates and registers a goal, then starts its
// achievement task in the background and returns immediately. A
// knowledge persistence failure aborts the submission.
func (e *Engine) SubmitGoal(ctx context.Context, goal types.Goal) (types.ID, error) {
	if strings.TrimSpace(goal.Description) == "" {
		return "", types.NewError(types.GOAL_INVALID, "goal description is required")
	}
	if goal.ID.IsZero() {
		goal.ID = types.NewID()
	}
	if !goal.Priority.IsValid() {
		goal.Priority = types.PriorityMedium
	}

	e.logger.Info("goal submitted", "goal_id", goal.ID, "description", goal.Description)

	e.publish(ctx, events.Event{
		Type:      events.EventGoalSubmitted,
		Timestamp: time.Now(),
		GoalID:    goal.ID,
		AgentID:   e.agentID,
		Payload: events.GoalSubmittedPayload{
			GoalID:      goal.ID,
			Description: goal.Description,
			Priority:    goal.Priority,
		},
	})

	if err := e.knowledge.AddGoal(ctx, goal); err != nil {
		return "", types.WrapError(types.KNOWLEDGE_WRITE_FAILED, "failed to persist goal", err)
	}

	execCtx := &types.ExecutionContext{
		Goal:               goal,
		AvailableResources: e.resources.State(),
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	task := &goalTask{cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.activeGoals = append(e.activeGoals, goal)
	e.contexts[goal.ID] = execCtx
	e.tasks[goal.ID] = task
	e.mu.Unlock()

	go e.achieveGoal(taskCtx, goal.ID, task)

	return goal.ID, nil
}

// achieveGoal wraps the achievement loop, recording terminal state in
// the task handle and emitting the goal.failed event for task-level
// failures.
func (e *Engine) achieveGoal(ctx context.Context, goalID types.ID, task *goalTask) {
	start := time.Now()
	achieved, stepsExecuted, err := e.runGoal(ctx, goalID, start)

	if err != nil {
		e.logger.Error("goal execution failed", "goal_id", goalID, "error", err)
		e.appendContextEntry(goalID, types.ContextEntry{
			Timestamp: time.Now(),
			Event:     "goal_failed",
			Data:      map[string]any{"error": err.Error()},
		})
		e.publish(ctx, events.Event{
			Type:      events.EventGoalFailed,
			Timestamp: time.Now(),
			GoalID:    goalID,
			AgentID:   e.agentID,
			Payload: events.GoalFailedPayload{
				GoalID:        goalID,
				Error:         err.Error(),
				StepsExecuted: stepsExecuted,
			},
		})
	}

	e.mu.Lock()
	task.achieved = achieved
	task.err = err
	e.mu.Unlock()
	close(task.done)
}

// runGoal is the achievement loop: plan, then execute steps strictly in
// order. A step failure is recorded and the loop continues; planning,
// criterion-evaluation, and knowledge failures terminate the task.
func (e *Engine) runGoal(ctx context.Context, goalID types.ID, start time.Time) (achieved bool, stepsExecuted int, err error) {
	e.mu.Lock()
	stored, ok := e.contexts[goalID]
	var execCtx types.ExecutionContext
	if ok {
		execCtx = stored.Clone()
	}
	e.mu.Unlock()
	if !ok {
		return false, 0, types.NewErrorf(types.GOAL_NOT_FOUND, "goal %s not found", goalID)
	}

	e.logger.Info("achieving goal", "goal_id", goalID, "description", execCtx.Goal.Description)

	plan, err := e.planner.CreatePlan(ctx, execCtx.Goal, execCtx)
	if err != nil {
		return false, 0, types.WrapError(types.PLANNING_FAILED, "failed to create plan", err)
	}

	e.logger.Info("plan created", "goal_id", goalID, "steps", len(plan.Steps))
	e.publish(ctx, events.Event{
		Type:      events.EventPlanCreated,
		Timestamp: time.Now(),
		GoalID:    goalID,
		AgentID:   e.agentID,
		Payload: events.PlanCreatedPayload{
			GoalID:    goalID,
			StepCount: len(plan.Steps),
		},
	})

	for i, step := range plan.Steps {
		e.logger.Info("executing step",
			"goal_id", goalID, "step", i+1, "total", len(plan.Steps), "description", step.Description)

		e.publish(ctx, events.Event{
			Type:      events.EventStepStarted,
			Timestamp: time.Now(),
			GoalID:    goalID,
			AgentID:   e.agentID,
			Payload: events.StepStartedPayload{
				GoalID:      goalID,
				StepIndex:   i,
				StepID:      step.ID,
				ToolID:      step.ToolID,
				Description: step.Description,
			},
		})

		// Reservation backoff retries the same step; a blocked step is
		// never skipped.
		for !e.resources.Reserve(step.EstimatedResources) {
			e.logger.Warn("insufficient resources for step, waiting",
				"goal_id", goalID, "step", step.ID)
			if sleepErr := sleepCtx(ctx, e.cfg.ResourceBackoff); sleepErr != nil {
				return false, stepsExecuted, sleepErr
			}
		}

		stepStart := time.Now()
		payload, execErr := e.executor.ExecuteStep(ctx, step, execCtx)
		elapsed := time.Since(stepStart)

		e.resources.Release(step.EstimatedResources)

		result := types.ToolExecutionResult{
			ToolID:        step.ToolID,
			Success:       execErr == nil,
			Result:        payload,
			ExecutionTime: elapsed,
			ResourcesUsed: step.EstimatedResources,
		}
		if execErr != nil {
			result.Error = execErr.Error()
		}
		stepsExecuted++

		e.publish(ctx, events.Event{
			Type:      events.EventStepCompleted,
			Timestamp: time.Now(),
			GoalID:    goalID,
			AgentID:   e.agentID,
			Payload: events.StepCompletedPayload{
				GoalID:    goalID,
				StepIndex: i,
				StepID:    step.ID,
				ToolID:    step.ToolID,
				Success:   result.Success,
				Error:     result.Error,
				Duration:  elapsed,
			},
		})

		execCtx.ToolResults = append(execCtx.ToolResults, result)
		execCtx.ContextMemory = append(execCtx.ContextMemory, types.ContextEntry{
			Timestamp: time.Now(),
			Event:     fmt.Sprintf("step_%d_executed", i),
			Data: map[string]any{
				"tool_id":           result.ToolID,
				"success":           result.Success,
				"error":             result.Error,
				"execution_time_ms": elapsed.Milliseconds(),
			},
		})

		if kbErr := e.knowledge.AddExperience(ctx, execCtx.Goal, result); kbErr != nil {
			return false, stepsExecuted, types.WrapError(types.KNOWLEDGE_WRITE_FAILED,
				"failed to persist experience", kbErr)
		}

		e.publish(ctx, events.Event{
			Type:      events.EventGoalProgress,
			Timestamp: time.Now(),
			GoalID:    goalID,
			AgentID:   e.agentID,
			Payload: events.GoalProgressPayload{
				GoalID:         goalID,
				CompletedSteps: i + 1,
				TotalSteps:     len(plan.Steps),
				CurrentStep:    step.Description,
			},
		})

		done, evalErr := e.goalAchieved(ctx, execCtx)
		if evalErr != nil {
			return false, stepsExecuted, types.WrapError(types.PLANNING_FAILED,
				"criterion evaluation failed", evalErr)
		}
		if done {
			e.logger.Info("goal achieved", "goal_id", goalID, "steps_executed", stepsExecuted)
			e.publish(ctx, events.Event{
				Type:      events.EventGoalAchieved,
				Timestamp: time.Now(),
				GoalID:    goalID,
				AgentID:   e.agentID,
				Payload: events.GoalAchievedPayload{
					GoalID:        goalID,
					StepsExecuted: stepsExecuted,
					Duration:      time.Since(start),
				},
			})
			// The stored context is deliberately not refreshed on this
			// branch, matching the update-on-continue behavior of the
			// loop below.
			return true, stepsExecuted, nil
		}

		e.mu.Lock()
		snapshot := execCtx.Clone()
		e.contexts[goalID] = &snapshot
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return false, stepsExecuted, ctx.Err()
		default:
		}
	}

	// Plan exhausted without meeting every criterion. The task ends
	// cleanly; achievement is reported through TaskState.
	return false, stepsExecuted, nil
}

// goalAchieved evaluates every success criterion; all must hold. A goal
// with no criteria is trivially achieved.
func (e *Engine) goalAchieved(ctx context.Context, execCtx types.ExecutionContext) (bool, error) {
	for _, criterion := range execCtx.Goal.SuccessCriteria {
		ok, err := e.planner.EvaluateCriterion(ctx, criterion, execCtx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Run drives the idle scheduler loop: gate on resource availability,
// refresh context snapshots, and pace with the configured interval.
// It returns when Stop is called or the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = false
	e.mu.Unlock()

	limiter := rate.NewLimiter(rate.Every(e.cfg.IdleInterval), 1)
	for {
		if e.Stopped() {
			e.logger.Info("stop signal received")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !e.resources.CheckAvailability() {
			e.logger.Warn("resources limited, waiting")
			if err := sleepCtx(ctx, e.cfg.ResourceBackoff); err != nil {
				return err
			}
			continue
		}

		e.refreshContexts()

		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
}

// refreshContexts updates every stored context's resource snapshot.
func (e *Engine) refreshContexts() {
	state := e.resources.State()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, execCtx := range e.contexts {
		execCtx.AvailableResources = state
	}
}

// Stop flips the advisory stop flag. Only the Run loop consults it;
// in-flight achievement tasks keep executing.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
}

// Stopped reports whether Stop has been called since the last Run.
func (e *Engine) Stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// CancelAll cancels every achievement task's context. Cancellation is
// cooperative: a step already executing runs to completion, and the
// task stops at the next suspension point.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, task := range e.tasks {
		task.cancel()
	}
}

// GoalStatus returns a snapshot of the goal's execution context.
func (e *Engine) GoalStatus(goalID types.ID) (types.ExecutionContext, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	execCtx, ok := e.contexts[goalID]
	if !ok {
		return types.ExecutionContext{}, false
	}
	return execCtx.Clone(), true
}

// ListGoals returns all goals submitted to this engine.
func (e *Engine) ListGoals() []types.Goal {
	e.mu.Lock()
	defer e.mu.Unlock()
	goals := make([]types.Goal, len(e.activeGoals))
	copy(goals, e.activeGoals)
	return goals
}

// TaskState reports the terminal state of a goal's achievement task.
func (e *Engine) TaskState(goalID types.ID) (TaskState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[goalID]
	if !ok {
		return TaskState{}, false
	}
	select {
	case <-task.done:
		return TaskState{Done: true, Achieved: task.achieved, Err: task.err}, true
	default:
		return TaskState{}, true
	}
}

// WaitGoal blocks until the goal's achievement task finishes or the
// context is cancelled.
func (e *Engine) WaitGoal(ctx context.Context, goalID types.ID) (TaskState, error) {
	e.mu.Lock()
	task, ok := e.tasks[goalID]
	e.mu.Unlock()
	if !ok {
		return TaskState{}, types.NewErrorf(types.GOAL_NOT_FOUND, "goal %s not found", goalID)
	}
	select {
	case <-task.done:
		e.mu.Lock()
		defer e.mu.Unlock()
		return TaskState{Done: true, Achieved: task.achieved, Err: task.err}, nil
	case <-ctx.Done():
		return TaskState{}, ctx.Err()
	}
}

func (e *Engine) appendContextEntry(goalID types.ID, entry types.ContextEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if execCtx, ok := e.contexts[goalID]; ok {
		execCtx.ContextMemory = append(execCtx.ContextMemory, entry)
	}
}

// publish emits best effort; delivery failures are logged, never
// propagated.
func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, event); err != nil {
		e.logger.Warn("failed to publish event", "type", event.Type, "error", err)
	}
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
