package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/events"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

type fakePlanner struct {
	steps     []types.Step
	planErr   error
	criterion func(criterion string, execCtx types.ExecutionContext) (bool, error)
}

func (p *fakePlanner) CreatePlan(_ context.Context, goal types.Goal, _ types.ExecutionContext) (types.Plan, error) {
	if p.planErr != nil {
		return types.Plan{}, p.planErr
	}
	return types.Plan{GoalID: goal.ID, Steps: p.steps}, nil
}

func (p *fakePlanner) EvaluateCriterion(_ context.Context, criterion string, execCtx types.ExecutionContext) (bool, error) {
	if p.criterion == nil {
		return false, nil
	}
	return p.criterion(criterion, execCtx)
}

type fakeExecutor struct {
	mu       sync.Mutex
	executed []string
	fail     map[string]error
}

func (x *fakeExecutor) ExecuteStep(_ context.Context, step types.Step, _ types.ExecutionContext) (any, error) {
	x.mu.Lock()
	x.executed = append(x.executed, step.ID)
	x.mu.Unlock()
	if err, ok := x.fail[step.ID]; ok {
		return nil, err
	}
	return "ok", nil
}

func (x *fakeExecutor) executedSteps() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]string, len(x.executed))
	copy(out, x.executed)
	return out
}

type fakeResources struct {
	mu       sync.Mutex
	refusals int
	reserves int
	releases int
	busy     bool
}

func (r *fakeResources) CheckAvailability() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.busy
}

func (r *fakeResources) Reserve(types.ResourceSpec) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refusals > 0 {
		r.refusals--
		return false
	}
	r.reserves++
	return true
}

func (r *fakeResources) Release(types.ResourceSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases++
}

func (r *fakeResources) State() types.ResourceState {
	return types.ResourceState{AvailableTools: []string{"echo"}}
}

type fakeKnowledge struct {
	mu          sync.Mutex
	goals       []types.Goal
	experiences []types.ToolExecutionResult
	goalErr     error
	expErr      error
}

func (k *fakeKnowledge) AddGoal(_ context.Context, goal types.Goal) error {
	if k.goalErr != nil {
		return k.goalErr
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.goals = append(k.goals, goal)
	return nil
}

func (k *fakeKnowledge) AddExperience(_ context.Context, _ types.Goal, result types.ToolExecutionResult) error {
	if k.expErr != nil {
		return k.expErr
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.experiences = append(k.experiences, result)
	return nil
}

func steps(n int) []types.Step {
	out := make([]types.Step, n)
	for i := range out {
		out[i] = types.Step{
			ID:          fmt.Sprintf("step-%d", i+1),
			Description: fmt.Sprintf("step %d", i+1),
			ToolID:      "echo",
		}
	}
	return out
}

func testConfig() Config {
	return Config{ResourceBackoff: 5 * time.Millisecond, IdleInterval: 5 * time.Millisecond}
}

func newTestEngine(p *fakePlanner, x Executor, r *fakeResources, k *fakeKnowledge, bus events.Publisher) *Engine {
	return New(p, x, r, k, bus, slog.New(slog.NewTextHandler(io.Discard, nil)), testConfig(), "agent_test")
}

func waitDone(t *testing.T, e *Engine, goalID types.ID) TaskState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := e.WaitGoal(ctx, goalID)
	require.NoError(t, err)
	return state
}

func TestSubmitGoal_RejectsEmptyDescription(t *testing.T) {
	e := newTestEngine(&fakePlanner{}, &fakeExecutor{}, &fakeResources{}, &fakeKnowledge{}, nil)

	_, err := e.SubmitGoal(context.Background(), types.Goal{Description: "   "})
	require.Error(t, err)
	assert.Equal(t, types.GOAL_INVALID, types.CodeOf(err))
}

func TestSubmitGoal_KnowledgeFailureAborts(t *testing.T) {
	kb := &fakeKnowledge{goalErr: errors.New("disk full")}
	e := newTestEngine(&fakePlanner{}, &fakeExecutor{}, &fakeResources{}, kb, nil)

	_, err := e.SubmitGoal(context.Background(), types.Goal{Description: "archive reports"})
	require.Error(t, err)
	assert.Equal(t, types.KNOWLEDGE_WRITE_FAILED, types.CodeOf(err))
	assert.Empty(t, e.ListGoals())
}

func TestRunGoal_ExecutesStepsInOrder(t *testing.T) {
	planned := steps(3)
	planner := &fakePlanner{
		steps: planned,
		criterion: func(_ string, execCtx types.ExecutionContext) (bool, error) {
			return len(execCtx.ToolResults) >= 3, nil
		},
	}
	executor := &fakeExecutor{}
	kb := &fakeKnowledge{}
	e := newTestEngine(planner, executor, &fakeResources{}, kb, nil)

	goal := types.Goal{Description: "collect invoices", SuccessCriteria: []string{"all steps ran"}}
	goalID, err := e.SubmitGoal(context.Background(), goal)
	require.NoError(t, err)

	state := waitDone(t, e, goalID)
	require.NoError(t, state.Err)
	assert.True(t, state.Achieved)

	want := []string{planned[0].ID, planned[1].ID, planned[2].ID}
	assert.Equal(t, want, executor.executedSteps())
	assert.Len(t, kb.experiences, 3)
}

func TestRunGoal_StepFailureIsRecordedNotFatal(t *testing.T) {
	planned := steps(3)
	planner := &fakePlanner{steps: planned}
	executor := &fakeExecutor{fail: map[string]error{
		planned[1].ID: errors.New("element not found"),
	}}
	kb := &fakeKnowledge{}
	e := newTestEngine(planner, executor, &fakeResources{}, kb, nil)

	goal := types.Goal{Description: "fill out form", SuccessCriteria: []string{"form accepted"}}
	goalID, err := e.SubmitGoal(context.Background(), goal)
	require.NoError(t, err)

	state := waitDone(t, e, goalID)
	require.NoError(t, state.Err)
	assert.False(t, state.Achieved)

	// All three steps ran despite the failure in the middle.
	assert.Len(t, executor.executedSteps(), 3)
	require.Len(t, kb.experiences, 3)
	assert.True(t, kb.experiences[0].Success)
	assert.False(t, kb.experiences[1].Success)
	assert.Equal(t, "element not found", kb.experiences[1].Error)
	assert.True(t, kb.experiences[2].Success)
}

func TestRunGoal_StopsEarlyWhenAchieved(t *testing.T) {
	planner := &fakePlanner{
		steps: steps(5),
		criterion: func(_ string, execCtx types.ExecutionContext) (bool, error) {
			return len(execCtx.ToolResults) >= 2, nil
		},
	}
	executor := &fakeExecutor{}
	e := newTestEngine(planner, executor, &fakeResources{}, &fakeKnowledge{}, nil)

	goal := types.Goal{Description: "find the answer", SuccessCriteria: []string{"answer found"}}
	goalID, err := e.SubmitGoal(context.Background(), goal)
	require.NoError(t, err)

	state := waitDone(t, e, goalID)
	require.NoError(t, state.Err)
	assert.True(t, state.Achieved)
	assert.Len(t, executor.executedSteps(), 2)

	// The stored context lags by one step on the achieving iteration.
	execCtx, ok := e.GoalStatus(goalID)
	require.True(t, ok)
	assert.Len(t, execCtx.ToolResults, 1)
}

func TestRunGoal_ReserveBackoffRetriesSameStep(t *testing.T) {
	planned := steps(2)
	planner := &fakePlanner{steps: planned}
	executor := &fakeExecutor{}
	resources := &fakeResources{refusals: 3}
	e := newTestEngine(planner, executor, resources, &fakeKnowledge{}, nil)

	goal := types.Goal{Description: "heavy computation", SuccessCriteria: []string{"results verified"}}
	goalID, err := e.SubmitGoal(context.Background(), goal)
	require.NoError(t, err)

	state := waitDone(t, e, goalID)
	require.NoError(t, state.Err)

	// Refusals delay a step but never skip it.
	want := []string{planned[0].ID, planned[1].ID}
	assert.Equal(t, want, executor.executedSteps())
	assert.Equal(t, 2, resources.reserves)
	assert.Equal(t, 2, resources.releases)
}

func TestRunGoal_ReleasesResourcesOnStepFailure(t *testing.T) {
	planned := steps(1)
	executor := &fakeExecutor{fail: map[string]error{
		planned[0].ID: errors.New("timeout"),
	}}
	resources := &fakeResources{}
	e := newTestEngine(&fakePlanner{steps: planned}, executor, resources, &fakeKnowledge{}, nil)

	goalID, err := e.SubmitGoal(context.Background(), types.Goal{Description: "fetch page"})
	require.NoError(t, err)

	waitDone(t, e, goalID)
	assert.Equal(t, resources.reserves, resources.releases)
}

func TestRunGoal_PlanningFailureIsFatal(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	sub, cleanup := bus.Subscribe(context.Background(), events.Filter{
		Types: []events.EventType{events.EventGoalFailed},
	}, 8)
	defer cleanup()

	planner := &fakePlanner{planErr: errors.New("no viable decomposition")}
	e := newTestEngine(planner, &fakeExecutor{}, &fakeResources{}, &fakeKnowledge{}, bus)

	goalID, err := e.SubmitGoal(context.Background(), types.Goal{Description: "impossible goal"})
	require.NoError(t, err)

	state := waitDone(t, e, goalID)
	require.Error(t, state.Err)
	assert.Equal(t, types.PLANNING_FAILED, types.CodeOf(state.Err))

	select {
	case event := <-sub:
		payload, ok := event.Payload.(events.GoalFailedPayload)
		require.True(t, ok)
		assert.Equal(t, goalID, payload.GoalID)
		assert.Contains(t, payload.Error, "failed to create plan")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a goal.failed event")
	}

	// The failure is also visible in the context memory.
	execCtx, ok := e.GoalStatus(goalID)
	require.True(t, ok)
	assert.Equal(t, "goal_failed", execCtx.LastContextEvent())
}

func TestRunGoal_ExperienceWriteFailureIsFatal(t *testing.T) {
	kb := &fakeKnowledge{expErr: errors.New("database is locked")}
	e := newTestEngine(&fakePlanner{steps: steps(3)}, &fakeExecutor{}, &fakeResources{}, kb, nil)

	// AddGoal succeeds, AddExperience fails.
	kb.goalErr = nil
	goalID, err := e.SubmitGoal(context.Background(), types.Goal{Description: "index documents"})
	require.NoError(t, err)

	state := waitDone(t, e, goalID)
	require.Error(t, state.Err)
	assert.Equal(t, types.KNOWLEDGE_WRITE_FAILED, types.CodeOf(state.Err))
}

func TestRun_StopFlagEndsIdleLoop(t *testing.T) {
	e := newTestEngine(&fakePlanner{}, &fakeExecutor{}, &fakeResources{}, &fakeKnowledge{}, nil)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	e.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	e := newTestEngine(&fakePlanner{}, &fakeExecutor{}, &fakeResources{}, &fakeKnowledge{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestCancelAll_StopsBetweenSteps(t *testing.T) {
	started := make(chan struct{}, 1)
	planner := &fakePlanner{steps: steps(100)}
	resources := &fakeResources{}
	executor := &slowExecutor{started: started, delay: 10 * time.Millisecond}
	e := newTestEngine(planner, executor, resources, &fakeKnowledge{}, nil)

	goal := types.Goal{Description: "long running goal", SuccessCriteria: []string{"finished"}}
	goalID, err := e.SubmitGoal(context.Background(), goal)
	require.NoError(t, err)

	<-started
	e.CancelAll()

	state := waitDone(t, e, goalID)
	require.Error(t, state.Err)
	assert.Less(t, executor.count(), 100)
}

type slowExecutor struct {
	mu      sync.Mutex
	n       int
	delay   time.Duration
	started chan struct{}
}

func (x *slowExecutor) ExecuteStep(_ context.Context, _ types.Step, _ types.ExecutionContext) (any, error) {
	x.mu.Lock()
	x.n++
	first := x.n == 1
	x.mu.Unlock()
	if first {
		x.started <- struct{}{}
	}
	time.Sleep(x.delay)
	return "ok", nil
}

func (x *slowExecutor) count() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.n
}

func TestListGoals_And_TaskState(t *testing.T) {
	e := newTestEngine(&fakePlanner{}, &fakeExecutor{}, &fakeResources{}, &fakeKnowledge{}, nil)

	goalID, err := e.SubmitGoal(context.Background(), types.Goal{Description: "first goal"})
	require.NoError(t, err)

	goals := e.ListGoals()
	require.Len(t, goals, 1)
	assert.Equal(t, goalID, goals[0].ID)

	_, ok := e.TaskState(types.NewID())
	assert.False(t, ok)

	waitDone(t, e, goalID)
	state, ok := e.TaskState(goalID)
	require.True(t, ok)
	assert.True(t, state.Done)
}
