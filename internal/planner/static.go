// Package planner provides the static in-process planner used by the
// CLI. Plans are not synthesized; they are materialized from step lists
// declared alongside each goal, and success criteria are evaluated
// against the results recorded so far.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// defaultStepDuration is the per-step estimate used when a plan carries
// no timing information of its own.
const defaultStepDuration = 30 * time.Second

// Criterion forms understood by EvaluateCriterion. Anything else is
// treated as never satisfied.
const (
	CriterionAllSteps = "all_steps_completed"
	CriterionNoFailed = "no_failed_steps"
	criterionToolOK   = "tool_succeeded:"
	criterionMinSteps = "min_steps:"
)

// Static maps goal IDs to pre-declared step lists.
type Static struct {
	mu     sync.RWMutex
	steps  map[types.ID][]types.Step
	logger *slog.Logger
}

// NewStatic creates an empty static planner.
func NewStatic(logger *slog.Logger) *Static {
	if logger == nil {
		logger = slog.Default()
	}
	return &Static{
		steps:  make(map[types.ID][]types.Step),
		logger: logger,
	}
}

// Define registers the step list for a goal, replacing any previous
// definition. Steps without an ID get a positional one.
func (p *Static) Define(goalID types.ID, steps []types.Step) {
	normalized := make([]types.Step, len(steps))
	copy(normalized, steps)
	for i := range normalized {
		if normalized[i].ID == "" {
			normalized[i].ID = fmt.Sprintf("%s-step-%d", goalID.Short(), i+1)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps[goalID] = normalized
}

// CreatePlan returns the declared plan for the goal. A goal with no
// declared steps cannot be planned.
func (p *Static) CreatePlan(_ context.Context, goal types.Goal, _ types.ExecutionContext) (types.Plan, error) {
	p.mu.RLock()
	steps, ok := p.steps[goal.ID]
	p.mu.RUnlock()

	if !ok || len(steps) == 0 {
		return types.Plan{}, types.NewErrorf(types.PLANNING_FAILED,
			"no steps declared for goal %s", goal.ID)
	}

	out := make([]types.Step, len(steps))
	copy(out, steps)

	p.logger.Debug("plan materialized", "goal_id", goal.ID, "steps", len(out))
	return types.Plan{
		GoalID:            goal.ID,
		Steps:             out,
		EstimatedDuration: time.Duration(len(out)) * defaultStepDuration,
	}, nil
}

// EvaluateCriterion checks one success criterion against the recorded
// results:
//
//	all_steps_completed     every declared step has a recorded result
//	no_failed_steps         at least one result, none failed
//	tool_succeeded:<id>     some result from <id> succeeded
//	min_steps:<n>           at least n results recorded
//
// Unknown criteria evaluate to false so a goal never reports achieved
// on a criterion nobody checks.
func (p *Static) EvaluateCriterion(_ context.Context, criterion string, execCtx types.ExecutionContext) (bool, error) {
	criterion = strings.TrimSpace(criterion)
	results := execCtx.ToolResults

	switch {
	case criterion == CriterionAllSteps:
		p.mu.RLock()
		declared := len(p.steps[execCtx.Goal.ID])
		p.mu.RUnlock()
		return declared > 0 && len(results) >= declared, nil

	case criterion == CriterionNoFailed:
		if len(results) == 0 {
			return false, nil
		}
		for _, r := range results {
			if !r.Success {
				return false, nil
			}
		}
		return true, nil

	case strings.HasPrefix(criterion, criterionToolOK):
		toolID := strings.TrimPrefix(criterion, criterionToolOK)
		for _, r := range results {
			if r.ToolID == toolID && r.Success {
				return true, nil
			}
		}
		return false, nil

	case strings.HasPrefix(criterion, criterionMinSteps):
		raw := strings.TrimPrefix(criterion, criterionMinSteps)
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return false, types.NewErrorf(types.PLANNING_FAILED,
				"invalid criterion %q", criterion)
		}
		return len(results) >= n, nil

	default:
		p.logger.Debug("unrecognized criterion", "criterion", criterion)
		return false, nil
	}
}
