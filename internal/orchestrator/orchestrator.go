// Package orchestrator manages a bounded pool of agents. Each agent is
// one execution engine pursuing one goal; the pool shares the knowledge
// base, the lock registry, the resource manager, and the event bus.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/engine"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/events"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// DefaultMaxAgents bounds the pool when no limit is configured.
const DefaultMaxAgents = 10

// DefaultPollInterval paces WaitForAll's completion polling when no
// interval is configured.
const DefaultPollInterval = 100 * time.Millisecond

// cancelReason is the failure reason recorded on user cancellation.
const cancelReason = "cancelled by user"

// Config wires the orchestrator's shared collaborators.
type Config struct {
	MaxAgents    int
	PollInterval time.Duration
	Engine       engine.Config

	Planner   engine.Planner
	Executor  engine.Executor
	Resources engine.ResourceManager
	Knowledge engine.KnowledgeBase
	Bus       events.Publisher
	Logger    *slog.Logger
}

// AgentStatus is a point-in-time view of one agent.
type AgentStatus struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	GoalID      types.ID         `json:"goal_id"`
	State       types.AgentState `json:"state"`
	Progress    float64          `json:"progress"`
	CurrentStep string           `json:"current_step,omitempty"`
	Error       string           `json:"error,omitempty"`
	SpawnedAt   time.Time        `json:"spawned_at"`
}

// AgentResult is the terminal outcome of one agent, as collected by
// WaitForAll.
type AgentResult struct {
	AgentID  string        `json:"agent_id"`
	GoalID   types.ID      `json:"goal_id"`
	Success  bool          `json:"success"`
	Achieved bool          `json:"achieved"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type agentRecord struct {
	id        string
	name      string
	seq       int
	spawnedAt time.Time

	// goalID and engine are set under the orchestrator mutex once
	// submission succeeds; engine stays nil while the spawn is in
	// flight.
	goalID types.ID
	engine *engine.Engine

	cancelled    bool
	cancelReason string
}

// Orchestrator owns the agent pool.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	agents  map[string]*agentRecord
	order   []string
	spawned int
}

// New creates an Orchestrator from the given configuration.
func New(cfg Config) *Orchestrator {
	if cfg.MaxAgents <= 0 {
		cfg.MaxAgents = DefaultMaxAgents
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: cfg.Logger,
		agents: make(map[string]*agentRecord),
	}
}

// SpawnAgent creates an agent for the goal and starts pursuing it in
// the background. The pool slot is reserved before any side effect, so
// a spawn that loses a capacity race is rejected before the goal is
// persisted or submitted.
func (o *Orchestrator) SpawnAgent(ctx context.Context, goal types.Goal) (string, error) {
	o.mu.Lock()
	if len(o.agents) >= o.cfg.MaxAgents {
		o.mu.Unlock()
		return "", types.NewErrorf(types.AGENT_CAPACITY_REACHED,
			"maximum agent capacity (%d) reached", o.cfg.MaxAgents)
	}
	o.spawned++
	record := &agentRecord{
		id:        "agent_" + types.NewID().Short(),
		name:      fmt.Sprintf("Agent %d", o.spawned),
		seq:       o.spawned,
		spawnedAt: time.Now(),
	}
	o.agents[record.id] = record
	o.order = append(o.order, record.id)
	o.mu.Unlock()

	// The goal is also recorded here so the knowledge base captures it
	// even if submission to the engine fails midway.
	if err := o.cfg.Knowledge.AddGoal(ctx, goal); err != nil {
		o.releaseSlot(record.id)
		return "", types.WrapError(types.KNOWLEDGE_WRITE_FAILED, "failed to persist goal", err)
	}

	eng := engine.New(
		o.cfg.Planner,
		o.cfg.Executor,
		o.cfg.Resources,
		o.cfg.Knowledge,
		o.cfg.Bus,
		o.logger.With("agent_id", record.id),
		o.cfg.Engine,
		record.id,
	)

	goalID, err := eng.SubmitGoal(ctx, goal)
	if err != nil {
		o.releaseSlot(record.id)
		return "", err
	}

	o.mu.Lock()
	record.goalID = goalID
	record.engine = eng
	o.mu.Unlock()

	o.logger.Info("agent spawned", "agent_id", record.id, "name", record.name, "goal_id", goalID)
	o.publish(ctx, events.Event{
		Type:      events.EventAgentSpawned,
		Timestamp: time.Now(),
		GoalID:    goalID,
		AgentID:   record.id,
		Payload: events.AgentSpawnedPayload{
			AgentID:   record.id,
			AgentName: record.name,
			GoalID:    goalID,
		},
	})

	return record.id, nil
}

// releaseSlot frees a reserved pool slot after a failed spawn.
func (o *Orchestrator) releaseSlot(agentID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removeLocked(agentID)
}

// removeLocked deletes an agent and compacts the spawn order. The
// caller must hold the mutex.
func (o *Orchestrator) removeLocked(agentID string) {
	if _, ok := o.agents[agentID]; !ok {
		return
	}
	delete(o.agents, agentID)
	for i, id := range o.order {
		if id == agentID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// SpawnParallel submits one agent per goal. Submission itself is
// sequential so capacity checks stay deterministic; the agents then run
// concurrently. On error it returns the agents spawned so far.
func (o *Orchestrator) SpawnParallel(ctx context.Context, goals []types.Goal) ([]string, error) {
	agentIDs := make([]string, 0, len(goals))
	for _, goal := range goals {
		agentID, err := o.SpawnAgent(ctx, goal)
		if err != nil {
			return agentIDs, err
		}
		agentIDs = append(agentIDs, agentID)
	}
	return agentIDs, nil
}

// GetAgentStatus returns the agent's current status.
func (o *Orchestrator) GetAgentStatus(agentID string) (AgentStatus, error) {
	o.mu.Lock()
	record, ok := o.agents[agentID]
	o.mu.Unlock()
	if !ok {
		return AgentStatus{}, types.NewErrorf(types.AGENT_NOT_FOUND, "agent %s not found", agentID)
	}
	return o.statusOf(record), nil
}

// ListAgents returns the status of every agent in spawn order.
func (o *Orchestrator) ListAgents() []AgentStatus {
	records := o.snapshot()
	statuses := make([]AgentStatus, 0, len(records))
	for _, record := range records {
		statuses = append(statuses, o.statusOf(record))
	}
	return statuses
}

// snapshot copies the current records in spawn order.
func (o *Orchestrator) snapshot() []*agentRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	records := make([]*agentRecord, 0, len(o.order))
	for _, id := range o.order {
		if record, ok := o.agents[id]; ok {
			records = append(records, record)
		}
	}
	return records
}

// statusOf derives an AgentStatus from the record and the engine's
// task state. Cancellation overrides whatever the task reports.
func (o *Orchestrator) statusOf(record *agentRecord) AgentStatus {
	o.mu.Lock()
	eng, goalID := record.engine, record.goalID
	cancelled, reason := record.cancelled, record.cancelReason
	o.mu.Unlock()

	status := AgentStatus{
		ID:        record.id,
		Name:      record.name,
		GoalID:    goalID,
		SpawnedAt: record.spawnedAt,
	}

	if eng != nil {
		if execCtx, ok := eng.GoalStatus(goalID); ok {
			status.CurrentStep = execCtx.LastContextEvent()
			status.Progress = progressOf(len(execCtx.ToolResults))
		}
	}

	if cancelled {
		status.State = types.AgentStateFailed
		status.Error = reason
		return status
	}
	if eng == nil {
		// Submission is still in flight.
		status.State = types.AgentStateRunning
		return status
	}

	task, ok := eng.TaskState(goalID)
	switch {
	case !ok || !task.Done:
		status.State = types.AgentStateRunning
	case task.Err != nil:
		status.State = types.AgentStateFailed
		status.Error = task.Err.Error()
	default:
		status.State = types.AgentStateCompleted
		if task.Achieved {
			status.Progress = 100
		}
	}
	return status
}

// progressOf estimates completion from the number of recorded results.
// The estimate saturates at 90 because only criterion evaluation can
// declare a goal done.
func progressOf(results int) float64 {
	progress := float64(results) * 10
	if progress > 90 {
		return 90
	}
	return progress
}

// CancelAgent stops an agent and cancels its achievement task. The
// agent transitions to the failed state with a cancellation reason; a
// step already executing runs to completion.
func (o *Orchestrator) CancelAgent(ctx context.Context, agentID string) error {
	o.mu.Lock()
	record, ok := o.agents[agentID]
	var eng *engine.Engine
	if ok {
		record.cancelled = true
		record.cancelReason = cancelReason
		eng = record.engine
	}
	o.mu.Unlock()
	if !ok {
		return types.NewErrorf(types.AGENT_NOT_FOUND, "agent %s not found", agentID)
	}

	if eng != nil {
		eng.Stop()
		eng.CancelAll()
	}

	o.logger.Info("agent cancelled", "agent_id", agentID)
	o.publish(ctx, events.Event{
		Type:      events.EventAgentCancelled,
		Timestamp: time.Now(),
		GoalID:    record.goalID,
		AgentID:   agentID,
		Payload: events.AgentCancelledPayload{
			AgentID: agentID,
			GoalID:  record.goalID,
			Reason:  cancelReason,
		},
	})
	return nil
}

// CancelAllAgents cancels every agent in the pool.
func (o *Orchestrator) CancelAllAgents(ctx context.Context) {
	o.mu.Lock()
	ids := make([]string, len(o.order))
	copy(ids, o.order)
	o.mu.Unlock()

	for _, id := range ids {
		if err := o.CancelAgent(ctx, id); err != nil {
			o.logger.Warn("cancel failed", "agent_id", id, "error", err)
		}
	}
}

// seqResult pairs a result with its agent's spawn sequence so results
// collected out of order can be returned in spawn order.
type seqResult struct {
	seq    int
	result AgentResult
}

// WaitForAll blocks until the pool drains. As soon as an agent reaches
// a terminal state it is removed from the pool and its result recorded,
// so capacity frees up while slower agents keep running. Results come
// back in spawn order. Cancelled agents report failure without waiting
// for their task to unwind. On context cancellation the results
// collected so far are returned alongside the context error.
func (o *Orchestrator) WaitForAll(ctx context.Context) ([]AgentResult, error) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	var collected []seqResult
	for {
		collected = append(collected, o.drainTerminal()...)
		if o.AgentCount() == 0 {
			return inSpawnOrder(collected), nil
		}
		select {
		case <-ctx.Done():
			return inSpawnOrder(collected), ctx.Err()
		case <-ticker.C:
		}
	}
}

// drainTerminal removes every agent currently in a terminal state and
// returns their results. Duration is measured at the moment the
// terminal state is observed, not when the whole pool drains.
func (o *Orchestrator) drainTerminal() []seqResult {
	var drained []seqResult
	for _, record := range o.snapshot() {
		status := o.statusOf(record)
		if !status.State.IsTerminal() {
			continue
		}

		result := AgentResult{
			AgentID:  record.id,
			GoalID:   status.GoalID,
			Success:  status.State == types.AgentStateCompleted,
			Error:    status.Error,
			Duration: time.Since(record.spawnedAt),
		}

		o.mu.Lock()
		eng, goalID := record.engine, record.goalID
		_, present := o.agents[record.id]
		o.removeLocked(record.id)
		o.mu.Unlock()
		if !present {
			continue
		}

		if eng != nil {
			if task, ok := eng.TaskState(goalID); ok && task.Done {
				result.Achieved = task.Achieved
			}
		}
		drained = append(drained, seqResult{seq: record.seq, result: result})
	}
	return drained
}

func inSpawnOrder(collected []seqResult) []AgentResult {
	sort.Slice(collected, func(i, j int) bool { return collected[i].seq < collected[j].seq })
	results := make([]AgentResult, 0, len(collected))
	for _, c := range collected {
		results = append(results, c.result)
	}
	return results
}

// CleanupCompleted removes agents in a terminal state from the pool and
// returns how many were removed. Safe to call repeatedly; agents
// already drained by WaitForAll are gone and do not count.
func (o *Orchestrator) CleanupCompleted() int {
	removed := 0
	for _, record := range o.snapshot() {
		if !o.statusOf(record).State.IsTerminal() {
			continue
		}
		o.mu.Lock()
		if _, ok := o.agents[record.id]; ok {
			o.removeLocked(record.id)
			removed++
		}
		o.mu.Unlock()
	}

	if removed > 0 {
		o.logger.Info("cleaned up completed agents", "removed", removed)
	}
	return removed
}

// AgentCount returns the number of agents currently in the pool.
func (o *Orchestrator) AgentCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.agents)
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.cfg.Bus == nil {
		return
	}
	if err := o.cfg.Bus.Publish(ctx, event); err != nil {
		o.logger.Warn("failed to publish event", "type", event.Type, "error", err)
	}
}
