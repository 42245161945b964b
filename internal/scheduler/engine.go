package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/taskpilot/internal/scoring"
	"github.com/me/taskpilot/internal/store"
	"github.com/me/taskpilot/pkg/model"
)

// Config holds engine configuration.
type Config struct {
	// Interval between automatic cycles.
	Interval time.Duration
	// HorizonDays bounds how far ahead schedules are projected.
	HorizonDays int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: 15 * time.Minute, HorizonDays: 7}
}

// applyConfidenceFloor: slots at or below this confidence are discarded
// during the apply phase and the task stays unscheduled for the cycle.
const applyConfidenceFloor = 0.5

// adjustStep is the score delta of one manual boost/reduce.
const adjustStep = 20.0

// CycleState names the orchestrator's current phase.
type CycleState string

const (
	StateIdle     CycleState = "idle"
	StateScoring  CycleState = "scoring"
	StateBuilding CycleState = "building"
	StateApplying CycleState = "applying"
)

// CycleStatus is a snapshot of cycle health for introspection.
type CycleStatus struct {
	State        CycleState `json:"state"`
	CyclesRun    int        `json:"cycles_run"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	TasksScored  int        `json:"tasks_scored"`
	SlotsBuilt   int        `json:"slots_built"`
	SlotsApplied int        `json:"slots_applied"`
}

// Engine owns the periodic prioritization/scheduling cycle and the query and
// adjustment operations between cycles.
//
// One cycle runs at a time: if a cycle is still in flight when the next
// interval fires, that firing is skipped rather than queued. When the same
// unassigned task is placed into more than one worker's schedule in a cycle
// (candidates are visible to every builder), the apply phase resolves it
// last-write-wins; the build phase logs a warning when it happens.
type Engine struct {
	store  store.Store
	scorer *scoring.Scorer
	cache  *Cache
	config Config
	logger *slog.Logger

	runMu sync.Mutex // single-flight guard for cycles

	stopCh chan struct{}
	doneCh chan struct{}

	statusMu sync.Mutex
	status   CycleStatus
}

var _ Scheduler = (*Engine)(nil)

// NewEngine creates an Engine with injected dependencies.
func NewEngine(st store.Store, scorer *scoring.Scorer, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultConfig().HorizonDays
	}
	return &Engine{
		store:  st,
		scorer: scorer,
		cache:  NewCache(),
		config: cfg,
		logger: logger.With("component", "engine"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		status: CycleStatus{State: StateIdle},
	}
}

// Cache exposes the current cycle's schedule cache.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// Start runs one immediate cycle, then cycles on the configured interval.
// Blocks until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("engine started", "interval", e.config.Interval, "horizon_days", e.config.HorizonDays)

	if err := e.RunCycle(ctx); err != nil {
		e.logger.Error("startup cycle", "error", err)
	}

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping (context cancelled)")
			close(e.doneCh)
			return ctx.Err()
		case <-e.stopCh:
			e.logger.Info("engine stopping (stop called)")
			close(e.doneCh)
			return nil
		case <-ticker.C:
			if err := e.RunCycle(ctx); err != nil {
				e.logger.Error("cycle error", "error", err)
			}
		}
	}
}

// Stop gracefully shuts down the engine and waits for the loop to exit.
func (e *Engine) Stop() error {
	close(e.stopCh)
	<-e.doneCh
	return nil
}

// RunCycle runs one scoring→building→applying cycle. If a cycle is already
// in flight the call is skipped (single-flight discipline).
func (e *Engine) RunCycle(ctx context.Context) error {
	if !e.runMu.TryLock() {
		e.logger.Warn("cycle already running, skipping")
		return nil
	}
	defer e.runMu.Unlock()

	start := time.Now().UTC()
	err := e.runCycleLocked(ctx)

	e.statusMu.Lock()
	e.status.State = StateIdle
	e.status.CyclesRun++
	e.status.LastRun = &start
	if err != nil {
		e.status.LastError = err.Error()
	} else {
		e.status.LastError = ""
	}
	scored, built, applied := e.status.TasksScored, e.status.SlotsBuilt, e.status.SlotsApplied
	e.statusMu.Unlock()

	if err != nil {
		e.audit(ctx, &model.AuditEvent{
			Type:   model.AuditCycleFailed,
			Reason: err.Error(),
		})
		return err
	}

	e.audit(ctx, &model.AuditEvent{
		Type: model.AuditCycleCompleted,
		Data: map[string]any{
			"tasks_scored":  scored,
			"slots_built":   built,
			"slots_applied": applied,
			"duration_ms":   time.Since(start).Milliseconds(),
		},
	})
	e.logger.Info("cycle completed",
		"tasks_scored", scored, "slots_built", built, "slots_applied", applied,
		"duration", time.Since(start).String())
	return nil
}

func (e *Engine) runCycleLocked(ctx context.Context) error {
	e.setState(StateScoring)
	scored, err := e.scorePhase(ctx)
	if err != nil {
		return fmt.Errorf("scoring phase: %w", err)
	}

	e.setState(StateBuilding)
	schedules, built, err := e.buildPhase(ctx)
	if err != nil {
		return fmt.Errorf("building phase: %w", err)
	}

	e.setState(StateApplying)
	applied := e.applyPhase(ctx, schedules)

	e.statusMu.Lock()
	e.status.TasksScored = scored
	e.status.SlotsBuilt = built
	e.status.SlotsApplied = applied
	e.statusMu.Unlock()
	return nil
}

// RecalculateAllPriorities runs the scoring phase on demand. Blocks if a
// cycle is running.
func (e *Engine) RecalculateAllPriorities(ctx context.Context) (int, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.setState(StateScoring)
	defer e.setState(StateIdle)
	return e.scorePhase(ctx)
}

// GenerateOptimalSchedule runs the build and apply phases on demand. Blocks
// if a cycle is running.
func (e *Engine) GenerateOptimalSchedule(ctx context.Context) (int, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.setState(StateBuilding)
	schedules, _, err := e.buildPhase(ctx)
	if err != nil {
		e.setState(StateIdle)
		return 0, err
	}

	e.setState(StateApplying)
	applied := e.applyPhase(ctx, schedules)
	e.setState(StateIdle)
	return applied, nil
}

// --- scoring phase ---

// scorePhase recomputes priority scores for every non-terminal task.
// A failure on one task is logged and scoring moves on to the next.
func (e *Engine) scorePhase(ctx context.Context) (int, error) {
	tasks, err := e.store.ListOpenTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open tasks: %w", err)
	}

	index, err := e.loadTaskIndex(ctx, tasks)
	if err != nil {
		return 0, err
	}

	projects := make(map[string]*model.Project)
	loads := make(map[string]int)
	now := time.Now().UTC()
	scored := 0

	for _, t := range tasks {
		in := scoring.Inputs{
			Task:       t,
			Project:    e.projectFor(ctx, projects, t.ProjectID),
			WorkerLoad: e.workerLoadFor(ctx, loads, t.AssignedTo),
			Now:        now,
		}
		for _, depID := range t.DependsOn {
			if dep, ok := index[depID]; ok {
				in.Dependencies = append(in.Dependencies, dep)
			}
		}

		score, _ := e.scorer.Score(in)
		if err := e.store.UpdateTaskScore(ctx, t.ID, score); err != nil {
			e.logger.Error("persist score", "task_id", t.ID, "error", err)
			continue
		}
		t.PriorityScore = score
		scored++
	}

	e.logger.Debug("scoring done", "tasks_scored", scored, "tasks_total", len(tasks))
	return scored, nil
}

// projectFor loads and memoizes a project; lookup failures degrade to a nil
// project rather than aborting the batch.
func (e *Engine) projectFor(ctx context.Context, cache map[string]*model.Project, id string) *model.Project {
	if id == "" {
		return nil
	}
	if p, ok := cache[id]; ok {
		return p
	}
	p, err := e.store.GetProject(ctx, id)
	if err != nil {
		e.logger.Error("load project", "project_id", id, "error", err)
	}
	cache[id] = p
	return p
}

// workerLoadFor loads and memoizes a worker's in-progress count.
func (e *Engine) workerLoadFor(ctx context.Context, cache map[string]int, workerID string) int {
	if workerID == "" {
		return scoring.WorkerLoadUnassigned
	}
	if n, ok := cache[workerID]; ok {
		return n
	}
	n, err := e.store.CountInProgress(ctx, workerID)
	if err != nil {
		e.logger.Error("count in-progress", "worker_id", workerID, "error", err)
		n = 0
	}
	cache[workerID] = n
	return n
}

// loadTaskIndex indexes open tasks by ID and pulls in dependency records that
// are already terminal (completed tasks are not in the open list but their
// status still matters for readiness checks).
func (e *Engine) loadTaskIndex(ctx context.Context, open []*model.Task) (map[string]*model.Task, error) {
	index := make(map[string]*model.Task, len(open))
	for _, t := range open {
		index[t.ID] = t
	}
	for _, t := range open {
		for _, depID := range t.DependsOn {
			if _, ok := index[depID]; ok {
				continue
			}
			dep, err := e.store.GetTask(ctx, depID)
			if err != nil {
				e.logger.Error("load dependency", "task_id", t.ID, "dep_id", depID, "error", err)
				continue
			}
			if dep != nil {
				index[depID] = dep
			}
		}
	}
	return index, nil
}

// --- building phase ---

// buildPhase rebuilds every active worker's schedule and swaps the result
// into the cache in one step.
func (e *Engine) buildPhase(ctx context.Context) (map[string][]model.Slot, int, error) {
	tasks, err := e.store.ListOpenTasks(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list open tasks: %w", err)
	}
	index, err := e.loadTaskIndex(ctx, tasks)
	if err != nil {
		return nil, 0, err
	}

	workers, err := e.store.ListWorkers(ctx, model.WorkerStatusActive)
	if err != nil {
		return nil, 0, fmt.Errorf("list workers: %w", err)
	}

	now := time.Now().UTC()
	bc := &buildContext{
		now:       now,
		horizon:   now.Add(time.Duration(e.config.HorizonDays) * 24 * time.Hour),
		tasks:     index,
		schedules: make(map[string][]model.Slot, len(workers)),
	}

	placedBy := make(map[string]string) // task ID → first worker that placed it
	built := 0

	for _, w := range workers {
		var inProgress, candidates []*model.Task
		for _, t := range tasks {
			switch {
			case t.Status == model.TaskStatusInProgress && t.AssignedTo == w.ID:
				inProgress = append(inProgress, t)
			case t.Status == model.TaskStatusPending && (t.AssignedTo == "" || t.AssignedTo == w.ID):
				candidates = append(candidates, t)
			}
		}
		SortCandidates(candidates)

		slots := buildWorkerSchedule(bc, w.ID, inProgress, candidates)
		bc.schedules[w.ID] = slots
		built += len(slots)

		for _, slot := range slots {
			if prev, dup := placedBy[slot.TaskID]; dup {
				// Unassigned candidates are visible to every builder; the
				// apply phase resolves duplicates last-write-wins.
				e.logger.Warn("task placed in multiple schedules",
					"task_id", slot.TaskID, "worker_id", w.ID, "also_in", prev)
			} else {
				placedBy[slot.TaskID] = w.ID
			}
		}

		e.logger.Debug("schedule built", "worker_id", w.ID, "slots", len(slots))
	}

	e.cache.Replace(bc.schedules)
	return bc.schedules, built, nil
}

// --- applying phase ---

// applyPhase writes confident placements back to the task records. Slots at
// or below the confidence floor are discarded and their tasks stay
// unscheduled for the cycle. Per-task write failures are logged and skipped;
// a partially applied cycle is corrected by the next one.
func (e *Engine) applyPhase(ctx context.Context, schedules map[string][]model.Slot) int {
	applied := 0
	for workerID, slots := range schedules {
		for _, slot := range slots {
			if slot.Confidence <= applyConfidenceFloor {
				continue
			}

			task, err := e.store.GetTask(ctx, slot.TaskID)
			if err != nil {
				e.logger.Error("load task for apply", "task_id", slot.TaskID, "error", err)
				continue
			}
			if task == nil {
				continue
			}

			start, end := slot.StartTime, slot.EndTime
			task.AssignedTo = workerID
			task.AutoScheduled = true
			task.ScheduledStart = &start
			task.ScheduledEnd = &end
			task.ScheduleConfidence = slot.Confidence
			task.ScheduleAtRisk = slot.AtRisk

			if err := e.store.UpdateTask(ctx, task); err != nil {
				e.logger.Error("apply slot", "task_id", task.ID, "error", err)
				continue
			}
			applied++
		}
	}
	return applied
}

// --- query and adjustment operations ---

// GetTaskSchedule returns the task's slot for the current cycle, falling back
// to the applied annotation when the cache has no entry. Returns nil when the
// task is unscheduled.
func (e *Engine) GetTaskSchedule(ctx context.Context, taskID string) (*model.Slot, error) {
	if slot, ok := e.cache.TaskSlot(taskID); ok {
		return &slot, nil
	}

	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if task == nil {
		return nil, model.NewNotFoundError("task", taskID)
	}
	if !task.AutoScheduled || task.ScheduledStart == nil || task.ScheduledEnd == nil {
		return nil, nil
	}
	return &model.Slot{
		TaskID:     task.ID,
		WorkerID:   task.AssignedTo,
		StartTime:  *task.ScheduledStart,
		EndTime:    *task.ScheduledEnd,
		Confidence: task.ScheduleConfidence,
		AtRisk:     task.ScheduleAtRisk,
	}, nil
}

// GetWorkerSchedule returns the worker's slot list for the current cycle.
func (e *Engine) GetWorkerSchedule(ctx context.Context, workerID string) ([]model.Slot, error) {
	w, err := e.store.GetWorker(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("get worker %s: %w", workerID, err)
	}
	if w == nil {
		return nil, model.NewNotFoundError("worker", workerID)
	}
	return e.cache.WorkerSchedule(workerID), nil
}

// AdjustPriority applies a manual ±20 point adjustment, clamped to [0,100],
// and records an audit event with the before/after scores.
func (e *Engine) AdjustPriority(ctx context.Context, taskID string, direction model.AdjustDirection, reason string) (*model.Task, error) {
	if !direction.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("invalid direction %q", direction))
	}

	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if task == nil {
		return nil, model.NewNotFoundError("task", taskID)
	}

	before := task.PriorityScore
	after := before + adjustStep
	if direction == model.AdjustReduce {
		after = before - adjustStep
	}
	if after > 100 {
		after = 100
	}
	if after < 0 {
		after = 0
	}

	if err := e.store.UpdateTaskScore(ctx, taskID, after); err != nil {
		return nil, fmt.Errorf("update score: %w", err)
	}
	task.PriorityScore = after

	e.audit(ctx, &model.AuditEvent{
		Type:   model.AuditPriorityAdjusted,
		TaskID: taskID,
		Reason: reason,
		Data: map[string]any{
			"direction":    string(direction),
			"before_score": before,
			"after_score":  after,
		},
	})

	e.logger.Info("priority adjusted",
		"task_id", taskID, "direction", string(direction),
		"before", before, "after", after, "reason", reason)
	return task, nil
}

// GetOptimizedList returns tasks matching the filter, sorted by descending
// priority score.
func (e *Engine) GetOptimizedList(ctx context.Context, filter model.TaskFilter) ([]*model.Task, int, error) {
	return e.store.ListTasks(ctx, filter)
}

// Status returns a snapshot of cycle health.
func (e *Engine) Status() CycleStatus {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.status
}

func (e *Engine) setState(s CycleState) {
	e.statusMu.Lock()
	e.status.State = s
	e.statusMu.Unlock()
}

// audit appends an audit event; audit failures are logged, never fatal.
func (e *Engine) audit(ctx context.Context, ev *model.AuditEvent) {
	ev.ID = "audit_" + uuid.New().String()
	ev.CreatedAt = time.Now().UTC()
	if err := e.store.AppendAudit(ctx, ev); err != nil {
		e.logger.Error("append audit", "type", string(ev.Type), "error", err)
	}
}
