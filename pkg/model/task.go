package model

import (
	"time"
)

// DefaultEstimatedHours is assumed for tasks without an effort estimate.
const DefaultEstimatedHours = 4.0

// Task is the atomic unit of schedulable work.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	Category    string     `json:"category,omitempty"`

	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`

	// DependsOn lists tasks that must complete before this one may start.
	// Blocks is the inverse edge set, maintained by the host system.
	DependsOn []string `json:"depends_on,omitempty"`
	Blocks    []string `json:"blocks,omitempty"`

	AssignedTo string `json:"assigned_to,omitempty"`

	// PriorityScore is recomputed every cycle for non-terminal tasks.
	PriorityScore float64 `json:"priority_score"`

	// Scheduling annotation, written back during the apply phase.
	AutoScheduled      bool       `json:"auto_scheduled"`
	ScheduledStart     *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd       *time.Time `json:"scheduled_end,omitempty"`
	ScheduleConfidence float64    `json:"schedule_confidence,omitempty"`
	// ScheduleAtRisk marks placements accepted past their due date because
	// no earlier gap could satisfy the deadline.
	ScheduleAtRisk bool `json:"schedule_at_risk,omitempty"`

	// Metadata carries free-form host data. The reserved key "businessValue"
	// (number, 0-100) feeds the business-value scoring factor.
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffortHours returns the estimated effort, defaulting when unestimated.
func (t *Task) EffortHours() float64 {
	if t.EstimatedHours != nil && *t.EstimatedHours > 0 {
		return *t.EstimatedHours
	}
	return DefaultEstimatedHours
}

// BusinessValue returns the explicit metadata business value in [0,100]
// and whether one is present.
func (t *Task) BusinessValue() (float64, bool) {
	if t.Metadata == nil {
		return 0, false
	}
	switch v := t.Metadata["businessValue"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// ClearSchedule drops the scheduling annotation.
func (t *Task) ClearSchedule() {
	t.AutoScheduled = false
	t.ScheduledStart = nil
	t.ScheduledEnd = nil
	t.ScheduleConfidence = 0
	t.ScheduleAtRisk = false
}
