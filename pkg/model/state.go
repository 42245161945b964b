package model

// TaskStatus represents the lifecycle status of a Task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the task is in a final status. Terminal tasks
// are excluded from scoring and scheduling.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// Valid returns true for a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusBlocked, TaskStatusCancelled:
		return true
	}
	return false
}

// Priority is the declared urgency level of a task. It scales the computed
// composite score through Multiplier.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// Multiplier returns the score multiplier for the priority level.
// Unknown levels fall back to the medium multiplier.
func (p Priority) Multiplier() float64 {
	switch p {
	case PriorityLow:
		return 0.8
	case PriorityHigh:
		return 1.2
	case PriorityUrgent:
		return 1.5
	case PriorityCritical:
		return 2.0
	}
	return 1.0
}

// Valid returns true for a known priority level.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent, PriorityCritical:
		return true
	}
	return false
}

// ProjectStage represents the lifecycle stage of a Project.
type ProjectStage string

const (
	StagePlanning    ProjectStage = "planning"
	StageDevelopment ProjectStage = "development"
	StageTesting     ProjectStage = "testing"
	StageReview      ProjectStage = "review"
	StageMaintenance ProjectStage = "maintenance"
	StageArchived    ProjectStage = "archived"
)

// Valid returns true for a known project stage.
func (s ProjectStage) Valid() bool {
	switch s {
	case StagePlanning, StageDevelopment, StageTesting, StageReview,
		StageMaintenance, StageArchived:
		return true
	}
	return false
}

// WorkerStatus represents whether a worker participates in scheduling.
type WorkerStatus string

const (
	WorkerStatusActive   WorkerStatus = "active"
	WorkerStatusInactive WorkerStatus = "inactive"
)
