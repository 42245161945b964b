package model

import "time"

// AuditEventType classifies audit log entries.
type AuditEventType string

const (
	AuditPriorityAdjusted AuditEventType = "priority.adjusted"
	AuditCycleCompleted   AuditEventType = "cycle.completed"
	AuditCycleFailed      AuditEventType = "cycle.failed"
)

// AuditEvent is one append-only record of an engine decision or outcome.
type AuditEvent struct {
	ID        string         `json:"id"`
	Type      AuditEventType `json:"type"`
	TaskID    string         `json:"task_id,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AdjustDirection is the direction of a manual priority adjustment.
type AdjustDirection string

const (
	AdjustBoost  AdjustDirection = "boost"
	AdjustReduce AdjustDirection = "reduce"
)

// Valid returns true for a known adjustment direction.
func (d AdjustDirection) Valid() bool {
	return d == AdjustBoost || d == AdjustReduce
}
