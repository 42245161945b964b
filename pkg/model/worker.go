package model

import "time"

// Worker is an actor (human or automated) that can be assigned tasks and
// own a schedule. Load is derived from the store at read time, not stored.
type Worker struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Status WorkerStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

// Slot is one concrete time placement of a task on a worker's timeline.
type Slot struct {
	TaskID    string    `json:"task_id,omitempty"`
	WorkerID  string    `json:"worker_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Confidence in [0.1, 1.0] measures how well the placement satisfies
	// its constraints, mainly deadline fit.
	Confidence float64 `json:"confidence"`

	// AtRisk is set when the slot ends past the task's due date and no
	// earlier placement could be found.
	AtRisk bool `json:"at_risk,omitempty"`
}

// Duration returns the slot length.
func (s Slot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
