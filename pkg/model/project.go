package model

import "time"

// Project groups tasks and contributes stage/progress context to scoring.
type Project struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Stage    ProjectStage `json:"stage"`
	Progress float64      `json:"progress"` // percent complete, 0-100

	// CollaborationScore is an optional host-supplied health metric (0-100).
	CollaborationScore *float64 `json:"collaboration_score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
