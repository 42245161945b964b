package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all taskpilot tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id                  TEXT PRIMARY KEY,
		name                TEXT NOT NULL,
		stage               TEXT NOT NULL DEFAULT 'planning',
		progress            REAL NOT NULL DEFAULT 0,
		collaboration_score REAL,
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS workers (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id                  TEXT PRIMARY KEY,
		project_id          TEXT NOT NULL,
		title               TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		status              TEXT NOT NULL DEFAULT 'pending',
		priority            TEXT NOT NULL DEFAULT 'medium',
		category            TEXT NOT NULL DEFAULT '',
		due_date            TEXT,
		estimated_hours     REAL,
		depends_on          TEXT NOT NULL DEFAULT '[]',
		blocks              TEXT NOT NULL DEFAULT '[]',
		assigned_to         TEXT NOT NULL DEFAULT '',
		priority_score      REAL NOT NULL DEFAULT 0,
		auto_scheduled      INTEGER NOT NULL DEFAULT 0,
		scheduled_start     TEXT,
		scheduled_end       TEXT,
		schedule_confidence REAL NOT NULL DEFAULT 0,
		schedule_at_risk    INTEGER NOT NULL DEFAULT 0,
		metadata            TEXT NOT NULL DEFAULT '{}',
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS audit_events (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL,
		task_id    TEXT NOT NULL DEFAULT '',
		actor      TEXT NOT NULL DEFAULT '',
		reason     TEXT NOT NULL DEFAULT '',
		data       TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks(assigned_to)`,
	// Compound index for the per-worker load query (status + assignee)
	`CREATE INDEX IF NOT EXISTS idx_tasks_status_assigned ON tasks(status, assigned_to)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_priority_score ON tasks(priority_score)`,
	`CREATE INDEX IF NOT EXISTS idx_workers_status ON workers(status)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_task_id ON audit_events(task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_events(created_at)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
