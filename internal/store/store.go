package store

import (
	"context"

	"github.com/me/taskpilot/pkg/model"
)

// Store defines the persistence layer consumed by the scheduling engine.
type Store interface {
	// Task operations
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, filter model.TaskFilter) ([]*model.Task, int, error)
	ListOpenTasks(ctx context.Context) ([]*model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	UpdateTaskScore(ctx context.Context, id string, score float64) error
	CountInProgress(ctx context.Context, workerID string) (int, error)

	// Project operations
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]*model.Project, error)

	// Worker operations
	CreateWorker(ctx context.Context, w *model.Worker) error
	GetWorker(ctx context.Context, id string) (*model.Worker, error)
	ListWorkers(ctx context.Context, status model.WorkerStatus) ([]*model.Worker, error)

	// Audit log (append-only)
	AppendAudit(ctx context.Context, ev *model.AuditEvent) error
	ListAudit(ctx context.Context, taskID string, limit int) ([]*model.AuditEvent, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
