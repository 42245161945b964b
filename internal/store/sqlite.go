package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/taskpilot/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- time helpers ---

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// --- Task operations ---

const taskColumns = `id, project_id, title, description, status, priority, category,
	due_date, estimated_hours, depends_on, blocks, assigned_to, priority_score,
	auto_scheduled, scheduled_start, scheduled_end, schedule_confidence,
	schedule_at_risk, metadata, created_at, updated_at`

func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.Task) error {
	s.logger.Debug("sql", "op", "insert", "table", "tasks", "id", task.ID)

	dependsJSON, err := json.Marshal(sliceOrEmpty(task.DependsOn))
	if err != nil {
		return fmt.Errorf("marshal depends_on: %w", err)
	}
	blocksJSON, err := json.Marshal(sliceOrEmpty(task.Blocks))
	if err != nil {
		return fmt.Errorf("marshal blocks: %w", err)
	}
	metaJSON, err := json.Marshal(mapOrEmpty(task.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ProjectID, task.Title, task.Description,
		string(task.Status), string(task.Priority), task.Category,
		fmtTimePtr(task.DueDate), task.EstimatedHours,
		string(dependsJSON), string(blocksJSON), task.AssignedTo,
		task.PriorityScore, boolToInt(task.AutoScheduled),
		fmtTimePtr(task.ScheduledStart), fmtTimePtr(task.ScheduledEnd),
		task.ScheduleConfidence, boolToInt(task.ScheduleAtRisk),
		string(metaJSON), fmtTime(task.CreatedAt), fmtTime(task.UpdatedAt),
	)
	return err
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	s.logger.Debug("sql", "op", "select", "table", "tasks", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

// ListTasks returns tasks matching the filter ordered by descending
// priority_score, plus the unpaginated match count.
func (s *SQLiteStore) ListTasks(ctx context.Context, filter model.TaskFilter) ([]*model.Task, int, error) {
	filter.Clamp()
	s.logger.Debug("sql", "op", "select", "table", "tasks", "filter_project", filter.ProjectID)

	var conds []string
	var args []any
	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.WorkerID != "" {
		conds = append(conds, "assigned_to = ?")
		args = append(args, filter.WorkerID)
	}
	if filter.WorkerName != "" {
		conds = append(conds, "assigned_to IN (SELECT id FROM workers WHERE name = ?)")
		args = append(args, filter.WorkerName)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where +
		` ORDER BY priority_score DESC, created_at ASC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListOpenTasks returns every task not in a terminal status.
func (s *SQLiteStore) ListOpenTasks(ctx context.Context) ([]*model.Task, error) {
	s.logger.Debug("sql", "op", "select", "table", "tasks", "scope", "open")

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status NOT IN (?, ?) ORDER BY created_at ASC`,
		string(model.TaskStatusCompleted), string(model.TaskStatusCancelled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, task *model.Task) error {
	s.logger.Debug("sql", "op", "update", "table", "tasks", "id", task.ID)

	dependsJSON, err := json.Marshal(sliceOrEmpty(task.DependsOn))
	if err != nil {
		return fmt.Errorf("marshal depends_on: %w", err)
	}
	blocksJSON, err := json.Marshal(sliceOrEmpty(task.Blocks))
	if err != nil {
		return fmt.Errorf("marshal blocks: %w", err)
	}
	metaJSON, err := json.Marshal(mapOrEmpty(task.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	task.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET project_id = ?, title = ?, description = ?, status = ?,
		 priority = ?, category = ?, due_date = ?, estimated_hours = ?,
		 depends_on = ?, blocks = ?, assigned_to = ?, priority_score = ?,
		 auto_scheduled = ?, scheduled_start = ?, scheduled_end = ?,
		 schedule_confidence = ?, schedule_at_risk = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		task.ProjectID, task.Title, task.Description, string(task.Status),
		string(task.Priority), task.Category, fmtTimePtr(task.DueDate),
		task.EstimatedHours, string(dependsJSON), string(blocksJSON),
		task.AssignedTo, task.PriorityScore, boolToInt(task.AutoScheduled),
		fmtTimePtr(task.ScheduledStart), fmtTimePtr(task.ScheduledEnd),
		task.ScheduleConfidence, boolToInt(task.ScheduleAtRisk),
		string(metaJSON), fmtTime(task.UpdatedAt), task.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NewNotFoundError("task", task.ID)
	}
	return nil
}

// UpdateTaskScore persists only the recomputed priority score.
func (s *SQLiteStore) UpdateTaskScore(ctx context.Context, id string, score float64) error {
	s.logger.Debug("sql", "op", "update", "table", "tasks", "id", id, "score", score)

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET priority_score = ?, updated_at = ? WHERE id = ?`,
		score, fmtTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NewNotFoundError("task", id)
	}
	return nil
}

// CountInProgress returns the number of in_progress tasks assigned to a worker.
func (s *SQLiteStore) CountInProgress(ctx context.Context, workerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE status = ? AND assigned_to = ?`,
		string(model.TaskStatusInProgress), workerID).Scan(&n)
	return n, err
}

// --- Project operations ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p *model.Project) error {
	s.logger.Debug("sql", "op", "insert", "table", "projects", "id", p.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, stage, progress, collaboration_score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Stage), p.Progress, p.CollaborationScore,
		fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	return err
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	s.logger.Debug("sql", "op", "select", "table", "projects", "id", id)

	var p model.Project
	var stage, createdAt, updatedAt string
	var collab sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, stage, progress, collaboration_score, created_at, updated_at
		 FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &stage, &p.Progress, &collab, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.Stage = model.ProjectStage(stage)
	if collab.Valid {
		v := collab.Float64
		p.CollaborationScore = &v
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*model.Project, error) {
	s.logger.Debug("sql", "op", "select", "table", "projects")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	projects := make([]*model.Project, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			projects = append(projects, p)
		}
	}
	return projects, nil
}

// --- Worker operations ---

func (s *SQLiteStore) CreateWorker(ctx context.Context, w *model.Worker) error {
	s.logger.Debug("sql", "op", "insert", "table", "workers", "id", w.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workers (id, name, status, created_at) VALUES (?, ?, ?, ?)`,
		w.ID, w.Name, string(w.Status), fmtTime(w.CreatedAt))
	return err
}

func (s *SQLiteStore) GetWorker(ctx context.Context, id string) (*model.Worker, error) {
	s.logger.Debug("sql", "op", "select", "table", "workers", "id", id)

	var w model.Worker
	var status, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, created_at FROM workers WHERE id = ?`, id,
	).Scan(&w.ID, &w.Name, &status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.Status = model.WorkerStatus(status)
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &w, nil
}

// ListWorkers returns workers, optionally filtered by status.
func (s *SQLiteStore) ListWorkers(ctx context.Context, status model.WorkerStatus) ([]*model.Worker, error) {
	s.logger.Debug("sql", "op", "select", "table", "workers", "status", string(status))

	query := `SELECT id, name, status, created_at FROM workers`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*model.Worker
	for rows.Next() {
		var w model.Worker
		var st, createdAt string
		if err := rows.Scan(&w.ID, &w.Name, &st, &createdAt); err != nil {
			return nil, err
		}
		w.Status = model.WorkerStatus(st)
		if w.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		workers = append(workers, &w)
	}
	return workers, rows.Err()
}

// --- Audit log ---

func (s *SQLiteStore) AppendAudit(ctx context.Context, ev *model.AuditEvent) error {
	s.logger.Debug("sql", "op", "insert", "table", "audit_events", "type", string(ev.Type))

	dataJSON, err := json.Marshal(mapOrEmpty(ev.Data))
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, type, task_id, actor, reason, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Type), ev.TaskID, ev.Actor, ev.Reason,
		string(dataJSON), fmtTime(ev.CreatedAt))
	return err
}

// ListAudit returns audit events newest first, optionally filtered by task.
func (s *SQLiteStore) ListAudit(ctx context.Context, taskID string, limit int) ([]*model.AuditEvent, error) {
	s.logger.Debug("sql", "op", "select", "table", "audit_events", "task_id", taskID)

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, type, task_id, actor, reason, data, created_at FROM audit_events`
	var args []any
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var typ, dataJSON, createdAt string
		if err := rows.Scan(&ev.ID, &typ, &ev.TaskID, &ev.Actor, &ev.Reason, &dataJSON, &createdAt); err != nil {
			return nil, err
		}
		ev.Type = model.AuditEventType(typ)
		if err := json.Unmarshal([]byte(dataJSON), &ev.Data); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// --- row scanning ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var t model.Task
	var status, priority, dependsJSON, blocksJSON, metaJSON string
	var dueDate, schedStart, schedEnd sql.NullString
	var estimated sql.NullFloat64
	var autoScheduled, atRisk int
	var createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status,
		&priority, &t.Category, &dueDate, &estimated, &dependsJSON, &blocksJSON,
		&t.AssignedTo, &t.PriorityScore, &autoScheduled, &schedStart, &schedEnd,
		&t.ScheduleConfidence, &atRisk, &metaJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.Status = model.TaskStatus(status)
	t.Priority = model.Priority(priority)
	t.AutoScheduled = autoScheduled != 0
	t.ScheduleAtRisk = atRisk != 0
	if estimated.Valid {
		v := estimated.Float64
		t.EstimatedHours = &v
	}
	if t.DueDate, err = parseTimePtr(dueDate); err != nil {
		return nil, fmt.Errorf("parse due_date: %w", err)
	}
	if t.ScheduledStart, err = parseTimePtr(schedStart); err != nil {
		return nil, fmt.Errorf("parse scheduled_start: %w", err)
	}
	if t.ScheduledEnd, err = parseTimePtr(schedEnd); err != nil {
		return nil, fmt.Errorf("parse scheduled_end: %w", err)
	}
	if err := json.Unmarshal([]byte(dependsJSON), &t.DependsOn); err != nil {
		return nil, fmt.Errorf("unmarshal depends_on: %w", err)
	}
	if err := json.Unmarshal([]byte(blocksJSON), &t.Blocks); err != nil {
		return nil, fmt.Errorf("unmarshal blocks: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &t.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*model.Task, error) {
	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mapOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
