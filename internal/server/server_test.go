package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/me/taskpilot/internal/config"
	"github.com/me/taskpilot/internal/logging"
	"github.com/me/taskpilot/internal/scheduler"
	"github.com/me/taskpilot/internal/scoring"
	"github.com/me/taskpilot/internal/store"
	"github.com/me/taskpilot/pkg/model"
)

func testServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	scorer, err := scoring.NewScorer(nil)
	if err != nil {
		t.Fatalf("scorer: %v", err)
	}
	eng := scheduler.NewEngine(st, scorer, scheduler.DefaultConfig(), logging.Discard())

	return New(config.ServerConfig{}, st, eng, logging.Discard()), st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) (*httptest.ResponseRecorder, model.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp model.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return rec, resp
}

func decodeData(t *testing.T, resp model.Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("remarshal data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Status != "ok" {
		t.Errorf("envelope status = %q, want ok", resp.Status)
	}
	if resp.RequestID == "" {
		t.Error("missing request id")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestCreateTask(t *testing.T) {
	srv, st := testServer(t)

	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/tasks/", map[string]any{
		"project_id":      "p1",
		"title":           "write the parser",
		"priority":        "high",
		"estimated_hours": 3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var task model.Task
	decodeData(t, resp, &task)
	if task.ID == "" || task.Title != "write the parser" || task.Priority != model.PriorityHigh {
		t.Errorf("task = %+v", task)
	}
	if task.Status != model.TaskStatusPending {
		t.Errorf("status = %s, want pending", task.Status)
	}

	stored, err := st.GetTask(context.Background(), task.ID)
	if err != nil || stored == nil {
		t.Fatalf("task not persisted: %v", err)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	srv, _ := testServer(t)

	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/tasks/", map[string]any{
		"priority": "urgent-ish",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != model.ErrValidation {
		t.Fatalf("error = %+v", resp.Error)
	}
	fields := make(map[string]bool)
	for _, d := range resp.Error.Details {
		fields[d.Field] = true
	}
	for _, f := range []string{"title", "project_id", "priority"} {
		if !fields[f] {
			t.Errorf("missing field error for %s (got %+v)", f, resp.Error.Details)
		}
	}
}

func TestGetTask_NotFound(t *testing.T) {
	srv, _ := testServer(t)

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/tasks/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != model.ErrNotFound {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestListTasks_Pagination(t *testing.T) {
	srv, st := testServer(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		err := st.CreateTask(ctx, &model.Task{
			ID: id, Title: id, ProjectID: "p1",
			Status: model.TaskStatusPending, Priority: model.PriorityMedium,
			PriorityScore: float64(90 - i*10),
			CreatedAt:     now, UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/tasks/?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var tasks []model.Task
	decodeData(t, resp, &tasks)
	if len(tasks) != 2 || tasks[0].ID != "a" {
		t.Errorf("page = %+v", tasks)
	}
	if resp.Pagination == nil || resp.Pagination.Total != 3 || !resp.Pagination.HasMore {
		t.Errorf("pagination = %+v", resp.Pagination)
	}
}

func TestUpdateTaskStatus_TerminalClearsSchedule(t *testing.T) {
	srv, st := testServer(t)
	ctx := context.Background()

	start := time.Now().UTC()
	end := start.Add(2 * time.Hour)
	err := st.CreateTask(ctx, &model.Task{
		ID: "t1", Title: "t1", Status: model.TaskStatusInProgress,
		Priority: model.PriorityMedium, AssignedTo: "w1",
		AutoScheduled: true, ScheduledStart: &start, ScheduledEnd: &end,
		ScheduleConfidence: 0.9,
		CreatedAt:          start, UpdatedAt: start,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, resp := doJSON(t, srv, http.MethodPatch, "/api/v1/tasks/t1/status",
		map[string]string{"status": "completed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var task model.Task
	decodeData(t, resp, &task)
	if task.Status != model.TaskStatusCompleted {
		t.Errorf("status = %s", task.Status)
	}
	if task.AutoScheduled || task.ScheduledStart != nil || task.ScheduleConfidence != 0 {
		t.Errorf("schedule annotation not cleared: %+v", task)
	}

	if rec, _ := doJSON(t, srv, http.MethodPatch, "/api/v1/tasks/t1/status",
		map[string]string{"status": "paused"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status: code = %d, want 400", rec.Code)
	}
}

func TestAdjustPriorityEndpoint(t *testing.T) {
	srv, st := testServer(t)
	ctx := context.Background()

	now := time.Now().UTC()
	err := st.CreateTask(ctx, &model.Task{
		ID: "t1", Title: "t1", Status: model.TaskStatusPending,
		Priority: model.PriorityMedium, PriorityScore: 50,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/tasks/t1/priority",
		map[string]string{"direction": "boost", "reason": "customer escalation"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var task model.Task
	decodeData(t, resp, &task)
	if task.PriorityScore != 70 {
		t.Errorf("score = %v, want 70", task.PriorityScore)
	}

	if rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/tasks/t1/priority",
		map[string]string{"direction": "sideways"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad direction: code = %d, want 400", rec.Code)
	}

	rec, resp = doJSON(t, srv, http.MethodGet, "/api/v1/audit?task=t1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d", rec.Code)
	}
	var events []model.AuditEvent
	decodeData(t, resp, &events)
	if len(events) != 1 || events[0].Type != model.AuditPriorityAdjusted {
		t.Errorf("audit events = %+v", events)
	}
}

func TestScheduleEndpoints(t *testing.T) {
	srv, st := testServer(t)
	ctx := context.Background()

	_, resp := doJSON(t, srv, http.MethodPost, "/api/v1/workers/", map[string]string{"name": "ada"})
	var worker model.Worker
	decodeData(t, resp, &worker)
	if worker.ID == "" || worker.Status != model.WorkerStatusActive {
		t.Fatalf("worker = %+v", worker)
	}

	now := time.Now().UTC()
	hours := 2.0
	err := st.CreateTask(ctx, &model.Task{
		ID: "t1", Title: "t1", ProjectID: "p1",
		Status: model.TaskStatusPending, Priority: model.PriorityHigh,
		EstimatedHours: &hours,
		CreatedAt:      now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/priorities/recalculate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recalculate status = %d", rec.Code)
	}
	var counts map[string]float64
	decodeData(t, resp, &counts)
	if counts["tasks_scored"] != 1 {
		t.Errorf("tasks_scored = %v, want 1", counts["tasks_scored"])
	}

	rec, resp = doJSON(t, srv, http.MethodPost, "/api/v1/schedule/generate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d", rec.Code)
	}
	decodeData(t, resp, &counts)
	if counts["slots_applied"] != 1 {
		t.Errorf("slots_applied = %v, want 1", counts["slots_applied"])
	}

	rec, resp = doJSON(t, srv, http.MethodGet, "/api/v1/tasks/t1/schedule", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("task schedule status = %d", rec.Code)
	}
	var slot model.Slot
	decodeData(t, resp, &slot)
	if slot.TaskID != "t1" || slot.WorkerID != worker.ID {
		t.Errorf("slot = %+v", slot)
	}

	rec, resp = doJSON(t, srv, http.MethodGet, "/api/v1/workers/"+worker.ID+"/schedule", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("worker schedule status = %d", rec.Code)
	}
	var workerSched struct {
		WorkerID string       `json:"worker_id"`
		Slots    []model.Slot `json:"slots"`
	}
	decodeData(t, resp, &workerSched)
	if workerSched.WorkerID != worker.ID || len(workerSched.Slots) != 1 {
		t.Errorf("worker schedule = %+v", workerSched)
	}

	rec, resp = doJSON(t, srv, http.MethodGet, "/api/v1/schedule/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status status = %d", rec.Code)
	}
	var status scheduler.CycleStatus
	decodeData(t, resp, &status)
	if status.State != scheduler.StateIdle {
		t.Errorf("state = %s, want idle", status.State)
	}
}

func TestProjectEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/projects/", map[string]any{
		"name": "atlas", "stage": "development", "progress": 30,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var project model.Project
	decodeData(t, resp, &project)
	if project.ID == "" || project.Stage != model.StageDevelopment {
		t.Fatalf("project = %+v", project)
	}

	rec, resp = doJSON(t, srv, http.MethodGet, "/api/v1/projects/"+project.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	if rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/projects/",
		map[string]string{"stage": "development"}); rec.Code != http.StatusBadRequest {
		t.Errorf("nameless project: code = %d, want 400", rec.Code)
	}
}

func TestUnscheduledTaskSchedule(t *testing.T) {
	srv, st := testServer(t)
	ctx := context.Background()

	now := time.Now().UTC()
	err := st.CreateTask(ctx, &model.Task{
		ID: "t1", Title: "t1", Status: model.TaskStatusPending,
		Priority: model.PriorityMedium, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/tasks/t1/schedule", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	decodeData(t, resp, &body)
	if body["scheduled"] != false {
		t.Errorf("body = %v, want scheduled=false", body)
	}
}
