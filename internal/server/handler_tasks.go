package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/me/taskpilot/pkg/model"
)

type createTaskRequest struct {
	ProjectID      string         `json:"project_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Priority       string         `json:"priority"`
	Category       string         `json:"category"`
	DueDate        *time.Time     `json:"due_date"`
	EstimatedHours *float64       `json:"estimated_hours"`
	DependsOn      []string       `json:"depends_on"`
	Blocks         []string       `json:"blocks"`
	AssignedTo     string         `json:"assigned_to"`
	Metadata       map[string]any `json:"metadata"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body"))
		return
	}

	var details []model.FieldError
	if req.Title == "" {
		details = append(details, model.FieldError{Field: "title", Message: "required"})
	}
	if req.ProjectID == "" {
		details = append(details, model.FieldError{Field: "project_id", Message: "required"})
	}
	priority := model.Priority(req.Priority)
	if req.Priority == "" {
		priority = model.PriorityMedium
	} else if !priority.Valid() {
		details = append(details, model.FieldError{Field: "priority", Message: "unknown priority level"})
	}
	if req.EstimatedHours != nil && *req.EstimatedHours <= 0 {
		details = append(details, model.FieldError{Field: "estimated_hours", Message: "must be positive"})
	}
	if len(details) > 0 {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid task", details...))
		return
	}

	now := time.Now().UTC()
	task := &model.Task{
		ID:             "task_" + uuid.New().String(),
		ProjectID:      req.ProjectID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         model.TaskStatusPending,
		Priority:       priority,
		Category:       req.Category,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		DependsOn:      req.DependsOn,
		Blocks:         req.Blocks,
		AssignedTo:     req.AssignedTo,
		Metadata:       req.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateTask(r.Context(), task); err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	filter := taskFilterFromQuery(r)

	tasks, total, err := s.store.ListTasks(r.Context(), filter)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}

	respondList(w, reqID, tasks, &model.Pagination{
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: filter.Offset+len(tasks) < total,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	task, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	if task == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", id))
		return
	}
	respondOK(w, reqID, task)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body"))
		return
	}
	status := model.TaskStatus(req.Status)
	if !status.Valid() {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("unknown status",
				model.FieldError{Field: "status", Message: "must be one of pending, in_progress, completed, blocked, cancelled"}))
		return
	}

	task, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	if task == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", id))
		return
	}

	task.Status = status
	if status.IsTerminal() {
		task.ClearSchedule()
	}
	if err := s.store.UpdateTask(r.Context(), task); err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleOptimizedTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	filter := taskFilterFromQuery(r)

	tasks, total, err := s.engine.GetOptimizedList(r.Context(), filter)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}

	respondList(w, reqID, tasks, &model.Pagination{
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: filter.Offset+len(tasks) < total,
	})
}

func (s *Server) handleGetTaskSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	slot, err := s.engine.GetTaskSchedule(r.Context(), id)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	if slot == nil {
		respondOK(w, reqID, map[string]any{"task_id": id, "scheduled": false})
		return
	}
	respondOK(w, reqID, slot)
}

type adjustPriorityRequest struct {
	Direction string `json:"direction"`
	Reason    string `json:"reason"`
}

func (s *Server) handleAdjustPriority(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req adjustPriorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body"))
		return
	}

	task, err := s.engine.AdjustPriority(r.Context(), id, model.AdjustDirection(req.Direction), req.Reason)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}

// taskFilterFromQuery reads the shared list filter query parameters.
func taskFilterFromQuery(r *http.Request) model.TaskFilter {
	q := r.URL.Query()
	filter := model.TaskFilter{
		ProjectID:  q.Get("project"),
		WorkerID:   q.Get("worker"),
		WorkerName: q.Get("worker_name"),
		Status:     model.TaskStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	filter.Clamp()
	return filter
}
