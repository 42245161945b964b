package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/me/taskpilot/pkg/model"
)

type createWorkerRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (s *Server) handleCreateWorker(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req createWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body"))
		return
	}
	if req.Name == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid worker",
				model.FieldError{Field: "name", Message: "required"}))
		return
	}
	status := model.WorkerStatus(req.Status)
	if req.Status == "" {
		status = model.WorkerStatusActive
	} else if status != model.WorkerStatusActive && status != model.WorkerStatusInactive {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid worker",
				model.FieldError{Field: "status", Message: "must be active or inactive"}))
		return
	}

	worker := &model.Worker{
		ID:        "worker_" + uuid.New().String(),
		Name:      req.Name,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateWorker(r.Context(), worker); err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, worker)
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	status := model.WorkerStatus(r.URL.Query().Get("status"))

	workers, err := s.store.ListWorkers(r.Context(), status)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, workers)
}

func (s *Server) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	worker, err := s.store.GetWorker(r.Context(), id)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	if worker == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("worker", id))
		return
	}
	respondOK(w, reqID, worker)
}

func (s *Server) handleGetWorkerSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	slots, err := s.engine.GetWorkerSchedule(r.Context(), id)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{
		"worker_id": id,
		"slots":     slots,
	})
}
