package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/me/taskpilot/pkg/model"
)

type createProjectRequest struct {
	Name               string   `json:"name"`
	Stage              string   `json:"stage"`
	Progress           float64  `json:"progress"`
	CollaborationScore *float64 `json:"collaboration_score"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body"))
		return
	}
	if req.Name == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid project",
				model.FieldError{Field: "name", Message: "required"}))
		return
	}
	stage := model.ProjectStage(req.Stage)
	if req.Stage == "" {
		stage = model.StagePlanning
	} else if !stage.Valid() {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid project",
				model.FieldError{Field: "stage", Message: "unknown stage"}))
		return
	}

	now := time.Now().UTC()
	p := &model.Project{
		ID:                 "proj_" + uuid.New().String(),
		Name:               req.Name,
		Stage:              stage,
		Progress:           req.Progress,
		CollaborationScore: req.CollaborationScore,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreateProject(r.Context(), p); err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	if p == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("project", id))
		return
	}
	respondOK(w, reqID, p)
}
