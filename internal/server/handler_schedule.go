package server

import (
	"net/http"
	"strconv"
	"time"
)

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	scored, err := s.engine.RecalculateAllPriorities(r.Context())
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"tasks_scored": scored})
}

func (s *Server) handleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	applied, err := s.engine.GenerateOptimalSchedule(r.Context())
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"slots_applied": applied})
}

func (s *Server) handleScheduleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.engine.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, map[string]any{
		"status": "healthy",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	events, err := s.store.ListAudit(r.Context(), q.Get("task"), limit)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, events)
}
