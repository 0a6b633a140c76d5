package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/ppsched/internal/job"
	"github.com/me/ppsched/internal/scheduler"
	"github.com/me/ppsched/pkg/model"
)

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("Invalid JSON body: "+err.Error()))
		return
	}

	respondCreated(w, reqID, s.sessions.Open(req.Label))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := model.SessionID(chi.URLParam(r, "id"))

	if !s.sessions.Valid(id) {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("session", string(id)))
		return
	}
	s.scheduler.AbortSession(id)
	if err := s.sessions.Close(id); err != nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("session", string(id)))
		return
	}
	respondOK(w, reqID, map[string]string{"id": string(id), "state": "closed"})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := model.SessionID(chi.URLParam(r, "id"))

	if !s.sessions.Valid(id) {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("session", string(id)))
		return
	}

	var req model.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("Invalid JSON body: "+err.Error()))
		return
	}

	// Descriptors failing the static check are still accepted: the scheduler
	// reports them through the session as FAILURE.
	jobID, err := s.scheduler.Submit(job.Descriptor{
		Session:         id,
		SubJobs:         req.SubJobs,
		UserRef:         req.UserRef,
		Payloads:        req.Payloads,
		PerfCounterSrc0: req.PerfCounterSrc0,
		PerfCounterSrc1: req.PerfCounterSrc1,
	})
	if errors.Is(err, scheduler.ErrQueueFull) {
		respondError(w, reqID, http.StatusServiceUnavailable,
			&model.APIError{Code: model.ErrQueueFull, Message: err.Error()})
		return
	}
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	respondCreated(w, reqID, model.SubmitJobResponse{JobID: jobID})
}

func (s *Server) handleSessionResults(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := model.SessionID(chi.URLParam(r, "id"))

	limit := 0
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}

	results, err := s.sessions.Drain(id, limit)
	if err != nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("session", string(id)))
		return
	}
	if results == nil {
		results = []model.Result{}
	}
	respondOK(w, reqID, results)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}

	opts := listOptions(r)
	results, total, err := s.store.ListResults(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if results == nil {
		results = []*model.Result{}
	}
	respondList(w, reqID, results, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}

	raw := chi.URLParam(r, "jobID")
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("job id must be a positive integer"))
		return
	}

	res, err := s.store.GetResult(r.Context(), model.JobID(n))
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if res == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("result", raw))
		return
	}
	respondOK(w, reqID, res)
}

func (s *Server) requireStore(w http.ResponseWriter, reqID string) bool {
	if s.store != nil {
		return true
	}
	respondError(w, reqID, http.StatusServiceUnavailable,
		&model.APIError{Code: model.ErrNoStore, Message: "result store is disabled"})
	return false
}
