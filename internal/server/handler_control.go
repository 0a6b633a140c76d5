package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/me/ppsched/internal/scheduler"
	"github.com/me/ppsched/pkg/model"
)

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Slots           int                  `json:"slots"`
	HardwareVersion uint32               `json:"hardware_version"`
	Stats           scheduler.Stats      `json:"stats"`
	SlotStates      []scheduler.SlotInfo `json:"slot_states"`
	QueuedJobs      []model.JobID        `json:"queued_jobs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, StatusResponse{
		Slots:           s.scheduler.SlotCount(),
		HardwareVersion: s.scheduler.HardwareVersion(),
		Stats:           s.scheduler.Stats(),
		SlotStates:      s.scheduler.Slots(),
		QueuedJobs:      s.scheduler.QueuedJobs(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.scheduler.DumpState(&buf); err != nil {
		respondInternal(w, RequestIDFromContext(r.Context()), err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	ctx := r.Context()
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("timeout must be a positive duration such as 5s"))
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if err := s.scheduler.Suspend(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			respondError(w, reqID, http.StatusGatewayTimeout,
				&model.APIError{Code: model.ErrTimeout, Message: "slots did not drain before the timeout; suspension undone"})
			return
		}
		respondInternal(w, reqID, err)
		return
	}
	respondOK(w, reqID, s.scheduler.Stats())
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	s.scheduler.Resume()
	respondOK(w, reqID, s.scheduler.Stats())
}
