package server

import (
	"fmt"
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	GoVersion       string `json:"go_version"`
	Uptime          string `json:"uptime"`
	Slots           int    `json:"slots"`
	HardwareVersion string `json:"hardware_version"`
	Sessions        int    `json:"sessions"`
	Store           string `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	storeState := "disabled"
	if s.store != nil {
		storeState = "ok"
		if _, err := s.store.CountByStatus(r.Context()); err != nil {
			storeState = "error: " + err.Error()
		}
	}

	respondOK(w, reqID, healthResponse{
		Status:          "healthy",
		Version:         Version,
		GoVersion:       runtime.Version(),
		Uptime:          time.Since(s.startTime).Round(time.Second).String(),
		Slots:           s.scheduler.SlotCount(),
		HardwareVersion: fmt.Sprintf("%#x", s.scheduler.HardwareVersion()),
		Sessions:        s.sessions.Len(),
		Store:           storeState,
	})
}
