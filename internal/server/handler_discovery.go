package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "ppsched API",
		Version:     "v1",
		Description: "Slot scheduler for pixel-processor render jobs",
		Endpoints: []endpointInfo{
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/api/v1/status", []string{"GET"}, "Slot count, hardware version, scheduler stats and slots"},
			{"/api/v1/state", []string{"GET"}, "Plain text dump of queue and slots"},
			{"/api/v1/suspend", []string{"POST"}, "Stop dispatch and wait until all slots are idle. Accepts ?timeout=5s"},
			{"/api/v1/resume", []string{"POST"}, "Undo one suspend"},
			{"/api/v1/sessions", []string{"POST"}, "Open a session"},
			{"/api/v1/sessions/{id}", []string{"DELETE"}, "Abort the session's jobs and close it"},
			{"/api/v1/sessions/{id}/jobs", []string{"POST"}, "Submit a job"},
			{"/api/v1/sessions/{id}/results", []string{"GET"}, "Collect buffered results. Accepts ?limit="},
			{"/api/v1/results", []string{"GET"}, "Stored results of this run, newest first"},
			{"/api/v1/results/{job_id}", []string{"GET"}, "Single stored result"},
		},
	})
}
