package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures result listing with pagination and filtering.
type ListOptions struct {
	Limit   int
	Offset  int
	Status  string    // Optional job status filter (SUCCESS, FAILURE)
	Session SessionID // Optional owning session filter
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 50, Offset: 0}
}

// Clamp enforces limits (max 500, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// OpenSessionRequest is the body of POST /api/v1/sessions.
type OpenSessionRequest struct {
	Label string `json:"label"`
}

// SubmitJobRequest is the body of POST /api/v1/sessions/{id}/jobs.
type SubmitJobRequest struct {
	SubJobs         int    `json:"sub_jobs"`
	UserRef         string `json:"user_ref,omitempty"`
	Payloads        []any  `json:"payloads,omitempty"`
	PerfCounterSrc0 uint32 `json:"perf_counter_src0,omitempty"`
	PerfCounterSrc1 uint32 `json:"perf_counter_src1,omitempty"`
}

// SubmitJobResponse reports the id assigned to a submitted Job.
type SubmitJobResponse struct {
	JobID JobID `json:"job_id"`
}
