package model

import "time"

// JobID identifies a submitted Job. IDs are assigned in submission order.
type JobID uint32

// SessionID identifies the caller that owns a Job.
type SessionID string

// PerfCounters holds the two hardware performance counter values sampled
// by an execution unit while running one sub-job.
type PerfCounters struct {
	Counter0 uint32 `json:"counter0"`
	Counter1 uint32 `json:"counter1"`
}

// Result is the outcome of a finished Job, handed to the owning session.
type Result struct {
	JobID        JobID          `json:"job_id"`
	Session      SessionID      `json:"session"`
	UserRef      string         `json:"user_ref,omitempty"`
	Status       JobStatus      `json:"status"`
	PerfCounters []PerfCounters `json:"perf_counters"`
	CompletedAt  time.Time      `json:"completed_at"`
}

// Succeeded reports whether every sub-job of the Job succeeded.
func (r *Result) Succeeded() bool {
	return r.Status == JobStatusSuccess
}
