package model

// SubJobState represents the lifecycle state of one sub-job of a Job.
type SubJobState string

const (
	SubJobUnstarted SubJobState = "UNSTARTED"
	SubJobStarted   SubJobState = "STARTED"
	SubJobSucceeded SubJobState = "SUCCEEDED"
	SubJobFailed    SubJobState = "FAILED"
)

// String returns the string representation of the sub-job state.
func (s SubJobState) String() string {
	return string(s)
}

// IsCompleted returns true if the sub-job has finished, successfully or not.
func (s SubJobState) IsCompleted() bool {
	switch s {
	case SubJobSucceeded, SubJobFailed:
		return true
	}
	return false
}

// ValidSubJobTransitions defines the allowed state transitions for sub-jobs.
// UNSTARTED may go straight to FAILED when a job is rejected or its session
// is aborted before the sub-job was dispatched.
var ValidSubJobTransitions = map[SubJobState][]SubJobState{
	SubJobUnstarted: {SubJobStarted, SubJobFailed},
	SubJobStarted:   {SubJobSucceeded, SubJobFailed},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s SubJobState) CanTransitionTo(next SubJobState) bool {
	for _, allowed := range ValidSubJobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SlotState is the scheduler's cached view of whether a slot's unit is busy.
type SlotState string

const (
	SlotIdle    SlotState = "IDLE"
	SlotWorking SlotState = "WORKING"
)

// String returns the string representation of the slot state.
func (s SlotState) String() string {
	return string(s)
}

// JobStatus is the aggregated outcome delivered for a finished Job.
type JobStatus string

const (
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailure JobStatus = "FAILURE"
)

// String returns the string representation of the job status.
func (s JobStatus) String() string {
	return string(s)
}
