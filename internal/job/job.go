// Package job holds the per-Job sub-job bookkeeping used by the scheduler.
//
// A Job is not safe for concurrent use. Every mutation happens while the
// scheduler's state lock is held; readers outside the scheduler only look at
// a Job after it has been handed over for delivery.
package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/me/ppsched/pkg/model"
)

// MaxSubJobs is the largest number of sub-jobs a single Job may carry.
const MaxSubJobs = 8

var (
	ErrNoSubJobs       = errors.New("job has no sub-jobs")
	ErrTooManySubJobs  = fmt.Errorf("job has more than %d sub-jobs", MaxSubJobs)
	ErrNoSession       = errors.New("job has no session")
	ErrPayloadMismatch = errors.New("payload count does not match sub-job count")
)

// Descriptor is the caller-supplied description of a Job.
type Descriptor struct {
	Session model.SessionID
	SubJobs int
	// UserRef is echoed back unchanged in the Result.
	UserRef string
	// Payloads, when set, holds one opaque payload per sub-job. The scheduler
	// passes them to the execution unit untouched.
	Payloads []any
	// PerfCounterSrc0 and PerfCounterSrc1 select which hardware counters the
	// unit samples for each sub-job.
	PerfCounterSrc0 uint32
	PerfCounterSrc1 uint32
}

// Check performs the static validity check a Job must pass before it can
// be queued.
func (d *Descriptor) Check() error {
	if d.SubJobs < 1 {
		return ErrNoSubJobs
	}
	if d.SubJobs > MaxSubJobs {
		return ErrTooManySubJobs
	}
	if d.Session == "" {
		return ErrNoSession
	}
	if len(d.Payloads) != 0 && len(d.Payloads) != d.SubJobs {
		return fmt.Errorf("%w: %d payloads for %d sub-jobs", ErrPayloadMismatch, len(d.Payloads), d.SubJobs)
	}
	return nil
}

// Job is a unit of submitted work divided into independently dispatchable
// sub-jobs.
type Job struct {
	id       model.JobID
	desc     Descriptor
	states   []model.SubJobState
	counters []model.PerfCounters

	started   int // sub-jobs that left UNSTARTED through a start
	completed int
	failed    int
	rejected  bool
}

// New creates a Job with every sub-job UNSTARTED. A descriptor with an out
// of range sub-job count yields a Job with no sub-jobs; such a Job is only
// ever rejected.
func New(id model.JobID, d Descriptor) *Job {
	n := d.SubJobs
	if n < 0 || n > MaxSubJobs {
		n = 0
	}
	j := &Job{
		id:       id,
		desc:     d,
		states:   make([]model.SubJobState, n),
		counters: make([]model.PerfCounters, n),
	}
	for i := range j.states {
		j.states[i] = model.SubJobUnstarted
	}
	return j
}

// ID returns the Job's id.
func (j *Job) ID() model.JobID { return j.id }

// Session returns the owning session.
func (j *Job) Session() model.SessionID { return j.desc.Session }

// UserRef returns the caller's opaque reference.
func (j *Job) UserRef() string { return j.desc.UserRef }

// SubJobCount returns the number of sub-jobs.
func (j *Job) SubJobCount() int { return len(j.states) }

// Payload returns the payload for sub-job i, or nil if none was given.
func (j *Job) Payload(i int) any {
	if i < 0 || i >= len(j.desc.Payloads) {
		return nil
	}
	return j.desc.Payloads[i]
}

// PerfCounterSources returns the counter selectors for this Job.
func (j *Job) PerfCounterSources() (src0, src1 uint32) {
	return j.desc.PerfCounterSrc0, j.desc.PerfCounterSrc1
}

// State returns the state of sub-job i.
func (j *Job) State(i int) model.SubJobState { return j.states[i] }

// PerfCounters returns the counters recorded for sub-job i.
func (j *Job) PerfCounters(i int) model.PerfCounters { return j.counters[i] }

// FirstUnstarted returns the lowest-indexed UNSTARTED sub-job.
func (j *Job) FirstUnstarted() (int, bool) {
	for i, s := range j.states {
		if s == model.SubJobUnstarted {
			return i, true
		}
	}
	return 0, false
}

// HasUnstarted reports whether any sub-job is still UNSTARTED.
func (j *Job) HasUnstarted() bool {
	_, ok := j.FirstUnstarted()
	return ok
}

// StartedCount returns how many sub-jobs have been started so far.
func (j *Job) StartedCount() int { return j.started }

// InFlight returns how many sub-jobs are STARTED and not yet completed.
func (j *Job) InFlight() int {
	n := 0
	for _, s := range j.states {
		if s == model.SubJobStarted {
			n++
		}
	}
	return n
}

// MarkStarted moves sub-job i from UNSTARTED to STARTED.
func (j *Job) MarkStarted(i int) error {
	if err := j.transition(i, model.SubJobStarted); err != nil {
		return err
	}
	j.started++
	return nil
}

// MarkCompleted moves sub-job i from STARTED to SUCCEEDED or FAILED and
// records its perf counters.
func (j *Job) MarkCompleted(i int, success bool, pc model.PerfCounters) error {
	if i < 0 || i >= len(j.states) || j.states[i] != model.SubJobStarted {
		return j.invalid(i, completedState(success))
	}
	if err := j.transition(i, completedState(success)); err != nil {
		return err
	}
	j.counters[i] = pc
	j.completed++
	if !success {
		j.failed++
	}
	return nil
}

// Reject marks every sub-job as failed without running it. Used for Jobs
// that fail the static validity check.
func (j *Job) Reject() {
	j.rejected = true
	j.failUnstarted()
}

// AbortUnstarted stops any further sub-job of the Job from being started.
// It returns true if some sub-job is still running on a unit, in which case
// the remaining UNSTARTED sub-jobs are marked FAILED and the Job stays alive
// until the running ones complete. It returns false, leaving the Job
// untouched, if nothing is running and the Job can simply be discarded.
func (j *Job) AbortUnstarted() bool {
	if j.InFlight() == 0 {
		return false
	}
	j.failUnstarted()
	return true
}

// IsComplete reports whether every sub-job has completed.
func (j *Job) IsComplete() bool {
	return j.completed == len(j.states)
}

// WasSuccess reports whether every sub-job succeeded.
func (j *Job) WasSuccess() bool {
	return !j.rejected && j.failed == 0 && j.IsComplete()
}

// Result packages the Job's aggregated outcome for delivery.
func (j *Job) Result(completedAt time.Time) model.Result {
	status := model.JobStatusFailure
	if j.WasSuccess() {
		status = model.JobStatusSuccess
	}
	counters := make([]model.PerfCounters, len(j.counters))
	copy(counters, j.counters)
	return model.Result{
		JobID:        j.id,
		Session:      j.desc.Session,
		UserRef:      j.desc.UserRef,
		Status:       status,
		PerfCounters: counters,
		CompletedAt:  completedAt,
	}
}

func (j *Job) failUnstarted() {
	for i, s := range j.states {
		if s == model.SubJobUnstarted {
			j.states[i] = model.SubJobFailed
			j.completed++
			j.failed++
		}
	}
}

func (j *Job) transition(i int, next model.SubJobState) error {
	if i < 0 || i >= len(j.states) || !j.states[i].CanTransitionTo(next) {
		return j.invalid(i, next)
	}
	j.states[i] = next
	return nil
}

func (j *Job) invalid(i int, next model.SubJobState) error {
	from := "OUT_OF_RANGE"
	if i >= 0 && i < len(j.states) {
		from = j.states[i].String()
	}
	return &model.InvalidTransitionError{
		Entity: "SubJob",
		ID:     fmt.Sprintf("%d/%d", j.id, i),
		From:   from,
		To:     next.String(),
	}
}

func completedState(success bool) model.SubJobState {
	if success {
		return model.SubJobSucceeded
	}
	return model.SubJobFailed
}
