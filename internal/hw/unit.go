// Package hw models the execution units the scheduler dispatches sub-jobs
// to. Real register access lives outside this repository; the package
// defines the boundary and a simulated unit that stands in for hardware.
package hw

import (
	"github.com/me/ppsched/internal/job"
	"github.com/me/ppsched/pkg/model"
)

// Run identifies one sub-job handed to a unit.
type Run struct {
	Job    *job.Job
	SubJob int
}

// Completion is what a unit reports when a sub-job finishes.
type Completion struct {
	Unit     Unit
	Job      *job.Job
	SubJob   int
	Success  bool
	Counters model.PerfCounters
}

// DoneFunc receives a unit's completion report. It may be called on any
// goroutine, in any order relative to other units.
type DoneFunc func(Completion)

// Unit is an execution unit able to run one sub-job at a time.
type Unit interface {
	// ID returns a stable identifier for the unit.
	ID() string

	// Version returns the hardware core version.
	Version() uint32

	// Start begins running the sub-job and returns true if the unit accepted
	// it. It must not block: the scheduler calls it with its state lock held.
	// An accepted run is reported exactly once through done.
	Start(r Run, done DoneFunc) bool

	// Abort forces early completion of the running sub-job if it belongs to
	// session. The outcome arrives through the normal DoneFunc.
	Abort(session model.SessionID)
}
