package hw

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/me/ppsched/pkg/model"
)

// SimConfig configures a simulated unit.
type SimConfig struct {
	Version     uint32
	Duration    time.Duration // wall time one sub-job takes
	FailureRate float64       // probability in [0,1] that a sub-job fails
}

// SimUnit is a software stand-in for an execution unit. Each accepted
// sub-job runs on its own goroutine for the configured duration.
type SimUnit struct {
	id     string
	cfg    SimConfig
	logger *slog.Logger

	mu      sync.Mutex
	busy    bool
	session model.SessionID
	cancel  context.CancelFunc
}

// NewSimUnit creates an idle simulated unit.
func NewSimUnit(id string, cfg SimConfig, logger *slog.Logger) *SimUnit {
	return &SimUnit{
		id:     id,
		cfg:    cfg,
		logger: logger.With("component", "sim-unit", "unit", id),
	}
}

// ID returns the unit id.
func (u *SimUnit) ID() string { return u.id }

// Version returns the configured core version.
func (u *SimUnit) Version() uint32 { return u.cfg.Version }

// Busy reports whether the unit is running a sub-job.
func (u *SimUnit) Busy() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.busy
}

// Start accepts the run unless the unit is already busy.
func (u *SimUnit) Start(r Run, done DoneFunc) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.busy {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	u.busy = true
	u.session = r.Job.Session()
	u.cancel = cancel

	go u.run(ctx, r, done)
	return true
}

// Abort cancels the running sub-job if it belongs to session.
func (u *SimUnit) Abort(session model.SessionID) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.busy && u.session == session && u.cancel != nil {
		u.logger.Debug("aborting sub-job", "session", session)
		u.cancel()
	}
}

func (u *SimUnit) run(ctx context.Context, r Run, done DoneFunc) {
	start := time.Now()
	timer := time.NewTimer(u.cfg.Duration)
	defer timer.Stop()

	success := false
	select {
	case <-timer.C:
		success = rand.Float64() >= u.cfg.FailureRate
	case <-ctx.Done():
	}

	src0, src1 := r.Job.PerfCounterSources()
	counters := model.PerfCounters{
		Counter0: uint32(time.Since(start)/time.Microsecond) + src0,
		Counter1: rand.Uint32N(1<<16) + src1,
	}

	// The unit is free before the scheduler hears about it; the slot stays
	// WORKING until done returns, so no new start can race in between.
	u.mu.Lock()
	u.busy = false
	u.session = ""
	u.cancel()
	u.cancel = nil
	u.mu.Unlock()

	u.logger.Debug("sub-job finished", "job_id", r.Job.ID(), "sub_job", r.SubJob, "success", success)
	done(Completion{
		Unit:     u,
		Job:      r.Job,
		SubJob:   r.SubJob,
		Success:  success,
		Counters: counters,
	})
}
