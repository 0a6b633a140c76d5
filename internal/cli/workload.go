package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/ppsched/internal/config"
	"github.com/me/ppsched/internal/hw"
	"github.com/me/ppsched/internal/job"
	"github.com/me/ppsched/internal/scheduler"
	"github.com/me/ppsched/internal/session"
	"github.com/me/ppsched/pkg/model"
)

// Workload describes an in-process simulation run.
type Workload struct {
	Hardware  config.HardwareConfig  `yaml:"hardware"`
	Scheduler config.SchedulerConfig `yaml:"scheduler"`
	Streams   []Stream               `yaml:"streams"`
}

// Stream is one session submitting jobs back to back.
type Stream struct {
	Name    string `yaml:"name"`
	Jobs    int    `yaml:"jobs"`
	SubJobs int    `yaml:"sub_jobs"`
	// AbortAfter aborts the session once this many jobs were submitted.
	// 0 never aborts.
	AbortAfter int `yaml:"abort_after"`
}

// LoadWorkload reads and validates a workload file.
func LoadWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload file: %w", err)
	}
	var w Workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing workload file: %w", err)
	}
	if err := w.validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

func (w *Workload) validate() error {
	cfg := config.Default()
	cfg.Hardware = w.Hardware
	cfg.Scheduler = w.Scheduler
	errs := []error{cfg.Validate()}

	if len(w.Streams) == 0 {
		errs = append(errs, errors.New("streams: at least one stream required"))
	}
	for i, s := range w.Streams {
		if s.Jobs <= 0 {
			errs = append(errs, fmt.Errorf("streams[%d].jobs must be positive", i))
		}
		if s.AbortAfter < 0 || s.AbortAfter > s.Jobs {
			errs = append(errs, fmt.Errorf("streams[%d].abort_after must be between 0 and jobs", i))
		}
	}
	return errors.Join(errs...)
}

// StreamSummary is the outcome of one stream.
type StreamSummary struct {
	Name      string
	Submitted int
	Succeeded int
	Failed    int
	Dropped   int // submitted but never delivered (aborted before starting)
	SubJobs   int
	Counter0  uint64
}

// Summary is the outcome of a workload run.
type Summary struct {
	Units           int
	HardwareVersion uint32
	Streams         []StreamSummary
	Elapsed         time.Duration
	State           string // final scheduler dump
}

// countingUnit tracks how many runs a unit accepted and how many of their
// completions the scheduler has fully processed.
type countingUnit struct {
	hw.Unit
	started  atomic.Int64
	finished atomic.Int64
}

func (u *countingUnit) Start(r hw.Run, done hw.DoneFunc) bool {
	u.started.Add(1)
	ok := u.Unit.Start(r, func(c hw.Completion) {
		c.Unit = u
		done(c)
		u.finished.Add(1)
	})
	if !ok {
		u.started.Add(-1)
	}
	return ok
}

func (u *countingUnit) idle() bool {
	return u.started.Load() == u.finished.Load()
}

// RunWorkload builds simulated hardware and a scheduler, runs every stream
// concurrently and waits until all work has drained.
func RunWorkload(ctx context.Context, w *Workload, logger *slog.Logger) (*Summary, error) {
	topo, err := hw.BuildSimTopology(w.Hardware.Clusters, logger)
	if err != nil {
		return nil, fmt.Errorf("build topology: %w", err)
	}
	var units []hw.Unit
	var counting []*countingUnit
	for _, u := range topo.Units() {
		cu := &countingUnit{Unit: u}
		units = append(units, cu)
		counting = append(counting, cu)
	}

	depth := 1
	for _, s := range w.Streams {
		depth = max(depth, s.Jobs)
	}
	sessions := session.NewManager(depth, logger)

	policy := (&config.Config{Scheduler: w.Scheduler}).SchedulerPolicy()
	sched, err := scheduler.New(units, sessions, policy, logger, scheduler.WithSessionValidator(sessions))
	if err != nil {
		return nil, err
	}

	ids := make([]model.SessionID, len(w.Streams))
	for i, s := range w.Streams {
		ids[i] = sessions.Open(s.Name).ID
	}

	start := time.Now()
	summaries := make([]StreamSummary, len(w.Streams))
	var wg sync.WaitGroup
	for i, s := range w.Streams {
		wg.Add(1)
		go func(i int, s Stream) {
			defer wg.Done()
			summaries[i] = StreamSummary{Name: s.Name}
			summaries[i].Submitted = submitStream(ctx, sched, ids[i], s, logger)
		}(i, s)
	}
	wg.Wait()

	if err := waitDrained(ctx, sched, counting); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	for i := range w.Streams {
		results, err := sessions.Drain(ids[i], 0)
		if err != nil {
			return nil, err
		}
		sum := &summaries[i]
		for _, r := range results {
			if r.Succeeded() {
				sum.Succeeded++
			} else {
				sum.Failed++
			}
			sum.SubJobs += len(r.PerfCounters)
			for _, pc := range r.PerfCounters {
				sum.Counter0 += uint64(pc.Counter0)
			}
		}
		sum.Dropped = sum.Submitted - len(results)
		sessions.Close(ids[i])
	}

	var state strings.Builder
	sched.DumpState(&state)

	return &Summary{
		Units:           sched.SlotCount(),
		HardwareVersion: sched.HardwareVersion(),
		Streams:         summaries,
		Elapsed:         elapsed,
		State:           state.String(),
	}, nil
}

// submitStream submits the stream's jobs and returns how many were accepted.
// A full queue is retried after a short pause.
func submitStream(ctx context.Context, sched *scheduler.Scheduler, id model.SessionID, s Stream, logger *slog.Logger) int {
	submitted := 0
	for submitted < s.Jobs {
		_, err := sched.Submit(job.Descriptor{
			Session: id,
			SubJobs: s.SubJobs,
			UserRef: fmt.Sprintf("%s-%d", s.Name, submitted),
		})
		if errors.Is(err, scheduler.ErrQueueFull) {
			select {
			case <-ctx.Done():
				return submitted
			case <-time.After(time.Millisecond):
			}
			continue
		}
		if err != nil {
			logger.Error("submit", "stream", s.Name, "error", err)
			return submitted
		}
		submitted++
		if submitted == s.AbortAfter {
			sched.AbortSession(id)
			return submitted
		}
	}
	return submitted
}

// waitDrained polls until the queue is empty and every accepted run has been
// completed through the scheduler.
func waitDrained(ctx context.Context, sched *scheduler.Scheduler, units []*countingUnit) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if sched.Stats().Queued == 0 && allIdle(units) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for workload to drain: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func allIdle(units []*countingUnit) bool {
	for _, u := range units {
		if !u.idle() {
			return false
		}
	}
	return true
}
