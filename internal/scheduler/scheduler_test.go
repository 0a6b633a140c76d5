package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/me/ppsched/internal/hw"
	"github.com/me/ppsched/internal/job"
	"github.com/me/ppsched/pkg/model"
)

// fakeUnit records every start and only completes when the test says so.
type fakeUnit struct {
	id      string
	version uint32

	mu      sync.Mutex
	reject  bool
	runs    []hw.Run
	current *hw.Run
	done    hw.DoneFunc
	aborts  []model.SessionID
}

func (u *fakeUnit) ID() string      { return u.id }
func (u *fakeUnit) Version() uint32 { return u.version }

func (u *fakeUnit) Start(r hw.Run, done hw.DoneFunc) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.reject || u.current != nil {
		return false
	}
	u.runs = append(u.runs, r)
	u.current = &r
	u.done = done
	return true
}

func (u *fakeUnit) Abort(session model.SessionID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.aborts = append(u.aborts, session)
}

func (u *fakeUnit) setReject(v bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reject = v
}

// finish reports completion of the running sub-job through the DoneFunc the
// scheduler handed to Start.
func (u *fakeUnit) finish(t *testing.T, success bool, pc model.PerfCounters) {
	t.Helper()
	u.mu.Lock()
	r, done := u.current, u.done
	u.current, u.done = nil, nil
	u.mu.Unlock()

	if r == nil {
		t.Fatalf("unit %s has nothing running", u.id)
	}
	done(hw.Completion{Unit: u, Job: r.Job, SubJob: r.SubJob, Success: success, Counters: pc})
}

// running returns the Job id and sub-job the unit is running.
func (u *fakeUnit) running() (model.JobID, int, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.current == nil {
		return 0, 0, false
	}
	return u.current.Job.ID(), u.current.SubJob, true
}

func (u *fakeUnit) runCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.runs)
}

func (u *fakeUnit) abortCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.aborts)
}

// recordingSink keeps every delivered result.
type recordingSink struct {
	mu      sync.Mutex
	results []model.Result
}

func (r *recordingSink) Deliver(res model.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

func (r *recordingSink) all() []model.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Result, len(r.results))
	copy(out, r.results)
	return out
}

type validatorFunc func(model.SessionID) bool

func (f validatorFunc) Valid(id model.SessionID) bool { return f(id) }

// testSetup creates a scheduler over n fake units.
func testSetup(t *testing.T, n int, cfg Config, opts ...Option) (*Scheduler, []*fakeUnit, *recordingSink) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fakes := make([]*fakeUnit, n)
	units := make([]hw.Unit, n)
	for i := range fakes {
		fakes[i] = &fakeUnit{id: fmt.Sprintf("u%d", i), version: 0xCD07}
		units[i] = fakes[i]
	}
	sk := &recordingSink{}
	s, err := New(units, sk, cfg, logger, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, fakes, sk
}

func submit(t *testing.T, s *Scheduler, session model.SessionID, subJobs int) model.JobID {
	t.Helper()
	id, err := s.Submit(job.Descriptor{Session: session, SubJobs: subJobs})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return id
}

// checkInvariants verifies the slot accounting, queue membership and drain
// gate invariants at a quiescent point.
func checkInvariants(t *testing.T, s *Scheduler) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	working := 0
	for i := range s.slots {
		if s.slots[i].state == model.SlotWorking {
			working++
			if s.slots[i].job == nil {
				t.Errorf("slot %d WORKING without a job", i)
			}
		}
	}
	if s.idle < 0 || s.idle > len(s.slots) {
		t.Errorf("idle = %d out of range [0,%d]", s.idle, len(s.slots))
	}
	if s.idle+working != len(s.slots) {
		t.Errorf("idle(%d) + working(%d) != slots(%d)", s.idle, working, len(s.slots))
	}
	for e := s.queue.Front(); e != nil; e = e.Next() {
		if j := e.Value.(*job.Job); !j.HasUnstarted() {
			t.Errorf("job %d queued without unstarted sub-jobs", j.ID())
		}
	}
	if held := s.drain.held(); held != (s.idle < len(s.slots)) {
		t.Errorf("drain gate held=%v with idle=%d/%d", held, s.idle, len(s.slots))
	}
}

func assertQueued(t *testing.T, s *Scheduler, want ...model.JobID) {
	t.Helper()
	got := s.QueuedJobs()
	if len(got) != len(want) {
		t.Fatalf("queued = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("queued = %v, want %v", got, want)
		}
	}
}

func assertRunning(t *testing.T, u *fakeUnit, jobID model.JobID, sub int) {
	t.Helper()
	id, s, ok := u.running()
	if !ok {
		t.Fatalf("unit %s idle, want job %d sub-job %d", u.id, jobID, sub)
	}
	if id != jobID || s != sub {
		t.Fatalf("unit %s runs job %d sub-job %d, want job %d sub-job %d", u.id, id, s, jobID, sub)
	}
}

func TestNew_UnitBounds(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := New(nil, &recordingSink{}, DefaultConfig(), logger); !errors.Is(err, hw.ErrNoUnits) {
		t.Errorf("no units: err = %v, want ErrNoUnits", err)
	}
	units := make([]hw.Unit, hw.MaxUnits+1)
	for i := range units {
		units[i] = &fakeUnit{id: fmt.Sprintf("u%d", i)}
	}
	if _, err := New(units, &recordingSink{}, DefaultConfig(), logger); !errors.Is(err, hw.ErrTooManyUnits) {
		t.Errorf("too many units: err = %v, want ErrTooManyUnits", err)
	}
}

func TestQueries(t *testing.T) {
	s, _, _ := testSetup(t, 3, DefaultConfig())
	if s.SlotCount() != 3 {
		t.Errorf("SlotCount() = %d, want 3", s.SlotCount())
	}
	if s.HardwareVersion() != 0xCD07 {
		t.Errorf("HardwareVersion() = %#x, want 0xcd07", s.HardwareVersion())
	}
}

// Scenario A: 4 slots, one Job with 4 sub-jobs, all succeed.
func TestScenarioA_FullJobSucceeds(t *testing.T) {
	s, units, sk := testSetup(t, 4, DefaultConfig())

	id := submit(t, s, "s1", 4)
	for i, u := range units {
		assertRunning(t, u, id, i)
	}
	assertQueued(t, s)
	checkInvariants(t, s)

	for i, u := range units {
		u.finish(t, true, model.PerfCounters{Counter0: uint32(100 + i), Counter1: uint32(200 + i)})
		checkInvariants(t, s)
	}

	results := sk.all()
	if len(results) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(results))
	}
	res := results[0]
	if res.JobID != id || res.Session != "s1" || res.Status != model.JobStatusSuccess {
		t.Fatalf("result = %+v", res)
	}
	if len(res.PerfCounters) != 4 {
		t.Fatalf("perf counters = %d, want 4", len(res.PerfCounters))
	}
	for i, pc := range res.PerfCounters {
		if pc.Counter0 != uint32(100+i) || pc.Counter1 != uint32(200+i) {
			t.Errorf("counters[%d] = %+v", i, pc)
		}
	}
	if st := s.Stats(); st.Idle != 4 || st.Working != 0 || st.Draining {
		t.Errorf("stats after completion = %+v", st)
	}
}

// Scenario B: 4 slots, one Job with 6 sub-jobs.
func TestScenarioB_MoreSubJobsThanSlots(t *testing.T) {
	s, units, sk := testSetup(t, 4, DefaultConfig())

	id := submit(t, s, "s1", 6)
	for i, u := range units {
		assertRunning(t, u, id, i)
	}
	assertQueued(t, s, id)

	units[0].finish(t, true, model.PerfCounters{})
	assertRunning(t, units[0], id, 4)
	assertQueued(t, s, id)
	checkInvariants(t, s)

	units[1].finish(t, true, model.PerfCounters{})
	assertRunning(t, units[1], id, 5)
	assertQueued(t, s) // last sub-job started
	checkInvariants(t, s)

	for _, u := range []*fakeUnit{units[2], units[3], units[0]} {
		u.finish(t, true, model.PerfCounters{})
		if n := len(sk.all()); n != 0 {
			t.Fatalf("delivered %d result(s) before the last sub-job completed", n)
		}
	}

	units[1].finish(t, true, model.PerfCounters{})
	results := sk.all()
	if len(results) != 1 || results[0].JobID != id || results[0].Status != model.JobStatusSuccess {
		t.Fatalf("results = %+v", results)
	}
	if len(results[0].PerfCounters) != 6 {
		t.Errorf("perf counters = %d, want 6", len(results[0].PerfCounters))
	}
	checkInvariants(t, s)
}

// Scenario C: an invalid Job fails immediately without touching a slot.
func TestScenarioC_InvalidJobRejected(t *testing.T) {
	s, units, sk := testSetup(t, 4, DefaultConfig())

	id, err := s.Submit(job.Descriptor{Session: "s1", SubJobs: 0})
	if err != nil {
		t.Fatalf("Submit returned %v, want nil", err)
	}

	results := sk.all()
	if len(results) != 1 || results[0].JobID != id || results[0].Status != model.JobStatusFailure {
		t.Fatalf("results = %+v", results)
	}
	for _, u := range units {
		if u.runCount() != 0 {
			t.Errorf("unit %s was started", u.id)
		}
	}
	if st := s.Stats(); st.Idle != 4 || st.Queued != 0 {
		t.Errorf("stats = %+v", st)
	}
}

// Scenario D: aborting a session drops its unstarted Job silently.
func TestScenarioD_AbortDropsQueuedJob(t *testing.T) {
	s, units, sk := testSetup(t, 1, DefaultConfig())

	running := submit(t, s, "keep", 1)
	dropped := submit(t, s, "gone", 2)
	assertQueued(t, s, dropped)

	s.AbortSession("gone")
	assertQueued(t, s)
	if units[0].abortCount() != 0 {
		t.Error("unit running another session's sub-job must not be aborted")
	}

	units[0].finish(t, true, model.PerfCounters{})
	results := sk.all()
	if len(results) != 1 || results[0].JobID != running {
		t.Fatalf("results = %+v, want only job %d", results, running)
	}
	if units[0].runCount() != 1 {
		t.Errorf("unit ran %d sub-jobs, want 1", units[0].runCount())
	}
	checkInvariants(t, s)
}

// Scenario E: Suspend blocks until the running sub-job completes.
func TestScenarioE_SuspendWaitsForDrain(t *testing.T) {
	s, units, _ := testSetup(t, 2, DefaultConfig())
	submit(t, s, "s1", 1)

	returned := make(chan error, 1)
	go func() { returned <- s.Suspend(context.Background()) }()

	select {
	case err := <-returned:
		t.Fatalf("Suspend returned early (err=%v) while a sub-job was running", err)
	case <-time.After(50 * time.Millisecond):
	}

	units[0].finish(t, true, model.PerfCounters{})

	select {
	case err := <-returned:
		if err != nil {
			t.Fatalf("Suspend: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Suspend did not return after the slot drained")
	}
	if st := s.Stats(); st.Idle != st.Slots || st.PauseCount != 1 {
		t.Errorf("stats after suspend = %+v", st)
	}
}

func TestFIFO_HeadOfLine(t *testing.T) {
	s, units, _ := testSetup(t, 4, DefaultConfig())

	first := submit(t, s, "s1", 4)
	second := submit(t, s, "s2", 1)

	for i, u := range units {
		assertRunning(t, u, first, i)
	}
	assertQueued(t, s, second)

	units[2].finish(t, true, model.PerfCounters{})
	assertRunning(t, units[2], second, 0)
	assertQueued(t, s)
}

func TestFIFO_NextJobFillsRemainingSlots(t *testing.T) {
	s, units, _ := testSetup(t, 4, DefaultConfig())

	a := submit(t, s, "s1", 3)
	b := submit(t, s, "s1", 2)

	assertRunning(t, units[0], a, 0)
	assertRunning(t, units[1], a, 1)
	assertRunning(t, units[2], a, 2)
	assertRunning(t, units[3], b, 0)
	assertQueued(t, s, b)
	checkInvariants(t, s)
}

func TestSubmitWhileSuspended(t *testing.T) {
	s, units, _ := testSetup(t, 2, DefaultConfig())

	if err := s.Suspend(context.Background()); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	id := submit(t, s, "s1", 2)
	for _, u := range units {
		if u.runCount() != 0 {
			t.Fatalf("unit %s started while suspended", u.id)
		}
	}
	assertQueued(t, s, id)

	s.Resume()
	assertRunning(t, units[0], id, 0)
	assertRunning(t, units[1], id, 1)
	checkInvariants(t, s)
}

func TestSuspend_Nested(t *testing.T) {
	s, units, _ := testSetup(t, 1, DefaultConfig())
	ctx := context.Background()

	_ = s.Suspend(ctx)
	_ = s.Suspend(ctx)
	submit(t, s, "s1", 1)

	s.Resume()
	if units[0].runCount() != 0 {
		t.Fatal("dispatch ran with one suspension outstanding")
	}
	s.Resume()
	if units[0].runCount() != 1 {
		t.Fatal("dispatch did not run after the last Resume")
	}
}

func TestResume_NoopWhenNotSuspended(t *testing.T) {
	s, _, _ := testSetup(t, 1, DefaultConfig())
	s.Resume()
	s.Resume()
	if st := s.Stats(); st.PauseCount != 0 {
		t.Fatalf("PauseCount = %d, want 0", st.PauseCount)
	}
}

func TestSuspend_ContextCancelled(t *testing.T) {
	s, units, _ := testSetup(t, 1, DefaultConfig())
	submit(t, s, "s1", 1)
	queued := submit(t, s, "s1", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Suspend(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Suspend() = %v, want DeadlineExceeded", err)
	}
	if st := s.Stats(); st.PauseCount != 0 {
		t.Fatalf("PauseCount = %d, want 0 after cancelled suspend", st.PauseCount)
	}

	units[0].finish(t, true, model.PerfCounters{})
	assertRunning(t, units[0], queued, 0)
}

func TestStartRejected_TriesNextSlot(t *testing.T) {
	s, units, _ := testSetup(t, 3, DefaultConfig())
	units[0].setReject(true)

	id := submit(t, s, "s1", 1)
	if units[0].runCount() != 0 {
		t.Fatal("rejecting unit recorded a run")
	}
	assertRunning(t, units[1], id, 0)
	checkInvariants(t, s)
}

func TestStartRejected_RetriedOnNextPass(t *testing.T) {
	s, units, _ := testSetup(t, 2, DefaultConfig())
	for _, u := range units {
		u.setReject(true)
	}

	first := submit(t, s, "s1", 1)
	assertQueued(t, s, first)
	if st := s.Stats(); st.Idle != 2 {
		t.Fatalf("idle = %d, want 2", st.Idle)
	}
	checkInvariants(t, s)

	for _, u := range units {
		u.setReject(false)
	}
	second := submit(t, s, "s1", 1)

	// The older Job keeps its place at the head.
	assertRunning(t, units[0], first, 0)
	assertRunning(t, units[1], second, 0)
	checkInvariants(t, s)
}

func TestNoOverlapPolicy(t *testing.T) {
	s, units, _ := testSetup(t, 4, Config{NoOverlap: true})

	id := submit(t, s, "s1", 6)
	for i, u := range units {
		assertRunning(t, u, id, i)
	}

	units[0].finish(t, true, model.PerfCounters{})
	if _, _, ok := units[0].running(); ok {
		t.Fatal("no-overlap started work while other slots were busy")
	}
	units[1].finish(t, true, model.PerfCounters{})
	units[2].finish(t, true, model.PerfCounters{})
	units[3].finish(t, true, model.PerfCounters{})

	assertRunning(t, units[0], id, 4)
	assertRunning(t, units[1], id, 5)
	assertQueued(t, s)
	checkInvariants(t, s)
}

func TestAlignedStartsPolicy(t *testing.T) {
	s, units, _ := testSetup(t, 4, Config{AlignedStarts: true})

	a := submit(t, s, "s1", 2)
	b := submit(t, s, "s1", 4)
	c := submit(t, s, "s1", 1)

	assertRunning(t, units[0], a, 0)
	assertRunning(t, units[1], a, 1)
	if units[2].runCount() != 0 || units[3].runCount() != 0 {
		t.Fatal("job b started with too few idle slots")
	}
	assertQueued(t, s, b, c)

	units[0].finish(t, true, model.PerfCounters{})
	if units[0].runCount() != 1 {
		t.Fatal("job b started with 3 of 4 slots idle")
	}

	units[1].finish(t, true, model.PerfCounters{})
	for i, u := range units {
		assertRunning(t, u, b, i)
	}
	assertQueued(t, s, c)
	checkInvariants(t, s)
}

func TestAlignedStarts_LargeJobStartsWhenAllIdle(t *testing.T) {
	s, units, _ := testSetup(t, 4, Config{AlignedStarts: true})

	id := submit(t, s, "s1", 6)
	for i, u := range units {
		assertRunning(t, u, id, i)
	}
	// Partially started Jobs keep flowing.
	units[3].finish(t, true, model.PerfCounters{})
	assertRunning(t, units[3], id, 4)
}

func TestAbortSession_PartiallyStartedJob(t *testing.T) {
	s, units, sk := testSetup(t, 2, DefaultConfig())

	id := submit(t, s, "s1", 4)
	assertQueued(t, s, id)

	s.AbortSession("s1")
	assertQueued(t, s)
	for _, u := range units {
		if u.abortCount() != 1 {
			t.Errorf("unit %s aborts = %d, want 1", u.id, u.abortCount())
		}
	}

	units[0].finish(t, false, model.PerfCounters{})
	if len(sk.all()) != 0 {
		t.Fatal("job delivered while a sub-job was still running")
	}
	if units[0].runCount() != 1 {
		t.Fatal("aborted job had another sub-job dispatched")
	}
	units[1].finish(t, false, model.PerfCounters{})

	results := sk.all()
	if len(results) != 1 || results[0].JobID != id || results[0].Status != model.JobStatusFailure {
		t.Fatalf("results = %+v", results)
	}
	if len(results[0].PerfCounters) != 4 {
		t.Errorf("perf counters = %d, want 4", len(results[0].PerfCounters))
	}
	checkInvariants(t, s)
}

func TestAbortSession_OnlyTargetsSession(t *testing.T) {
	s, units, _ := testSetup(t, 2, DefaultConfig())

	submit(t, s, "s1", 1)
	submit(t, s, "s2", 1)
	waiting := submit(t, s, "s2", 2)

	s.AbortSession("s1")

	if units[0].abortCount() != 1 {
		t.Errorf("unit running s1 aborts = %d, want 1", units[0].abortCount())
	}
	if units[1].abortCount() != 0 {
		t.Errorf("unit running s2 aborts = %d, want 0", units[1].abortCount())
	}
	assertQueued(t, s, waiting)
}

func TestComplete_Preconditions(t *testing.T) {
	s, units, _ := testSetup(t, 2, DefaultConfig())
	id := submit(t, s, "s1", 1)

	_, sub, _ := units[0].running()
	units[0].mu.Lock()
	run := *units[0].current
	units[0].mu.Unlock()

	stranger := &fakeUnit{id: "stranger"}
	if err := s.Complete(hw.Completion{Unit: stranger, Job: run.Job, SubJob: sub}); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("unknown unit: err = %v", err)
	}
	if err := s.Complete(hw.Completion{Unit: units[1], Job: run.Job, SubJob: sub}); !errors.Is(err, ErrSlotNotWorking) {
		t.Errorf("idle slot: err = %v", err)
	}
	other := job.New(999, job.Descriptor{Session: "s1", SubJobs: 1})
	if err := s.Complete(hw.Completion{Unit: units[0], Job: other, SubJob: 0}); !errors.Is(err, ErrSlotMismatch) {
		t.Errorf("mismatched job: err = %v", err)
	}
	checkInvariants(t, s)

	if err := s.Complete(hw.Completion{Unit: units[0], Job: run.Job, SubJob: sub, Success: true}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := s.Complete(hw.Completion{Unit: units[0], Job: run.Job, SubJob: sub, Success: true}); !errors.Is(err, ErrSlotNotWorking) {
		t.Errorf("second completion: err = %v", err)
	}
	if run.Job.ID() != id || !run.Job.IsComplete() {
		t.Errorf("job %d complete=%v", run.Job.ID(), run.Job.IsComplete())
	}
	checkInvariants(t, s)
}

func TestSubmit_QueueFull(t *testing.T) {
	s, _, sk := testSetup(t, 1, Config{MaxQueuedJobs: 1})

	submit(t, s, "s1", 1) // runs, not queued
	submit(t, s, "s1", 1) // queued

	_, err := s.Submit(job.Descriptor{Session: "s1", SubJobs: 1})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Submit() = %v, want ErrQueueFull", err)
	}
	if len(sk.all()) != 0 {
		t.Error("queue-full submission must not be delivered")
	}
	if st := s.Stats(); st.Queued != 1 {
		t.Errorf("queued = %d, want 1", st.Queued)
	}
}

func TestSubmit_UnknownSessionRejected(t *testing.T) {
	known := validatorFunc(func(id model.SessionID) bool { return id == "known" })
	s, units, sk := testSetup(t, 1, DefaultConfig(), WithSessionValidator(known))

	id, err := s.Submit(job.Descriptor{Session: "stranger", SubJobs: 2})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	results := sk.all()
	if len(results) != 1 || results[0].JobID != id || results[0].Status != model.JobStatusFailure {
		t.Fatalf("results = %+v", results)
	}
	if len(results[0].PerfCounters) != 2 {
		t.Errorf("perf counters = %d, want 2", len(results[0].PerfCounters))
	}
	if units[0].runCount() != 0 {
		t.Error("rejected job reached a unit")
	}

	submit(t, s, "known", 1)
	if units[0].runCount() != 1 {
		t.Error("valid session job was not started")
	}
}

func TestSubmit_IDsIncrease(t *testing.T) {
	s, _, _ := testSetup(t, 1, DefaultConfig())
	var last model.JobID
	for i := 0; i < 5; i++ {
		id := submit(t, s, "s1", 1)
		if id <= last {
			t.Fatalf("id %d not greater than %d", id, last)
		}
		last = id
	}
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s, units, sk := testSetup(t, 1, DefaultConfig(), WithClock(func() time.Time { return fixed }))

	submit(t, s, "s1", 1)
	units[0].finish(t, true, model.PerfCounters{})
	if got := sk.all()[0].CompletedAt; !got.Equal(fixed) {
		t.Errorf("CompletedAt = %v, want %v", got, fixed)
	}
}

func TestDumpState(t *testing.T) {
	s, _, _ := testSetup(t, 2, DefaultConfig())
	submit(t, s, "s1", 1)

	var buf bytes.Buffer
	if err := s.DumpState(&buf); err != nil {
		t.Fatalf("DumpState: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Queue is empty", "Slot 0 (u0): WORKING job 1 part 1/1", "Slot 1 (u1): IDLE"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}

	slots := s.Slots()
	if len(slots) != 2 || slots[0].State != model.SlotWorking || slots[0].JobID != 1 || slots[1].State != model.SlotIdle {
		t.Errorf("Slots() = %+v", slots)
	}
}
