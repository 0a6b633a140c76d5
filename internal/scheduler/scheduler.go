// Package scheduler assigns sub-jobs of queued Jobs to a fixed pool of
// execution unit slots.
//
// Two synchronization primitives are used. The state lock (mu) guards the
// slots, the idle count, the queue, the pause count and every Job's sub-job
// state. The drain gate is held exactly while some sub-job is running; Suspend
// waits on it without holding mu, so the completion path can always make
// progress and release it.
package scheduler

import (
	"container/list"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/ppsched/internal/hw"
	"github.com/me/ppsched/internal/job"
	"github.com/me/ppsched/internal/sink"
	"github.com/me/ppsched/pkg/model"
)

var (
	ErrQueueFull      = errors.New("job queue is full")
	ErrUnknownUnit    = errors.New("completion from unknown unit")
	ErrSlotNotWorking = errors.New("slot is not working")
	ErrSlotMismatch   = errors.New("slot is running a different sub-job")
)

// Config holds the dispatch policies.
type Config struct {
	// NoOverlap refuses to start anything unless every slot is idle, so
	// sub-jobs of different Jobs never run side by side.
	NoOverlap bool
	// AlignedStarts holds back a Job that has not started yet while fewer
	// slots are idle than it has sub-jobs, unless every slot is idle.
	AlignedStarts bool
	// MaxQueuedJobs bounds the queue. 0 means unlimited.
	MaxQueuedJobs int
}

// DefaultConfig returns the plain FIFO policy with an unbounded queue.
func DefaultConfig() Config {
	return Config{}
}

// SessionValidator reports whether a session may submit Jobs.
type SessionValidator interface {
	Valid(id model.SessionID) bool
}

// slot binds one unit to the scheduler's cached view of it.
type slot struct {
	unit   hw.Unit
	state  model.SlotState
	job    *job.Job // running Job while WORKING
	subJob int
}

// Scheduler owns the slots and the queue of Jobs with unstarted work.
type Scheduler struct {
	mu    sync.Mutex
	slots []slot
	idle  int
	queue *list.List // *job.Job, oldest first
	pause int

	drain   *drainGate
	nextID  atomic.Uint32
	version uint32

	sink     sink.Sink
	sessions SessionValidator
	config   Config
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures optional Scheduler dependencies.
type Option func(*Scheduler)

// WithSessionValidator rejects Jobs whose session v does not know.
func WithSessionValidator(v SessionValidator) Option {
	return func(s *Scheduler) {
		s.sessions = v
	}
}

// WithClock overrides the clock used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler with one slot per unit, in the given order. The
// hardware version is taken from the first unit.
func New(units []hw.Unit, sk sink.Sink, cfg Config, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if len(units) == 0 {
		return nil, hw.ErrNoUnits
	}
	if len(units) > hw.MaxUnits {
		return nil, fmt.Errorf("%w: %d", hw.ErrTooManyUnits, len(units))
	}

	s := &Scheduler{
		slots:   make([]slot, len(units)),
		idle:    len(units),
		queue:   list.New(),
		drain:   newDrainGate(),
		version: units[0].Version(),
		sink:    sk,
		config:  cfg,
		logger:  logger.With("component", "scheduler"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for i, u := range units {
		s.slots[i] = slot{unit: u, state: model.SlotIdle}
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info("scheduler ready",
		"slots", len(s.slots),
		"hw_version", fmt.Sprintf("%#x", s.version),
		"no_overlap", cfg.NoOverlap,
		"aligned_starts", cfg.AlignedStarts,
	)
	return s, nil
}

// Submit queues a Job and runs dispatch. The outcome is always delivered
// through the sink. A Job that fails the static validity check is delivered
// as failed right away without being queued. The only synchronous error is
// ErrQueueFull.
func (s *Scheduler) Submit(d job.Descriptor) (model.JobID, error) {
	if err := s.check(&d); err != nil {
		id := model.JobID(s.nextID.Add(1))
		s.logger.Warn("job rejected", "job_id", id, "session", d.Session, "error", err)
		j := job.New(id, d)
		j.Reject()
		s.deliver(j)
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.MaxQueuedJobs > 0 && s.queue.Len() >= s.config.MaxQueuedJobs {
		return 0, fmt.Errorf("%w (%d/%d)", ErrQueueFull, s.queue.Len(), s.config.MaxQueuedJobs)
	}

	j := job.New(model.JobID(s.nextID.Add(1)), d)
	s.queue.PushBack(j)
	s.logger.Debug("job queued", "job_id", j.ID(), "session", j.Session(), "sub_jobs", j.SubJobCount())

	s.dispatch()
	return j.ID(), nil
}

func (s *Scheduler) check(d *job.Descriptor) error {
	if err := d.Check(); err != nil {
		return err
	}
	if s.sessions != nil && !s.sessions.Valid(d.Session) {
		return fmt.Errorf("unknown session %q", d.Session)
	}
	return nil
}

// dispatch assigns unstarted sub-jobs at the head of the queue to idle
// slots, visiting the slots once in order. Must be called with s.mu held.
func (s *Scheduler) dispatch() {
	if s.pause > 0 || s.idle == 0 || s.queue.Len() == 0 {
		s.logger.Debug("nothing to dispatch", "paused", s.pause, "idle_slots", s.idle, "queued", s.queue.Len())
		return
	}
	if s.config.NoOverlap && s.idle < len(s.slots) {
		s.logger.Debug("dispatch held back, slots busy", "idle_slots", s.idle, "slots", len(s.slots))
		return
	}

	for i := 0; i < len(s.slots) && s.idle > 0; i++ {
		sl := &s.slots[i]
		if sl.state != model.SlotIdle {
			continue
		}

		front := s.queue.Front()
		if front == nil {
			break
		}
		j := front.Value.(*job.Job)

		if s.config.AlignedStarts && j.StartedCount() == 0 &&
			j.SubJobCount() > s.idle && s.idle < len(s.slots) {
			s.logger.Debug("job held back until enough slots are idle",
				"job_id", j.ID(), "sub_jobs", j.SubJobCount(), "idle_slots", s.idle)
			break
		}

		sub, ok := j.FirstUnstarted()
		if !ok {
			s.logger.Error("queued job has no unstarted sub-job", "job_id", j.ID())
			s.queue.Remove(front)
			i--
			continue
		}

		if !sl.unit.Start(hw.Run{Job: j, SubJob: sub}, s.onDone) {
			s.logger.Warn("unit rejected start", "unit", sl.unit.ID(), "job_id", j.ID(), "sub_job", sub)
			continue
		}

		if s.idle == len(s.slots) {
			s.drain.hold()
		}
		if err := j.MarkStarted(sub); err != nil {
			s.logger.Error("mark sub-job started", "job_id", j.ID(), "sub_job", sub, "error", err)
		}
		sl.state = model.SlotWorking
		sl.job = j
		sl.subJob = sub
		s.idle--

		s.logger.Debug("sub-job started",
			"job_id", j.ID(), "sub_job", sub, "of", j.SubJobCount(), "unit", sl.unit.ID())

		if !j.HasUnstarted() {
			// From here on the Job is only reachable through the slots running it.
			s.queue.Remove(front)
			s.logger.Debug("all sub-jobs started", "job_id", j.ID())
		}
	}
}

func (s *Scheduler) onDone(c hw.Completion) {
	if err := s.Complete(c); err != nil {
		s.logger.Error("completion rejected", "error", err)
	}
}

// Complete records a unit's completion report, frees its slot and runs
// dispatch. When the last sub-job of a Job completes the Job is delivered
// after the state lock is released.
func (s *Scheduler) Complete(c hw.Completion) error {
	s.mu.Lock()

	idx := s.slotIndex(c.Unit)
	if idx < 0 {
		s.mu.Unlock()
		return ErrUnknownUnit
	}
	sl := &s.slots[idx]
	if sl.state != model.SlotWorking {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSlotNotWorking, sl.unit.ID())
	}
	if sl.job != c.Job || sl.subJob != c.SubJob {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSlotMismatch, sl.unit.ID())
	}
	if err := c.Job.MarkCompleted(c.SubJob, c.Success, c.Counters); err != nil {
		s.mu.Unlock()
		return err
	}

	sl.state = model.SlotIdle
	sl.job = nil
	s.idle++
	if s.idle == len(s.slots) {
		s.drain.release()
	}

	s.logger.Debug("sub-job completed",
		"job_id", c.Job.ID(), "sub_job", c.SubJob, "of", c.Job.SubJobCount(),
		"unit", sl.unit.ID(), "success", c.Success)

	s.dispatch()
	done := c.Job.IsComplete()
	s.mu.Unlock()

	if done {
		s.deliver(c.Job)
	}
	return nil
}

func (s *Scheduler) slotIndex(u hw.Unit) int {
	for i := range s.slots {
		if s.slots[i].unit == u {
			return i
		}
	}
	return -1
}

func (s *Scheduler) deliver(j *job.Job) {
	res := j.Result(s.now())
	if err := s.sink.Deliver(res); err != nil {
		s.logger.Error("deliver result", "job_id", j.ID(), "session", j.Session(), "error", err)
		return
	}
	s.logger.Debug("job delivered", "job_id", j.ID(), "session", j.Session(), "status", res.Status)
}
