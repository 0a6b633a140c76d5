package scheduler

import (
	"context"
	"fmt"
	"io"

	"github.com/me/ppsched/internal/hw"
	"github.com/me/ppsched/internal/job"
	"github.com/me/ppsched/pkg/model"
)

// Suspend stops further dispatch and blocks until no sub-job is running.
// Suspensions nest; each must be matched by a Resume. If ctx ends before the
// slots have drained, the suspension is undone and ctx's error returned.
func (s *Scheduler) Suspend(ctx context.Context) error {
	s.mu.Lock()
	s.pause++
	pause := s.pause
	s.mu.Unlock()

	s.logger.Info("suspending", "pause_count", pause)

	// Never wait on the drain gate with mu held: the completion path needs
	// mu before it can release the gate.
	if err := s.drain.wait(ctx); err != nil {
		s.Resume()
		return fmt.Errorf("suspend: %w", err)
	}

	s.logger.Info("suspended, all slots idle")
	return nil
}

// Resume undoes one Suspend. When the last suspension is lifted dispatch
// runs once. Calling Resume while not suspended does nothing.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pause == 0 {
		s.logger.Debug("resume ignored, not suspended")
		return
	}
	s.pause--
	s.logger.Info("resumed", "pause_count", s.pause)
	if s.pause == 0 {
		s.dispatch()
	}
}

// AbortSession drops every queued Job owned by session and asks the units
// running its sub-jobs to stop. Jobs that never had a sub-job running are
// discarded without a result. Jobs with sub-jobs still running get their
// remaining sub-jobs marked failed and are delivered once the running ones
// complete through the normal path.
func (s *Scheduler) AbortSession(session model.SessionID) {
	s.mu.Lock()

	var discarded, draining int
	for e := s.queue.Front(); e != nil; {
		next := e.Next()
		j := e.Value.(*job.Job)
		if j.Session() == session {
			s.queue.Remove(e)
			if j.AbortUnstarted() {
				draining++
				s.logger.Debug("keeping partially started job", "job_id", j.ID())
			} else {
				discarded++
				s.logger.Debug("discarding queued job", "job_id", j.ID())
			}
		}
		e = next
	}

	var units []hw.Unit
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.state == model.SlotWorking && sl.job.Session() == session {
			units = append(units, sl.unit)
		}
	}
	s.mu.Unlock()

	for _, u := range units {
		u.Abort(session)
	}

	s.logger.Info("session aborted",
		"session", session,
		"discarded_jobs", discarded,
		"draining_jobs", draining,
		"units_aborted", len(units),
	)
}

// SlotCount returns the number of slots.
func (s *Scheduler) SlotCount() int {
	return len(s.slots)
}

// HardwareVersion returns the core version of the first unit.
func (s *Scheduler) HardwareVersion() uint32 {
	return s.version
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Slots      int    `json:"slots"`
	Idle       int    `json:"idle"`
	Working    int    `json:"working"`
	Queued     int    `json:"queued"`
	PauseCount int    `json:"pause_count"`
	Draining   bool   `json:"draining"`
	LastJobID  uint32 `json:"last_job_id"`
}

// Stats returns a consistent snapshot taken under the state lock.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Slots:      len(s.slots),
		Idle:       s.idle,
		Queued:     s.queue.Len(),
		PauseCount: s.pause,
		Draining:   s.drain.held(),
		LastJobID:  s.nextID.Load(),
	}
	for i := range s.slots {
		if s.slots[i].state == model.SlotWorking {
			st.Working++
		}
	}
	return st
}

// SlotInfo describes one slot.
type SlotInfo struct {
	Index  int             `json:"index"`
	Unit   string          `json:"unit"`
	State  model.SlotState `json:"state"`
	JobID  model.JobID     `json:"job_id,omitempty"`
	SubJob int             `json:"sub_job,omitempty"`
}

// Slots returns the state of every slot in slot order.
func (s *Scheduler) Slots() []SlotInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SlotInfo, len(s.slots))
	for i := range s.slots {
		sl := &s.slots[i]
		out[i] = SlotInfo{Index: i, Unit: sl.unit.ID(), State: sl.state}
		if sl.job != nil {
			out[i].JobID = sl.job.ID()
			out[i].SubJob = sl.subJob
		}
	}
	return out
}

// QueuedJobs returns the ids of queued Jobs, oldest first.
func (s *Scheduler) QueuedJobs() []model.JobID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]model.JobID, 0, s.queue.Len())
	for e := s.queue.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(*job.Job).ID())
	}
	return ids
}

// DumpState writes a human-readable description of the queue and slots.
func (s *Scheduler) DumpState(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := "empty"
	if s.queue.Len() > 0 {
		queue = fmt.Sprintf("%d job(s)", s.queue.Len())
	}
	if _, err := fmt.Fprintf(w, "PP:\n\tQueue is %s\n\tIdle slots: %d/%d, pause count %d\n\n",
		queue, s.idle, len(s.slots), s.pause); err != nil {
		return err
	}
	for i := range s.slots {
		sl := &s.slots[i]
		line := fmt.Sprintf("\tSlot %d (%s): %s", i, sl.unit.ID(), sl.state)
		if sl.job != nil {
			line += fmt.Sprintf(" job %d part %d/%d", sl.job.ID(), sl.subJob+1, sl.job.SubJobCount())
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
