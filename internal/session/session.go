// Package session tracks the callers that own Jobs and buffers each
// session's finished results until it collects them.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/me/ppsched/pkg/model"
)

// DefaultMailboxDepth is the number of results a session buffers before
// further deliveries are dropped.
const DefaultMailboxDepth = 256

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrMailboxFull    = errors.New("session mailbox full")
)

// Session is an open caller. Results for its Jobs arrive on its mailbox.
type Session struct {
	ID        model.SessionID `json:"id"`
	Label     string          `json:"label,omitempty"`
	CreatedAt time.Time       `json:"created_at"`

	results chan model.Result
	done    chan struct{}
}

// Results returns the receive side of the session's mailbox. The channel is
// never closed; use Done to learn that the session went away.
func (s *Session) Results() <-chan model.Result { return s.results }

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Manager owns the open sessions. It implements sink.Sink.
type Manager struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*Session
	depth    int
	logger   *slog.Logger
}

// NewManager creates a Manager whose sessions buffer up to depth results.
// A depth of 0 selects DefaultMailboxDepth.
func NewManager(depth int, logger *slog.Logger) *Manager {
	if depth <= 0 {
		depth = DefaultMailboxDepth
	}
	return &Manager{
		sessions: make(map[model.SessionID]*Session),
		depth:    depth,
		logger:   logger.With("component", "sessions"),
	}
}

// Open registers a new session with a random id.
func (m *Manager) Open(label string) *Session {
	s := &Session{
		ID:        model.SessionID("sess_" + uuid.NewString()),
		Label:     label,
		CreatedAt: time.Now().UTC(),
		results:   make(chan model.Result, m.depth),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session opened", "session", s.ID, "label", label, "open_sessions", n)
	return s
}

// Get returns the open session with id, or nil.
func (m *Manager) Get(id model.SessionID) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Valid reports whether id names an open session.
func (m *Manager) Valid(id model.SessionID) bool {
	return m.Get(id) != nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close removes the session. Callers abort its Jobs with the scheduler
// first; results that still arrive afterwards are dropped.
func (m *Manager) Close(id model.SessionID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	close(s.done)
	m.logger.Info("session closed", "session", id)
	return nil
}

// Deliver queues r on the owning session's mailbox without blocking.
// Results for closed sessions are dropped.
func (m *Manager) Deliver(r model.Result) error {
	s := m.Get(r.Session)
	if s == nil {
		m.logger.Debug("dropping result for closed session", "job_id", r.JobID, "session", r.Session)
		return nil
	}

	select {
	case <-s.done:
		m.logger.Debug("dropping result for closed session", "job_id", r.JobID, "session", r.Session)
		return nil
	default:
	}

	select {
	case s.results <- r:
		return nil
	default:
		return fmt.Errorf("%w: %s dropped job %d", ErrMailboxFull, r.Session, r.JobID)
	}
}

// Drain returns up to limit buffered results of session id without waiting.
// limit <= 0 drains everything buffered.
func (m *Manager) Drain(id model.SessionID, limit int) ([]model.Result, error) {
	s := m.Get(id)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	var out []model.Result
	for limit <= 0 || len(out) < limit {
		select {
		case r := <-s.results:
			out = append(out, r)
		default:
			return out, nil
		}
	}
	return out, nil
}
