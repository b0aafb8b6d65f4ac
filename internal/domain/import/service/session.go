package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is one step in a session's linear lifecycle.
type State string

const (
	StateCreated    State = "created"
	StateParsing    State = "parsing"
	StateProcessing State = "processing"
	StateImporting  State = "importing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// ErrInvalidTransition rejects backward or out-of-order state changes.
var ErrInvalidTransition = errors.New("invalid session state transition")

// Sessions progress strictly forward; failed and cancelled are reachable
// from any non-terminal state.
var validTransitions = map[State][]State{
	StateCreated:    {StateParsing, StateFailed, StateCancelled},
	StateParsing:    {StateProcessing, StateFailed, StateCancelled},
	StateProcessing: {StateImporting, StateFailed, StateCancelled},
	StateImporting:  {StateCompleted, StateFailed, StateCancelled},
}

// Progress is the externally visible position within a session. Percentage
// never decreases and ends at 100 on any terminal transition.
type Progress struct {
	Phase      string
	Percentage float64
	Current    int
	Total      int
}

// Session tracks one import run end to end.
type Session struct {
	ID     string
	UserID string

	mu        sync.Mutex
	state     State
	progress  Progress
	result    *ImportResult
	err       error
	createdAt time.Time
	updatedAt time.Time
}

func NewSession(userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		state:     StateCreated,
		createdAt: now,
		updatedAt: now,
	}
}

// Transition moves the session forward. Terminal states accept nothing.
func (s *Session) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range validTransitions[s.state] {
		if allowed == next {
			s.state = next
			s.updatedAt = time.Now().UTC()
			if s.terminalLocked() {
				s.progress.Percentage = 100
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
}

// ReportProgress updates the session's position. A stale report with a
// lower percentage is clamped so consumers never observe regress.
func (s *Session) ReportProgress(phase string, current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	if pct < s.progress.Percentage {
		pct = s.progress.Percentage
	}
	s.progress = Progress{Phase: phase, Percentage: pct, Current: current, Total: total}
	s.updatedAt = time.Now().UTC()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Session) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminalLocked()
}

func (s *Session) terminalLocked() bool {
	return s.state == StateCompleted || s.state == StateFailed || s.state == StateCancelled
}

// Complete records the final result and moves to completed.
func (s *Session) Complete(result *ImportResult) error {
	if err := s.Transition(StateCompleted); err != nil {
		return err
	}
	s.mu.Lock()
	s.result = result
	s.mu.Unlock()
	return nil
}

// Fail records the error and moves to failed.
func (s *Session) Fail(cause error) error {
	if err := s.Transition(StateFailed); err != nil {
		return err
	}
	s.mu.Lock()
	s.err = cause
	s.mu.Unlock()
	return nil
}

// Cancel moves to cancelled.
func (s *Session) Cancel() error {
	return s.Transition(StateCancelled)
}

func (s *Session) Result() *ImportResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// UpdatedAt reports the time of the last state or progress change; the
// stale-session reaper keys off it.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Registry holds live sessions so background jobs can find abandoned ones.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Stale returns non-terminal sessions untouched since the cutoff, oldest
// first.
func (r *Registry) Stale(cutoff time.Time) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, s := range r.sessions {
		if !s.Terminal() && s.UpdatedAt().Before(cutoff) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt().Before(out[j].UpdatedAt())
	})
	return out
}
