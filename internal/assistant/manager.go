package assistant

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSessions bounds concurrently open sessions.
const DefaultMaxSessions = 100

// Factory creates a session with the given id.
type Factory func(id string) *Session

// Manager tracks independent sessions that share one retriever and
// generator. It is safe for concurrent use.
type Manager struct {
	factory     Factory
	maxSessions int
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager. maxSessions <= 0 uses DefaultMaxSessions.
func NewManager(factory Factory, maxSessions int, logger *slog.Logger) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factory:     factory,
		maxSessions: maxSessions,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// Create opens a new session with a random id.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManySessions, m.maxSessions)
	}

	id := uuid.NewString()
	s := m.factory(id)
	m.sessions[id] = s
	m.logger.Info("session created", "session_id", id, "open_sessions", len(m.sessions))
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete closes the session with id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	m.logger.Info("session deleted", "session_id", id, "open_sessions", len(m.sessions))
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Prune closes sessions idle since before cutoff and returns how many
// were closed. It never waits on a session that is answering a question.
func (m *Manager) Prune(cutoff time.Time) int {
	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()
	if len(stale) == 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for _, id := range stale {
		s, ok := m.sessions[id]
		if !ok || !s.LastActive().Before(cutoff) {
			continue
		}
		delete(m.sessions, id)
		n++
	}
	if n > 0 {
		m.logger.Info("pruned idle sessions", "count", n, "open_sessions", len(m.sessions))
	}
	return n
}
