package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bull/rag-studio/internal/chunker"
)

const (
	// DefaultMaxSessions bounds the number of live sessions held in memory.
	DefaultMaxSessions = 100
	// DefaultIdleTimeout is how long an untouched session survives.
	DefaultIdleTimeout = time.Hour
)

// Option configures a Manager.
type Option func(*Manager)

// WithMaxSessions overrides the session ceiling.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithIdleTimeout overrides how long an untouched session survives.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithChunker sets the chunker shared by all sessions.
func WithChunker(c *chunker.Chunker) Option {
	return func(m *Manager) {
		if c != nil {
			m.chunker = c
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager is an in-memory, uuid-keyed session registry.
// Sessions are isolated from each other and each guards its own state.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxSessions int
	idleTimeout time.Duration
	chunker     *chunker.Chunker
	now         func() time.Time
}

// NewManager creates an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: DefaultMaxSessions,
		idleTimeout: DefaultIdleTimeout,
		chunker:     chunker.NewChunker(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session at step 1 with the default config.
// Sessions idle past the idle timeout are dropped first.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictIdleLocked()
	if len(m.sessions) >= m.maxSessions {
		return nil, ErrTooManySessions
	}

	s := newSession(uuid.NewString(), m.chunker, m.now)
	m.sessions[s.id] = s
	return s, nil
}

// Get returns the session with the given id and marks it active.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// EvictIdle drops sessions idle past the idle timeout and returns how many went.
func (m *Manager) EvictIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictIdleLocked()
}

// evictIdleLocked skips sessions with an embedding run in flight.
func (m *Manager) evictIdleLocked() int {
	cutoff := m.now().Add(-m.idleTimeout)
	evicted := 0
	for id, s := range m.sessions {
		if s.idleBefore(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Delete drops a session and all its data.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns the status of every session, oldest first.
func (m *Manager) List() []Status {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Status, len(sessions))
	for i, s := range sessions {
		out[i] = s.Status()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
