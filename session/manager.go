// Package session manages explicit session handles. Each session owns the
// memory scope of one conversation; handles are opened at session start and
// closed explicitly.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tanishra/smartinfo/logging"
	"github.com/tanishra/smartinfo/memory"
)

// DefaultSessionID is used by single-user front ends such as the CLI.
const DefaultSessionID = "default"

// Session is a handle to one conversation's memory scope.
type Session struct {
	ID      string
	Memory  *memory.Store
	Created time.Time
}

// Options configure a Manager.
type Options struct {
	MemoryCapacity int
	Persister      memory.Persister
	Logger         logging.Logger
}

// Manager creates and tracks open sessions. Safe for concurrent access.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     Options
	logger   logging.Logger
}

// NewManager constructs an empty manager.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{MemoryCapacity: memory.DefaultCapacity}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
		logger:   logging.Ensure(opts.Logger),
	}
}

// Open returns the open session with id, or opens a new one. An empty id
// allocates a fresh random identifier.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}

	store, err := memory.Open(ctx, m.opts.MemoryCapacity, func(o *memory.Options) {
		o.SessionID = id
		o.Persister = m.opts.Persister
		o.Logger = m.logger
	})
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}

	sess := &Session{ID: id, Memory: store, Created: time.Now()}
	m.sessions[id] = sess
	m.logger.Debug("session.opened", "session_id", id, "turns", store.Len())

	return sess, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Close tears down a session handle. Persisted turns survive; the in-process
// scope is released. Closing an unknown session is a no-op.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		m.logger.Debug("session.closed", "session_id", id)
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
