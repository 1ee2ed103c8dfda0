// Package memory implements the bounded conversational memory of a session:
// a FIFO log of completed turns with optional write-through persistence.
package memory

import (
	"context"
	"sync"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/logging"
)

// DefaultCapacity bounds a store when no capacity is configured.
const DefaultCapacity = 100

// Persister is a durable backing for one or more session logs.
type Persister interface {
	Load(ctx context.Context, sessionID string, limit int) ([]core.Turn, error)
	Append(ctx context.Context, sessionID string, turn core.Turn) error
	Clear(ctx context.Context, sessionID string) error
}

// Options configure a Store.
type Options struct {
	SessionID string
	Persister Persister
	Logger    logging.Logger
}

// Store is a bounded, append-only log of turns. When capacity is exceeded the
// oldest turn is evicted. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int
	turns    []core.Turn
	opts     Options
	logger   logging.Logger
}

// New creates an empty in-memory store.
func New(capacity int, optFns ...func(o *Options)) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		capacity: capacity,
		turns:    make([]core.Turn, 0, min(capacity, 16)),
		opts:     opts,
		logger:   logging.Ensure(opts.Logger),
	}
}

// Open creates a store and seeds it with the most recent persisted turns.
func Open(ctx context.Context, capacity int, optFns ...func(o *Options)) (*Store, error) {
	s := New(capacity, optFns...)
	if s.opts.Persister == nil {
		return s, nil
	}
	turns, err := s.opts.Persister.Load(ctx, s.opts.SessionID, s.capacity)
	if err != nil {
		return nil, err
	}
	if len(turns) > s.capacity {
		turns = turns[len(turns)-s.capacity:]
	}
	s.turns = append(s.turns, turns...)
	return s, nil
}

// Append adds a turn, evicting the oldest one when the store is full. It
// always succeeds; persistence failures are logged.
func (s *Store) Append(turn core.Turn) {
	s.mu.Lock()
	if len(s.turns) >= s.capacity {
		copy(s.turns, s.turns[1:])
		s.turns = s.turns[:len(s.turns)-1]
	}
	s.turns = append(s.turns, turn)
	s.mu.Unlock()

	if s.opts.Persister != nil {
		if err := s.opts.Persister.Append(context.Background(), s.opts.SessionID, turn); err != nil {
			s.logger.Warn("memory.persist.append_failed", "session_id", s.opts.SessionID, "error", err.Error())
		}
	}
}

// Recent returns at most n of the most recent turns in chronological order.
// A non-positive n yields an empty slice.
func (s *Store) Recent(n int) []core.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return []core.Turn{}
	}
	if n > len(s.turns) {
		n = len(s.turns)
	}
	out := make([]core.Turn, n)
	copy(out, s.turns[len(s.turns)-n:])
	return out
}

// Len returns the number of retained turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Capacity returns the configured bound.
func (s *Store) Capacity() int { return s.capacity }

// Clear resets the store to empty. Calling it on an empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	s.turns = s.turns[:0]
	s.mu.Unlock()

	if s.opts.Persister != nil {
		if err := s.opts.Persister.Clear(context.Background(), s.opts.SessionID); err != nil {
			s.logger.Warn("memory.persist.clear_failed", "session_id", s.opts.SessionID, "error", err.Error())
		}
	}
}
