package core

import (
	"fmt"
	"sync"
)

// IterationLimiter enforces a maximum number of tool dispatches per query.
type IterationLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewIterationLimiter creates a limiter allowing max dispatches. Values below
// one are raised to one so every loop stays bounded.
func NewIterationLimiter(max int) *IterationLimiter {
	if max < 1 {
		max = 1
	}
	return &IterationLimiter{max: max}
}

// Increment records one dispatch and returns ErrIterationLimit once the
// count exceeds the maximum.
func (l *IterationLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count >= l.max {
		return fmt.Errorf("%w: %d", ErrIterationLimit, l.max)
	}
	l.count++

	return nil
}

// Exhausted reports whether no further dispatch is allowed.
func (l *IterationLimiter) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count >= l.max
}

// Count returns the number of dispatches recorded.
func (l *IterationLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Max returns the configured bound.
func (l *IterationLimiter) Max() int { return l.max }

// Remaining returns how many dispatches are left.
func (l *IterationLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.max - l.count
}
