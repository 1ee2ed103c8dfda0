package testutil

import (
	"time"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/memory"
)

// MemoryBuilder constructs a pre-populated conversation memory.
// Example:
//
//	mem := NewMemoryBuilder(10).Turn("my name is Asha", "Nice to meet you.").Build()
//
// Turns are stamped one second apart starting at a fixed instant so rendered
// history is deterministic.
type MemoryBuilder struct {
	capacity int
	start    time.Time
	turns    []core.Turn
}

// NewMemoryBuilder creates a builder for a store holding capacity turns.
func NewMemoryBuilder(capacity int) *MemoryBuilder {
	return &MemoryBuilder{capacity: capacity, start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

// Start overrides the timestamp of the first turn (chainable).
func (b *MemoryBuilder) Start(t time.Time) *MemoryBuilder { b.start = t; return b }

// Turn appends one exchange (chainable).
func (b *MemoryBuilder) Turn(query, response string) *MemoryBuilder {
	b.turns = append(b.turns, core.Turn{
		Query:     query,
		Response:  response,
		Timestamp: b.start.Add(time.Duration(len(b.turns)) * time.Second),
	})
	return b
}

// Build returns a store with the turns appended in order.
func (b *MemoryBuilder) Build() *memory.Store {
	s := memory.New(b.capacity)
	for _, t := range b.turns {
		s.Append(t)
	}
	return s
}
