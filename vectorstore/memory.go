package vectorstore

import (
	"context"
	"slices"
	"sync"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/embed"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string][]core.IndexEntry
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]core.IndexEntry)}
}

func (s *MemoryStore) Replace(_ context.Context, docID string, entries []core.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if len(entries) == 0 {
		delete(s.docs, docID)
		return nil
	}
	if err := checkDimensions(s.dimensions(docID), entries); err != nil {
		return err
	}

	s.docs[docID] = slices.Clone(entries)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, vector []float32, k int) ([]core.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if k <= 0 {
		return []core.ScoredChunk{}, nil
	}
	if dims := s.dimensions(""); dims != 0 && dims != len(vector) {
		return nil, dimensionError(dims, len(vector))
	}

	hits := make([]core.ScoredChunk, 0)
	for _, entries := range s.docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, e := range entries {
			hits = append(hits, core.ScoredChunk{
				Chunk:  e.Chunk,
				Source: source(e),
				Score:  embed.Cosine(vector, e.Vector),
				Seq:    e.Seq,
			})
		}
	}

	return Rank(hits, k), nil
}

func (s *MemoryStore) Delete(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	delete(s.docs, docID)
	return nil
}

func (s *MemoryStore) Seq(_ context.Context, docID string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.docs[docID]
	if !ok || len(entries) == 0 {
		return 0, false, nil
	}
	return entries[0].Seq, true, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, entries := range s.docs {
		n += len(entries)
	}
	return n, nil
}

// dimensions returns the vector width of the stored entries, ignoring
// docID. Zero means nothing is stored. Callers hold s.mu.
func (s *MemoryStore) dimensions(docID string) int {
	for id, entries := range s.docs {
		if id == docID || len(entries) == 0 {
			continue
		}
		return len(entries[0].Vector)
	}
	return 0
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
