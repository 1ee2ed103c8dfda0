package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/embed"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("vector store is closed")

// Store is the vector store capability used by the indexer.
type Store interface {
	// Replace atomically swaps all entries of docID for entries. An empty
	// slice removes the document.
	Replace(ctx context.Context, docID string, entries []core.IndexEntry) error
	// Query returns at most k hits ranked by similarity to vector.
	Query(ctx context.Context, vector []float32, k int) ([]core.ScoredChunk, error)
	// Delete removes every entry of docID. Unknown documents are a no-op.
	Delete(ctx context.Context, docID string) error
	// Seq reports the ingestion sequence recorded for docID.
	Seq(ctx context.Context, docID string) (int64, bool, error)
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Rank sorts hits by score descending, then ingestion sequence, then chunk
// index, and truncates to k.
func Rank(hits []core.ScoredChunk, k int) []core.ScoredChunk {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if a.Chunk.DocumentID != b.Chunk.DocumentID {
			return a.Chunk.DocumentID < b.Chunk.DocumentID
		}
		return a.Chunk.Index < b.Chunk.Index
	})

	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// checkDimensions verifies every entry has want dimensions. A zero want
// adopts the first entry's width.
func checkDimensions(want int, entries []core.IndexEntry) error {
	for _, e := range entries {
		if want == 0 {
			want = len(e.Vector)
		}
		if len(e.Vector) != want {
			return dimensionError(want, len(e.Vector))
		}
	}
	return nil
}

func dimensionError(stored, got int) error {
	return fmt.Errorf("%w: index holds %d-dimensional vectors, embedder produced %d; remove the index to switch embedders",
		embed.ErrDimensionMismatch, stored, got)
}

func source(e core.IndexEntry) string {
	if s, ok := e.Metadata["source"].(string); ok && s != "" {
		return s
	}
	return e.Chunk.DocumentID
}
