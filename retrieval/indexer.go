package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/embed"
	"github.com/tanishra/smartinfo/logging"
	"github.com/tanishra/smartinfo/vectorstore"
)

// DefaultTopK is the number of chunks returned when k is not positive.
const DefaultTopK = 5

// DefaultTimeout bounds each embedding or store call of a retrieval.
const DefaultTimeout = 20 * time.Second

// IndexerOptions configure an Indexer.
type IndexerOptions struct {
	// Timeout bounds each Retrieve call. Zero disables the bound.
	Timeout time.Duration
	Logger  logging.Logger
	// Clock seeds ingestion sequence numbers.
	Clock func() time.Time
}

// Indexer maintains the chunk index.
type Indexer struct {
	embedder embed.Embedder
	store    vectorstore.Store
	opts     IndexerOptions
	logger   logging.Logger

	// mu serialises sequence assignment and same-process replaces.
	mu  sync.Mutex
	seq int64
}

// NewIndexer creates an Indexer over store using embedder.
func NewIndexer(embedder embed.Embedder, store vectorstore.Store, optFns ...func(o *IndexerOptions)) *Indexer {
	opts := IndexerOptions{
		Timeout: DefaultTimeout,
		Clock:   time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Indexer{
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logging.Ensure(opts.Logger),
	}
}

// Index embeds chunks and replaces every entry of docID with them.
// Re-indexing a document keeps its ingestion sequence.
func (ix *Indexer) Index(ctx context.Context, docID, source string, chunks []core.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, ix.Remove(ctx, docID)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", docID, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed %s: %w: %d vectors for %d chunks", docID, embed.ErrDimensionMismatch, len(vectors), len(chunks))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	seq, err := ix.sequence(ctx, docID)
	if err != nil {
		return 0, err
	}

	entries := make([]core.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = core.IndexEntry{
			Chunk:  c,
			Vector: vectors[i],
			Metadata: map[string]any{
				"source": source,
				"chunk":  c.Index,
				"pages":  c.Pages,
			},
			Seq: seq,
		}
	}

	if err := ix.store.Replace(ctx, docID, entries); err != nil {
		return 0, fmt.Errorf("store %s: %w", docID, err)
	}

	ix.logger.Debug("retrieval.index.replaced", "document", docID, "entries", len(entries), "seq", seq)
	return len(entries), nil
}

// sequence returns the recorded sequence of docID or assigns the next one.
// Must be called with mu held.
func (ix *Indexer) sequence(ctx context.Context, docID string) (int64, error) {
	seq, ok, err := ix.store.Seq(ctx, docID)
	if err != nil {
		return 0, fmt.Errorf("lookup sequence of %s: %w", docID, err)
	}
	if ok {
		return seq, nil
	}

	next := ix.opts.Clock().UnixNano()
	if next <= ix.seq {
		next = ix.seq + 1
	}
	ix.seq = next
	return next, nil
}

// Retrieve returns the k chunks most similar to query. A blank query or an
// empty index yields an empty slice and no error.
func (ix *Indexer) Retrieve(ctx context.Context, query string, k int) ([]core.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return []core.ScoredChunk{}, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	if ix.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.opts.Timeout)
		defer cancel()
	}

	n, err := ix.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}
	if n == 0 {
		return []core.ScoredChunk{}, nil
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: %w", embed.ErrDimensionMismatch)
	}

	hits, err := ix.store.Query(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	return vectorstore.Rank(hits, k), nil
}

// Remove deletes every entry of docID.
func (ix *Indexer) Remove(ctx context.Context, docID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.store.Delete(ctx, docID); err != nil {
		return fmt.Errorf("remove %s: %w", docID, err)
	}
	return nil
}

// Count returns the number of indexed chunks.
func (ix *Indexer) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx)
}
