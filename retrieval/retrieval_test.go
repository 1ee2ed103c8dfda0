package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanishra/smartinfo/chunk"
	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/embed"
	"github.com/tanishra/smartinfo/ingest"
	"github.com/tanishra/smartinfo/vectorstore"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding backend down")
}

func (failingEmbedder) Dimensions() int { return 0 }

func fixedClock() func() time.Time {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time { return base }
}

func newIndexer(t *testing.T) *Indexer {
	t.Helper()
	return NewIndexer(embed.NewHashEmbedder(64), vectorstore.NewMemoryStore(), func(o *IndexerOptions) {
		o.Clock = fixedClock()
	})
}

func chunksOf(t *testing.T, docID, text string) []core.Chunk {
	t.Helper()
	c, err := chunk.New(40, 10)
	require.NoError(t, err)
	return c.SplitText(docID, text)
}

func TestRetrieveEmptyIndex(t *testing.T) {
	ix := newIndexer(t)

	hits, err := ix.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestRetrieveBlankQuery(t *testing.T) {
	ix := newIndexer(t)
	_, err := ix.Index(context.Background(), "a", "a.txt", chunksOf(t, "a", "some text"))
	require.NoError(t, err)

	hits, err := ix.Retrieve(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ix := newIndexer(t)

	chunks := chunksOf(t, "notes", strings.Repeat("quarterly revenue figures and forecasts ", 6))
	require.Greater(t, len(chunks), 1)

	n1, err := ix.Index(ctx, "notes", "notes.txt", chunks)
	require.NoError(t, err)
	count1, err := ix.Count(ctx)
	require.NoError(t, err)

	n2, err := ix.Index(ctx, "notes", "notes.txt", chunks)
	require.NoError(t, err)
	count2, err := ix.Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, n1, n2)
	assert.Equal(t, count1, count2)
	assert.Equal(t, len(chunks), count2)
}

func TestRetrieveRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	ix := newIndexer(t)

	_, err := ix.Index(ctx, "pets", "pets.txt", chunksOf(t, "pets", "cats and dogs are popular pets"))
	require.NoError(t, err)
	_, err = ix.Index(ctx, "finance", "finance.txt", chunksOf(t, "finance", "revenue grew in the third quarter"))
	require.NoError(t, err)

	hits, err := ix.Retrieve(ctx, "third quarter revenue", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "finance", hits[0].Chunk.DocumentID)
	assert.Equal(t, "finance.txt", hits[0].Source)

	all, err := ix.Retrieve(ctx, "third quarter revenue", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2, "fewer than k entries returns what exists")
}

func TestRetrieveTiesFollowIngestionOrder(t *testing.T) {
	ctx := context.Background()
	ix := newIndexer(t)

	same := "identical text in both documents"
	_, err := ix.Index(ctx, "first", "first.txt", chunksOf(t, "first", same))
	require.NoError(t, err)
	_, err = ix.Index(ctx, "second", "second.txt", chunksOf(t, "second", same))
	require.NoError(t, err)

	// re-indexing keeps the original sequence
	_, err = ix.Index(ctx, "first", "first.txt", chunksOf(t, "first", same))
	require.NoError(t, err)

	hits, err := ix.Retrieve(ctx, same, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "first", hits[0].Chunk.DocumentID)
	assert.Equal(t, "second", hits[1].Chunk.DocumentID)
	assert.Less(t, hits[0].Seq, hits[1].Seq)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	ix := newIndexer(t)

	_, err := ix.Index(ctx, "a", "a.txt", chunksOf(t, "a", "alpha"))
	require.NoError(t, err)
	require.NoError(t, ix.Remove(ctx, "a"))
	require.NoError(t, ix.Remove(ctx, "a"))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexEmbedFailure(t *testing.T) {
	ix := NewIndexer(failingEmbedder{}, vectorstore.NewMemoryStore())

	_, err := ix.Index(context.Background(), "a", "a.txt", []core.Chunk{{DocumentID: "a", Text: "x", End: 1}})
	assert.ErrorContains(t, err, "embedding backend down")
}

func TestIndexRejectsEmbedderWidthChange(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	t.Cleanup(func() { _ = store.Close() })

	wide := NewIndexer(embed.NewHashEmbedder(256), store)
	_, err := wide.Index(ctx, "btc", "btc.txt", chunksOf(t, "btc", "bitcoin price notes for the week"))
	require.NoError(t, err)

	narrow := NewIndexer(embed.NewHashEmbedder(64), store)
	_, err = narrow.Retrieve(ctx, "bitcoin price", 3)
	assert.ErrorIs(t, err, embed.ErrDimensionMismatch)

	_, err = narrow.Index(ctx, "eth", "eth.txt", chunksOf(t, "eth", "ether gas fees"))
	assert.ErrorIs(t, err, embed.ErrDimensionMismatch)

	hits, err := wide.Retrieve(ctx, "bitcoin price", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "btc", hits[0].Chunk.DocumentID)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newPipeline(t *testing.T) (*Pipeline, *Indexer) {
	t.Helper()
	c, err := chunk.New(50, 10)
	require.NoError(t, err)
	ix := newIndexer(t)
	return NewPipeline(ingest.NewParser(), c, ix, func(o *PipelineOptions) { o.Concurrency = 2 }), ix
}

func TestPipelineIngestText(t *testing.T) {
	ctx := context.Background()
	p, ix := newPipeline(t)

	path := writeFile(t, t.TempDir(), "travel.txt", strings.Repeat("Flights from Delhi to Mumbai depart hourly. ", 5))

	report, err := p.IngestFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, ingest.DocumentID(path), report.DocumentID)
	assert.Equal(t, core.FormatTXT, report.Format)
	assert.False(t, report.Skipped)
	assert.Greater(t, report.Chunks, 1)

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.Chunks, n)

	// same file again replaces instead of accumulating
	_, err = p.IngestFile(ctx, path)
	require.NoError(t, err)
	n2, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, n2)
}

func TestPipelineSkipsEmptyDocument(t *testing.T) {
	p, ix := newPipeline(t)
	path := writeFile(t, t.TempDir(), "blank.txt", " \n\n \f ")

	report, err := p.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	n, err := ix.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPipelineUnsupportedFormat(t *testing.T) {
	p, _ := newPipeline(t)

	// never created on disk: the format is rejected before reading
	_, err := p.IngestFile(context.Background(), filepath.Join(t.TempDir(), "slides.pptx"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestPipelineIngestFiles(t *testing.T) {
	dir := t.TempDir()
	p, _ := newPipeline(t)

	good := writeFile(t, dir, "a.txt", "alpha beta gamma")
	bad := filepath.Join(dir, "b.xls")
	other := writeFile(t, dir, "c.md", "delta epsilon")

	reports, err := p.IngestFiles(context.Background(), good, bad, other)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)

	require.Len(t, reports, 3)
	assert.Equal(t, ingest.DocumentID(good), reports[0].DocumentID)
	assert.NoError(t, reports[0].Err)
	assert.ErrorIs(t, reports[1].Err, core.ErrUnsupportedFormat)
	assert.Equal(t, ingest.DocumentID(other), reports[2].DocumentID)
	assert.Equal(t, 1, reports[2].Chunks)
}

func TestPipelineKeepsSameNamedFilesApart(t *testing.T) {
	ctx := context.Background()
	p, ix := newPipeline(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "projA"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "projB"), 0o755))
	a := writeFile(t, filepath.Join(root, "projA"), "notes.txt", "zebra giraffe safari notes")
	b := writeFile(t, filepath.Join(root, "projB"), "notes.txt", "beta rocket engine facts")

	reports, err := p.IngestFiles(ctx, a, b)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.NotEqual(t, reports[0].DocumentID, reports[1].DocumentID)

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, reports[0].Chunks+reports[1].Chunks, n)

	hits, err := ix.Retrieve(ctx, "zebra giraffe", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, reports[0].DocumentID, hits[0].Chunk.DocumentID)
	assert.Equal(t, "notes.txt", hits[0].Source)
}
