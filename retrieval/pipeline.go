package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tanishra/smartinfo/chunk"
	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/ingest"
	"github.com/tanishra/smartinfo/logging"
)

// DocumentParser turns raw bytes into page records.
type DocumentParser interface {
	Parse(ctx context.Context, name string, raw []byte) (*core.Document, error)
}

var _ DocumentParser = (*ingest.Parser)(nil)

// Report summarises the ingestion of one input.
type Report struct {
	Name       string        `json:"name"`
	DocumentID string        `json:"document_id"`
	Format     core.Format   `json:"format"`
	Pages      int           `json:"pages"`
	OCRPages   int           `json:"ocr_pages"`
	EmptyPages int           `json:"empty_pages"`
	Chunks     int           `json:"chunks"`
	Skipped    bool          `json:"skipped"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// PipelineOptions configure a Pipeline.
type PipelineOptions struct {
	// Concurrency bounds how many files are ingested at once.
	Concurrency int
	Logger      logging.Logger
}

// Pipeline runs parse, chunk and index for each input.
type Pipeline struct {
	parser  DocumentParser
	chunker *chunk.Chunker
	indexer *Indexer
	opts    PipelineOptions
	logger  logging.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(parser DocumentParser, chunker *chunk.Chunker, indexer *Indexer, optFns ...func(o *PipelineOptions)) *Pipeline {
	opts := PipelineOptions{Concurrency: 1}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &Pipeline{
		parser:  parser,
		chunker: chunker,
		indexer: indexer,
		opts:    opts,
		logger:  logging.Ensure(opts.Logger),
	}
}

// IngestFile ingests the file at path. Unsupported formats are rejected
// before the file is read.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (Report, error) {
	if _, err := ingest.DetectFormat(path); err != nil {
		return Report{Name: path, Err: err}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Report{Name: path, Err: err}, err
	}

	return p.Ingest(ctx, path, raw)
}

// IngestFiles ingests every path and returns one report per input in input
// order. A failing file does not stop the others; the joined failures are
// returned alongside the reports.
func (p *Pipeline) IngestFiles(ctx context.Context, paths ...string) ([]Report, error) {
	reports := make([]Report, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(p.opts.Concurrency)

	for i, path := range paths {
		g.Go(func() error {
			reports[i], _ = p.IngestFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range reports {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}

	return reports, errors.Join(errs...)
}

// Ingest parses raw as the document name, chunks it and indexes the chunks.
// Documents without any text are skipped and leave the index untouched.
func (p *Pipeline) Ingest(ctx context.Context, name string, raw []byte) (Report, error) {
	start := time.Now()
	report := Report{Name: name, DocumentID: ingest.DocumentID(name)}

	doc, err := p.parser.Parse(ctx, name, raw)
	if err != nil {
		report.Err = err
		p.logger.Warn("ingest.document.failed", "document", report.DocumentID, "error", err)
		return report, err
	}

	report.Format = doc.Format
	report.Pages = len(doc.Pages)
	report.OCRPages = len(doc.OCRPages())
	report.EmptyPages = len(doc.Pages) - len(doc.TextPages())

	chunks := p.chunker.Split(doc.ID, doc.Pages)
	if len(chunks) == 0 {
		report.Skipped = true
		report.Duration = time.Since(start)
		p.logger.Warn("ingest.document.skipped", "document", doc.ID, "reason", "no extractable text")
		return report, nil
	}

	n, err := p.indexer.Index(ctx, doc.ID, filepath.Base(name), chunks)
	report.Chunks = n
	report.Duration = time.Since(start)
	if err != nil {
		report.Err = err
		p.logger.Error("ingest.index.failed", "document", doc.ID, "error", err)
		return report, err
	}

	p.logIngest(report)

	return report, nil
}

func (p *Pipeline) logIngest(r Report) {
	if sl, ok := p.logger.(interface {
		LogIngest(doc string, pages, ocrPages, chunks int, dur time.Duration, err error)
	}); ok {
		sl.LogIngest(r.DocumentID, r.Pages, r.OCRPages, r.Chunks, r.Duration, r.Err)
		return
	}
	p.logger.Info("ingest.document.indexed",
		"document", r.DocumentID,
		"pages", r.Pages,
		"ocr_pages", r.OCRPages,
		"chunks", r.Chunks,
		"duration_ms", r.Duration.Milliseconds(),
	)
}
