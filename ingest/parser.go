package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/logging"
)

// Defaults mirror the ingestion section of the configuration.
const (
	DefaultWorkers        = 2
	DefaultOCRTimeout     = 8 * time.Second
	DefaultMinDirectChars = 1
	DefaultMinOCRChars    = 20
	DefaultMaxImagePixels = 3_000_000
	DefaultDPI            = 150
)

// Options configure a Parser.
type Options struct {
	OCR           OCR
	Rasterizer    Rasterizer
	PageExtractor PageExtractor

	// Workers bounds concurrent OCR units per document.
	Workers    int
	OCRTimeout time.Duration
	// MinDirectChars is the printable-rune count below which a PDF page is
	// treated as text-empty and queued for OCR.
	MinDirectChars int
	// MinOCRChars is the rune count below which OCR output counts as empty.
	MinOCRChars    int
	MaxImagePixels int
	// MaxOCRPages caps OCR units per PDF; zero means unlimited.
	MaxOCRPages int

	Logger logging.Logger
}

// Parser extracts page-ordered text from documents. It is safe for
// concurrent use.
type Parser struct {
	opts   Options
	logger logging.Logger
}

// NewParser creates a Parser. Without an explicit OCR engine or rasterizer
// the tesseract and pdftoppm binaries on PATH are used.
func NewParser(optFns ...func(o *Options)) *Parser {
	opts := Options{
		PageExtractor:  PDFTextExtractor{},
		OCR:            NewTesseract("", DefaultDPI),
		Rasterizer:     NewPdftoppm("", DefaultDPI),
		Workers:        DefaultWorkers,
		OCRTimeout:     DefaultOCRTimeout,
		MinDirectChars: DefaultMinDirectChars,
		MinOCRChars:    DefaultMinOCRChars,
		MaxImagePixels: DefaultMaxImagePixels,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.OCRTimeout <= 0 {
		opts.OCRTimeout = DefaultOCRTimeout
	}
	if opts.MinDirectChars <= 0 {
		opts.MinDirectChars = DefaultMinDirectChars
	}
	if opts.PageExtractor == nil {
		opts.PageExtractor = PDFTextExtractor{}
	}

	return &Parser{opts: opts, logger: logging.Ensure(opts.Logger)}
}

// ParseFile reads and parses the file at path. Unsupported extensions fail
// before the file is read.
func (p *Parser) ParseFile(ctx context.Context, path string) (*core.Document, error) {
	if _, err := DetectFormat(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return p.Parse(ctx, path, raw)
}

// Parse extracts the pages of raw, whose format is chosen from name.
// Per-page failures are recorded on the page; an error is returned only for
// unsupported formats and documents that cannot be opened at all.
func (p *Parser) Parse(ctx context.Context, name string, raw []byte) (*core.Document, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	doc := &core.Document{ID: DocumentID(name), Name: name, Format: format, Raw: raw}

	switch format {
	case core.FormatTXT:
		doc.Pages = p.parseText(raw)
	case core.FormatDOCX:
		text, err := extractDOCX(raw)
		if err != nil {
			return nil, &core.ParseError{Page: -1, Err: err}
		}
		doc.Pages = []core.PageRecord{directRecord(0, text)}
	case core.FormatPDF:
		pages, err := p.parsePDF(ctx, raw)
		if err != nil {
			return nil, &core.ParseError{Page: -1, Err: err}
		}
		doc.Pages = pages
	case core.FormatImage:
		doc.Pages = p.runOCR(ctx, []ocrUnit{{
			page: 0,
			load: func(context.Context) ([]byte, error) { return raw, nil },
		}})
	}

	p.logger.Info("ingest.parse.completed",
		"document", doc.ID,
		"format", string(format),
		"pages", len(doc.Pages),
		"text_pages", len(doc.TextPages()),
		"ocr_pages", len(doc.OCRPages()),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return doc, nil
}

// parseText splits plain text on form feeds, one page per segment.
func (p *Parser) parseText(raw []byte) []core.PageRecord {
	segments := strings.Split(decodeText(raw), "\f")
	pages := make([]core.PageRecord, len(segments))
	for i, s := range segments {
		pages[i] = directRecord(i, s)
	}
	return pages
}

func (p *Parser) parsePDF(ctx context.Context, raw []byte) ([]core.PageRecord, error) {
	texts, err := p.opts.PageExtractor.ExtractPages(ctx, raw)
	if err != nil {
		return nil, err
	}

	pages := make([]core.PageRecord, len(texts))
	var units []ocrUnit

	// The PDF is written to disk at most once, on the first rasterised page.
	var (
		once     sync.Once
		pdfPath  string
		writeErr error
		cleanup  = func() {}
	)
	defer func() { cleanup() }()

	pdfFile := func() (string, error) {
		once.Do(func() {
			pdfPath, cleanup, writeErr = writeTemp("smartinfo-*.pdf", raw)
			if cleanup == nil {
				cleanup = func() {}
			}
		})
		return pdfPath, writeErr
	}

	for i, pt := range texts {
		if pt.Err == nil && printableLen(pt.Text) >= p.opts.MinDirectChars {
			pages[i] = directRecord(i, pt.Text)
			continue
		}
		if pt.Err != nil {
			p.logger.Warn("ingest.pdf.page_failed", "page", i+1, "error", pt.Err.Error())
		}

		if p.opts.MaxOCRPages > 0 && len(units) >= p.opts.MaxOCRPages {
			pages[i] = core.PageRecord{Index: i, Method: core.MethodDirect, Text: strings.TrimSpace(pt.Text), LowConfidence: true}
			pages[i].Empty = pages[i].Text == ""
			continue
		}

		page := i
		units = append(units, ocrUnit{
			page:   page,
			direct: pt.Text,
			load: func(ctx context.Context) ([]byte, error) {
				if p.opts.Rasterizer == nil {
					return nil, ErrOCRUnavailable
				}
				path, err := pdfFile()
				if err != nil {
					return nil, err
				}
				return p.opts.Rasterizer.Rasterize(ctx, path, page)
			},
		})
	}

	if len(units) == 0 {
		return pages, nil
	}

	p.logger.Debug("ingest.ocr.queued", "pages", len(units))
	for i, rec := range p.runOCR(ctx, units) {
		pages[units[i].page] = rec
	}

	return pages, nil
}

func directRecord(index int, text string) core.PageRecord {
	text = strings.TrimSpace(text)
	return core.PageRecord{Index: index, Text: text, Method: core.MethodDirect, Empty: text == ""}
}
