package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PageText is the direct extraction result of one PDF page.
type PageText struct {
	Text string
	Err  error
}

// PageExtractor reads the embedded text layer of every page of a PDF.
type PageExtractor interface {
	ExtractPages(ctx context.Context, raw []byte) ([]PageText, error)
}

// PDFTextExtractor extracts page text with github.com/ledongthuc/pdf.
type PDFTextExtractor struct{}

var _ PageExtractor = PDFTextExtractor{}

// ExtractPages returns one entry per page in order. A page that fails to
// decode carries its error; a document that cannot be opened is an error.
func (PDFTextExtractor) ExtractPages(ctx context.Context, raw []byte) (pages []PageText, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf reader panic: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := r.NumPage()
	pages = make([]PageText, 0, n)

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		pages = append(pages, readPage(r, i))
	}

	return pages, nil
}

func readPage(r *pdf.Reader, num int) (pt PageText) {
	defer func() {
		if rec := recover(); rec != nil {
			pt = PageText{Err: fmt.Errorf("page %d: %v", num, rec)}
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return PageText{}
	}

	text, err := p.GetPlainText(nil)
	if err != nil {
		return PageText{Err: fmt.Errorf("page %d: %w", num, err)}
	}

	return PageText{Text: text}
}
