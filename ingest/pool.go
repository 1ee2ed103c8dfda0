package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for DecodeConfig
	_ "image/png"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/tanishra/smartinfo/core"
)

// ErrImageTooLarge is recorded on pages whose raster exceeds MaxImagePixels.
var ErrImageTooLarge = errors.New("image exceeds pixel limit")

// ocrUnit is one independently schedulable OCR job.
type ocrUnit struct {
	page int
	// direct is the (too short) direct text, kept when OCR yields nothing.
	direct string
	load   func(ctx context.Context) ([]byte, error)
}

// runOCR executes units on at most Workers goroutines. results[i] belongs to
// units[i] regardless of completion order. Units never cancel each other.
func (p *Parser) runOCR(ctx context.Context, units []ocrUnit) []core.PageRecord {
	results := make([]core.PageRecord, len(units))

	g := new(errgroup.Group)
	g.SetLimit(p.opts.Workers)

	for i, u := range units {
		g.Go(func() error {
			results[i] = p.ocrPage(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Parser) ocrPage(parent context.Context, u ocrUnit) (rec core.PageRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec = p.fallback(u, fmt.Errorf("ocr panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(parent, p.opts.OCRTimeout)
	defer cancel()

	if p.opts.OCR == nil {
		return p.fallback(u, ErrOCRUnavailable)
	}

	img, err := u.load(ctx)
	if err != nil {
		return p.unitFailure(ctx, u, err)
	}

	if p.opts.MaxImagePixels > 0 {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(img)); err == nil {
			if px := cfg.Width * cfg.Height; px > p.opts.MaxImagePixels {
				p.logger.Warn("ingest.ocr.skipped", "page", u.page+1, "width", cfg.Width, "height", cfg.Height, "reason", "too large")
				return p.fallback(u, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height))
			}
		}
	}

	text, err := p.extract(ctx, img)
	if err != nil {
		return p.unitFailure(ctx, u, err)
	}

	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < p.opts.MinOCRChars {
		p.logger.Debug("ingest.ocr.empty", "page", u.page+1, "chars", utf8.RuneCountInString(text))
		return p.fallback(u, nil)
	}

	return core.PageRecord{Index: u.page, Text: text, Method: core.MethodOCR}
}

// extract runs the OCR engine but returns as soon as ctx is done, even when
// the engine ignores cancellation.
func (p *Parser) extract(ctx context.Context, img []byte) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("ocr panic: %v", r)}
			}
		}()
		text, err := p.opts.OCR.Extract(ctx, img)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Parser) unitFailure(ctx context.Context, u ocrUnit, err error) core.PageRecord {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.logger.Warn("ingest.ocr.timeout", "page", u.page+1, "timeout", p.opts.OCRTimeout.String())
		return p.fallback(u, fmt.Errorf("ocr timed out after %s: %w", p.opts.OCRTimeout, context.DeadlineExceeded))
	}
	p.logger.Warn("ingest.ocr.failed", "page", u.page+1, "error", err.Error())
	return p.fallback(u, err)
}

// fallback builds the low-confidence record of a unit whose OCR produced no
// usable text: the short direct text if any, otherwise an empty page.
func (p *Parser) fallback(u ocrUnit, cause error) core.PageRecord {
	rec := core.PageRecord{Index: u.page, Method: core.MethodOCR, LowConfidence: true}
	if cause != nil {
		rec.Err = &core.ParseError{Page: u.page, Err: cause}
	}

	if text := strings.TrimSpace(u.direct); text != "" {
		rec.Text = text
		rec.Method = core.MethodDirect
		return rec
	}

	rec.Empty = true
	return rec
}
