package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanishra/smartinfo/core"
)

// -------------------- Test Doubles --------------------

type fakeExtractor struct {
	pages []PageText
	err   error
}

func (f fakeExtractor) ExtractPages(context.Context, []byte) ([]PageText, error) {
	return f.pages, f.err
}

// fakeRasterizer encodes the page number into the "image" bytes.
type fakeRasterizer struct {
	mu    sync.Mutex
	pages []int
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ string, page int) ([]byte, error) {
	f.mu.Lock()
	f.pages = append(f.pages, page)
	f.mu.Unlock()
	return []byte(fmt.Sprintf("page-%d", page)), nil
}

type fakeOCR struct {
	texts   map[string]string
	block   map[string]bool
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	delay   time.Duration
}

func (f *fakeOCR) Extract(ctx context.Context, img []byte) (string, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		old := f.maxSeen.Load()
		if n <= old || f.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}

	key := string(img)
	if f.block[key] {
		// Ignores ctx on purpose: the pool must still time the unit out.
		time.Sleep(time.Second)
		return "late text that should never be used", nil
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if t, ok := f.texts[key]; ok {
		return t, nil
	}
	return "", errors.New("unreadable")
}

const scannedText = "This paragraph was recovered from a scanned page by OCR."

func newTestParser(ocr OCR, ex PageExtractor, r Rasterizer, fns ...func(o *Options)) *Parser {
	return NewParser(append([]func(o *Options){func(o *Options) {
		o.OCR = ocr
		o.PageExtractor = ex
		o.Rasterizer = r
	}}, fns...)...)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// -------------------- Format --------------------

func TestDetectFormat(t *testing.T) {
	tests := map[string]core.Format{
		"a.pdf":      core.FormatPDF,
		"B.DOCX":     core.FormatDOCX,
		"notes.txt":  core.FormatTXT,
		"readme.md":  core.FormatTXT,
		"scan.jpeg":  core.FormatImage,
		"scan.JPG":   core.FormatImage,
		"scan.png":   core.FormatImage,
		"dir/x.y.md": core.FormatTXT,
	}
	for name, want := range tests {
		got, err := DetectFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := DetectFormat("sheet.xlsx")
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)

	var ufe *core.UnsupportedFormatError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, ".xlsx", ufe.Ext)
}

func TestParseFile_UnsupportedBeforeRead(t *testing.T) {
	p := NewParser()
	_, err := p.ParseFile(context.Background(), "/does/not/exist.exe")
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

// -------------------- Text & DOCX --------------------

func TestParse_Text(t *testing.T) {
	p := NewParser()
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("first page\r\nline two\fsecond page\f   ")...)

	doc, err := p.Parse(context.Background(), "notes.txt", raw)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, "first page\r\nline two", doc.Pages[0].Text)
	assert.Equal(t, "second page", doc.Pages[1].Text)
	assert.True(t, doc.Pages[2].Empty)
	assert.Len(t, doc.TextPages(), 2)
	assert.Equal(t, DocumentID("notes.txt"), doc.ID)
}

func TestDocumentID(t *testing.T) {
	a := DocumentID("projA/notes.txt")
	b := DocumentID("projB/notes.txt")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "notes.txt-"))
	assert.Equal(t, a, DocumentID("projA/./notes.txt"))
	assert.Equal(t, a, DocumentID("projA/notes.txt"))
}

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParse_DOCX(t *testing.T) {
	raw := buildDOCX(t,
		`<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>   </w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Col A</w:t><w:tab/><w:t>Col B</w:t></w:r></w:p>`)

	doc, err := NewParser().Parse(context.Background(), "report.docx", raw)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "Hello world\nCol A\tCol B", doc.Pages[0].Text)
	assert.Equal(t, core.MethodDirect, doc.Pages[0].Method)
}

func TestParse_DOCXIgnoresTabStops(t *testing.T) {
	raw := buildDOCX(t,
		`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/><w:tab w:val="right" w:pos="9000"/></w:tabs></w:pPr>`+
			`<w:r><w:t>Name</w:t></w:r><w:r><w:tab/><w:t>Value</w:t></w:r></w:p>`+
			`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Plain</w:t><w:br/><w:t>line</w:t></w:r></w:p>`)

	doc, err := NewParser().Parse(context.Background(), "layout.docx", raw)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "Name\tValue\nPlain\nline", doc.Pages[0].Text)
}

func TestParse_DOCXCorrupt(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), "broken.docx", []byte("not a zip"))
	assert.ErrorIs(t, err, core.ErrParseFailure)
}

// -------------------- PDF --------------------

func TestParse_PDFScannedMiddlePage(t *testing.T) {
	ocr := &fakeOCR{texts: map[string]string{"page-1": scannedText}}
	raster := &fakeRasterizer{}
	ex := fakeExtractor{pages: []PageText{
		{Text: "Page one has a text layer."},
		{Text: "  \n "},
		{Text: "Page three has a text layer too."},
	}}

	doc, err := newTestParser(ocr, ex, raster).Parse(context.Background(), "mixed.pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Len(t, doc.Pages, 3)

	assert.Equal(t, core.MethodDirect, doc.Pages[0].Method)
	assert.Equal(t, core.MethodOCR, doc.Pages[1].Method)
	assert.Equal(t, scannedText, doc.Pages[1].Text)
	assert.Equal(t, core.MethodDirect, doc.Pages[2].Method)

	assert.Equal(t, []int{1}, raster.pages, "only the text-empty page is rasterised")
	assert.Equal(t, int32(1), ocr.calls.Load())
	assert.Equal(t, []int{1}, doc.OCRPages())
}

func TestParse_PDFOCRTimeout(t *testing.T) {
	ocr := &fakeOCR{
		texts: map[string]string{"page-0": scannedText, "page-2": scannedText},
		block: map[string]bool{"page-1": true},
	}
	ex := fakeExtractor{pages: []PageText{{}, {}, {}}}

	p := newTestParser(ocr, ex, &fakeRasterizer{}, func(o *Options) { o.OCRTimeout = 50 * time.Millisecond })

	start := time.Now()
	doc, err := p.Parse(context.Background(), "scan.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	require.Len(t, doc.Pages, 3)
	assert.Equal(t, scannedText, doc.Pages[0].Text)
	assert.Equal(t, scannedText, doc.Pages[2].Text)

	timedOut := doc.Pages[1]
	assert.True(t, timedOut.Empty)
	assert.True(t, timedOut.LowConfidence)
	assert.Empty(t, timedOut.Text)
	assert.ErrorIs(t, timedOut.Err, context.DeadlineExceeded)
	assert.ErrorIs(t, timedOut.Err, core.ErrParseFailure)
}

func TestParse_PDFShortOCRKeepsDirectText(t *testing.T) {
	ocr := &fakeOCR{texts: map[string]string{"page-0": "too short"}}
	ex := fakeExtractor{pages: []PageText{{Text: "7"}}}

	doc, err := newTestParser(ocr, ex, &fakeRasterizer{}, func(o *Options) { o.MinDirectChars = 5 }).
		Parse(context.Background(), "short.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "7", doc.Pages[0].Text)
	assert.True(t, doc.Pages[0].LowConfidence)
	assert.False(t, doc.Pages[0].Empty)
}

func TestParse_PDFWorkerBound(t *testing.T) {
	texts := map[string]string{}
	pages := make([]PageText, 8)
	for i := range pages {
		texts[fmt.Sprintf("page-%d", i)] = strings.Repeat("ocr text ", 5)
	}
	ocr := &fakeOCR{texts: texts, delay: 10 * time.Millisecond}

	doc, err := newTestParser(ocr, fakeExtractor{pages: pages}, &fakeRasterizer{}, func(o *Options) { o.Workers = 2 }).
		Parse(context.Background(), "big.pdf", []byte("%PDF"))
	require.NoError(t, err)

	assert.LessOrEqual(t, ocr.maxSeen.Load(), int32(2))
	for i, pg := range doc.Pages {
		assert.Equal(t, i, pg.Index, "pages stay in order")
		assert.False(t, pg.Empty)
	}
}

func TestParse_PDFMaxOCRPages(t *testing.T) {
	ocr := &fakeOCR{texts: map[string]string{"page-0": scannedText, "page-1": scannedText}}
	doc, err := newTestParser(ocr, fakeExtractor{pages: []PageText{{}, {}}}, &fakeRasterizer{}, func(o *Options) { o.MaxOCRPages = 1 }).
		Parse(context.Background(), "cap.pdf", []byte("%PDF"))
	require.NoError(t, err)

	assert.False(t, doc.Pages[0].Empty)
	assert.True(t, doc.Pages[1].Empty)
	assert.Equal(t, int32(1), ocr.calls.Load())
}

func TestParse_PDFUnreadable(t *testing.T) {
	p := newTestParser(&fakeOCR{}, fakeExtractor{err: errors.New("xref broken")}, &fakeRasterizer{})
	_, err := p.Parse(context.Background(), "bad.pdf", []byte("junk"))
	assert.ErrorIs(t, err, core.ErrParseFailure)
}

func TestParse_PDFWithoutOCREngine(t *testing.T) {
	p := newTestParser(nil, fakeExtractor{pages: []PageText{{Text: "direct"}, {}}}, nil)
	doc, err := p.Parse(context.Background(), "noocr.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "direct", doc.Pages[0].Text)
	assert.True(t, doc.Pages[1].Empty)
	assert.ErrorIs(t, doc.Pages[1].Err, ErrOCRUnavailable)
}

// -------------------- Images --------------------

func TestParse_Image(t *testing.T) {
	img := pngBytes(t, 10, 10)
	ocr := &fakeOCR{texts: map[string]string{string(img): scannedText}}

	doc, err := newTestParser(ocr, nil, nil).Parse(context.Background(), "receipt.png", img)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, core.MethodOCR, doc.Pages[0].Method)
	assert.Equal(t, scannedText, doc.Pages[0].Text)
}

func TestParse_ImageTooLarge(t *testing.T) {
	img := pngBytes(t, 40, 40)
	ocr := &fakeOCR{texts: map[string]string{string(img): scannedText}}

	doc, err := newTestParser(ocr, nil, nil, func(o *Options) { o.MaxImagePixels = 1000 }).
		Parse(context.Background(), "huge.png", img)
	require.NoError(t, err)
	assert.True(t, doc.Pages[0].Empty)
	assert.True(t, doc.Pages[0].LowConfidence)
	assert.ErrorIs(t, doc.Pages[0].Err, ErrImageTooLarge)
	assert.Equal(t, int32(0), ocr.calls.Load())
}

func TestParse_ImageShortOCRIsEmpty(t *testing.T) {
	img := pngBytes(t, 4, 4)
	ocr := &fakeOCR{texts: map[string]string{string(img): "  noise  "}}

	doc, err := newTestParser(ocr, nil, nil).Parse(context.Background(), "blank.jpg", img)
	require.NoError(t, err)
	assert.True(t, doc.Pages[0].Empty)
	assert.Empty(t, doc.TextPages())
}
