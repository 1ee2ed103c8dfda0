package core

// Format is the declared source format of a document.
type Format string

// Supported formats.
const (
	FormatPDF   Format = "pdf"
	FormatDOCX  Format = "docx"
	FormatTXT   Format = "txt"
	FormatImage Format = "image"
)

// ExtractionMethod records how a page's text was obtained.
type ExtractionMethod string

// Extraction methods.
const (
	MethodDirect ExtractionMethod = "direct"
	MethodOCR    ExtractionMethod = "ocr"
)

// PageRecord is the extraction outcome for a single page (or a single image).
type PageRecord struct {
	Index         int              `json:"index"`
	Text          string           `json:"text"`
	Method        ExtractionMethod `json:"method"`
	Empty         bool             `json:"empty"`
	LowConfidence bool             `json:"low_confidence"`
	Err           error            `json:"-"`
}

// Document is owned by one ingestion request and discarded after indexing.
type Document struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Format Format       `json:"format"`
	Raw    []byte       `json:"-"`
	Pages  []PageRecord `json:"pages"`
}

// TextPages returns the pages that carry text, in page order.
func (d *Document) TextPages() []PageRecord {
	out := make([]PageRecord, 0, len(d.Pages))
	for _, p := range d.Pages {
		if !p.Empty && p.Text != "" {
			out = append(out, p)
		}
	}
	return out
}

// OCRPages returns the indices of pages whose text came from OCR.
func (d *Document) OCRPages() []int {
	var out []int
	for _, p := range d.Pages {
		if p.Method == MethodOCR {
			out = append(out, p.Index)
		}
	}
	return out
}
