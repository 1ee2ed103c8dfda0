// Package chunk splits extracted document text into overlapping,
// deterministic segments. Sizes and offsets are measured in runes.
package chunk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tanishra/smartinfo/core"
)

// Defaults used when the configuration does not override them.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// ErrInvalidConfig reports a size/overlap pair that cannot make progress.
var ErrInvalidConfig = errors.New("invalid chunk configuration")

// Chunker produces chunks of at most Size runes where consecutive chunks
// share exactly Overlap runes. It holds no state and is safe for concurrent
// use.
type Chunker struct {
	size    int
	overlap int
}

// New validates the configuration. size must be positive and strictly
// greater than overlap, and overlap must not be negative.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	if size <= overlap {
		return nil, fmt.Errorf("%w: size (%d) must be greater than overlap (%d)", ErrInvalidConfig, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Normalize unifies line endings, drops blank lines, trims each line and
// joins the remaining lines with single spaces.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}

	return strings.Join(kept, " ")
}

type pageSpan struct {
	page       int
	start, end int
}

// Join concatenates the normalised text of every non-empty page with single
// spaces and records the rune span each page occupies.
func Join(pages []core.PageRecord) ([]rune, []pageSpan) {
	var (
		out   []rune
		spans []pageSpan
	)

	for _, p := range pages {
		if p.Empty {
			continue
		}
		norm := []rune(Normalize(p.Text))
		if len(norm) == 0 {
			continue
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		start := len(out)
		out = append(out, norm...)
		spans = append(spans, pageSpan{page: p.Index, start: start, end: len(out)})
	}

	return out, spans
}

// Split chunks the concatenation of the document's non-empty pages.
func (c *Chunker) Split(docID string, pages []core.PageRecord) []core.Chunk {
	text, spans := Join(pages)
	return c.split(docID, text, spans)
}

// SplitText chunks a single block of text, treated as page 0.
func (c *Chunker) SplitText(docID, text string) []core.Chunk {
	return c.Split(docID, []core.PageRecord{{Index: 0, Text: text}})
}

func (c *Chunker) split(docID string, text []rune, spans []pageSpan) []core.Chunk {
	total := len(text)
	if total == 0 {
		return nil
	}

	if total <= c.size {
		return []core.Chunk{{
			DocumentID: docID,
			Text:       string(text),
			End:        total,
			Pages:      pagesIn(spans, 0, total),
		}}
	}

	step := c.size - c.overlap
	chunks := make([]core.Chunk, 0, total/step+1)

	for i := 0; ; i++ {
		start := i * step
		end := min(start+c.size, total)

		ch := core.Chunk{
			DocumentID: docID,
			Index:      i,
			Text:       string(text[start:end]),
			Start:      start,
			End:        end,
			Pages:      pagesIn(spans, start, end),
		}
		if end < total {
			ch.Overlap = c.overlap
		}
		chunks = append(chunks, ch)

		if end == total {
			break
		}
	}

	return chunks
}

func pagesIn(spans []pageSpan, start, end int) []int {
	var out []int
	for _, s := range spans {
		if s.start < end && s.end > start {
			out = append(out, s.page)
		}
	}
	return out
}
