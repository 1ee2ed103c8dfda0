package core

import "fmt"

// Chunk is a bounded segment of a document's normalised text. Start and End
// are rune offsets into that text, End exclusive. Overlap is the number of
// runes shared with the following chunk; zero for the final chunk.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Overlap    int    `json:"overlap"`
	Pages      []int  `json:"pages"`
}

// ID returns the stable chunk identifier "<document>_<index>".
func (c Chunk) ID() string { return fmt.Sprintf("%s_%d", c.DocumentID, c.Index) }

// IndexEntry pairs a chunk with its embedding. Entries are never mutated;
// re-indexing a document replaces all of its entries.
type IndexEntry struct {
	Chunk    Chunk          `json:"chunk"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
	// Seq orders documents by ingestion.
	Seq int64 `json:"seq"`
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Chunk  Chunk   `json:"chunk"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Seq    int64   `json:"seq"`
}
