// Package indexer splits course documents into overlapping chunks and embeds them.
package indexer

import (
	"errors"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrInvalidChunkParams is returned for a non-positive size or an overlap outside [0, size).
var ErrInvalidChunkParams = errors.New("invalid chunk parameters")

// Chunker splits text into overlapping character windows. Sizes count runes, not bytes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunkParams, chunkSize, chunkOverlap)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Size returns the chunk size in characters.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the overlap between consecutive chunks in characters.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Span is one window of a split: its text and rune offset.
type Span struct {
	Offset int
	Text   string
}

// Split cuts text into windows of chunkSize runes, each starting chunkSize-chunkOverlap
// runes after the previous one. The last window ends at the end of the text.
// Empty text yields no spans.
func (c *Chunker) Split(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	spans := make([]Span, 0, n/step+1)
	for start := 0; ; start += step {
		end := min(start+c.chunkSize, n)
		spans = append(spans, Span{Offset: start, Text: string(runes[start:end])})
		if end == n {
			break
		}
	}
	return spans
}

// Chunk splits a document's text into chunks tagged with the document's ID and title.
func (c *Chunker) Chunk(doc models.Document) []models.Chunk {
	spans := c.Split(doc.Text)
	if len(spans) == 0 {
		return nil
	}
	chunks := make([]models.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = models.Chunk{
			DocumentID:  doc.ID,
			Index:       i,
			Offset:      s.Offset,
			Text:        s.Text,
			SourceTitle: doc.Title,
		}
	}
	return chunks
}
