// Package models defines core data structures for courses, chunks, and answers.
package models

import (
	"strconv"
	"strings"
	"time"
)

// Document is the published text of one course: title, description and the
// concatenated lesson bodies. It is rebuilt whole on every ingestion.
type Document struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	Text        string    `json:"text" db:"text"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Chunk is a bounded, overlapping substring of a Document's text.
// Offset is measured in runes from the start of the document text.
type Chunk struct {
	DocumentID  string `json:"document_id" db:"document_id"`
	Index       int    `json:"index" db:"chunk_index"`
	Offset      int    `json:"offset" db:"offset"`
	Text        string `json:"text" db:"text"`
	SourceTitle string `json:"source_title" db:"source_title"`
}

// Key identifies the chunk within a generation.
func (c Chunk) Key() string {
	return c.DocumentID + "#" + strconv.Itoa(c.Index)
}

// EmbeddedChunk pairs a chunk with the vector the embedding provider produced for it.
type EmbeddedChunk struct {
	Chunk  Chunk     `json:"chunk"`
	Vector []float32 `json:"-"`
}

// Section is one titled block of course text, typically a lesson.
type Section struct {
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
}

// ComposeText builds a document's searchable text from its parts.
// Empty parts are skipped; parts are separated by blank lines.
func ComposeText(title, description string, sections []Section) string {
	parts := make([]string, 0, 2+2*len(sections))
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	add(title)
	add(description)
	for _, s := range sections {
		add(s.Title)
		add(s.Body)
	}
	return strings.Join(parts, "\n\n")
}
