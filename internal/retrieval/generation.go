// Package retrieval owns the in-memory generation of embedded course chunks
// that queries are ranked against.
package retrieval

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
)

// DocumentSource lists the published course documents a generation is built from.
type DocumentSource interface {
	ListPublishedDocuments(ctx context.Context) ([]models.Document, error)
}

// Builder turns documents into embedded chunks. *indexer.Pipeline implements it.
type Builder interface {
	Run(ctx context.Context, docs []models.Document) (*indexer.Result, error)
	ModelName() string
	Dimensions() int
}

// Generation is one complete, immutable set of embedded chunks. It is safe to
// share between goroutines; nothing modifies it after construction.
type Generation struct {
	ID         string
	Chunks     []models.EmbeddedChunk
	Documents  int
	Dimensions int
	Model      string
	CreatedAt  time.Time
}

// NewGeneration wraps a pipeline result in a generation with a fresh id.
func NewGeneration(res *indexer.Result, documents int, createdAt time.Time) *Generation {
	return &Generation{
		ID:         uuid.NewString(),
		Chunks:     res.Chunks,
		Documents:  documents,
		Dimensions: res.Dimensions,
		Model:      res.Model,
		CreatedAt:  createdAt,
	}
}

// Age returns how old g is at now.
func (g *Generation) Age(now time.Time) time.Duration {
	return now.Sub(g.CreatedAt)
}

// State is the lifecycle state of a Cache.
type State int

const (
	// StateEmpty means no generation exists and none is being built.
	StateEmpty State = iota
	// StatePopulating means a rebuild is running.
	StatePopulating
	// StateReady means the current generation is younger than the TTL and not invalidated.
	StateReady
	// StateStale means the current generation is still served but due for a rebuild.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePopulating:
		return "populating"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}
