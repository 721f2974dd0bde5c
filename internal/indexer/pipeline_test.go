package indexer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
)

// scriptedEmbedder returns vec(text) for each text, or err when set.
type scriptedEmbedder struct {
	vec   func(text string) []float32
	err   error
	calls atomic.Int32
}

func (s *scriptedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (s *scriptedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vec(t)
	}
	return out, nil
}

func (s *scriptedEmbedder) Dimensions() int   { return 2 }
func (s *scriptedEmbedder) ModelName() string { return "scripted" }
func (s *scriptedEmbedder) Close() error      { return nil }

var docs = []models.Document{
	{ID: "ml", Title: "Intro to ML", Text: "machine learning and neural networks"},
	{ID: "cook", Title: "Intro to Cooking", Text: "onions, butter, and salt"},
}

func TestPipeline_Run(t *testing.T) {
	chunker := mustChunker(t, 12, 4)
	p := NewPipeline(chunker, embedding.NewHashingEmbedder(64), WithConcurrency(3), WithBatchSize(2))
	res, err := p.Run(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	want := len(chunker.Chunk(docs[0])) + len(chunker.Chunk(docs[1]))
	if len(res.Chunks) != want {
		t.Fatalf("chunks = %d, want %d", len(res.Chunks), want)
	}
	if res.Dimensions != 64 || res.Model != "hashing-64" {
		t.Errorf("Dimensions/Model = %d/%s", res.Dimensions, res.Model)
	}
	// Order follows documents then chunk index regardless of concurrency.
	if res.Chunks[0].Chunk.DocumentID != "ml" || res.Chunks[len(res.Chunks)-1].Chunk.DocumentID != "cook" {
		t.Error("chunks out of document order")
	}
	for i, c := range res.Chunks {
		if len(c.Vector) != 64 {
			t.Errorf("chunk %d vector len %d", i, len(c.Vector))
		}
	}
}

func TestPipeline_providerErrorPropagates(t *testing.T) {
	rl := &models.ProviderError{Provider: "stub", Kind: models.ErrProviderRateLimited}
	p := NewPipeline(mustChunker(t, 100, 0), &scriptedEmbedder{err: rl})
	res, err := p.Run(context.Background(), docs)
	if !errors.Is(err, models.ErrProviderRateLimited) {
		t.Fatalf("error = %v, want ErrProviderRateLimited", err)
	}
	if res != nil {
		t.Error("no partial result on failure")
	}
}

func TestPipeline_dimensionMismatchIsMalformed(t *testing.T) {
	e := &scriptedEmbedder{vec: func(text string) []float32 {
		if text == docs[1].Text {
			return []float32{1, 0, 0}
		}
		return []float32{1, 0}
	}}
	p := NewPipeline(mustChunker(t, 100, 0), e, WithBatchSize(1))
	if _, err := p.Run(context.Background(), docs); !errors.Is(err, models.ErrProviderMalformed) {
		t.Errorf("error = %v, want ErrProviderMalformed", err)
	}
}

func TestPipeline_zeroVectorIsMalformed(t *testing.T) {
	e := &scriptedEmbedder{vec: func(string) []float32 { return []float32{0, 0} }}
	p := NewPipeline(mustChunker(t, 100, 0), e)
	if _, err := p.Run(context.Background(), docs); !errors.Is(err, models.ErrProviderMalformed) {
		t.Errorf("error = %v, want ErrProviderMalformed", err)
	}
}

func TestPipeline_noDocuments(t *testing.T) {
	p := NewPipeline(mustChunker(t, 100, 0), embedding.NewHashingEmbedder(8))
	res, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 0 || res.Dimensions != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}
