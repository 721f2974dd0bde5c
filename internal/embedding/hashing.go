package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/pkg/utils"
)

// DefaultHashingDimensions is used when NewHashingEmbedder is given a non-positive size.
const DefaultHashingDimensions = 256

// HashingEmbedder is a deterministic bag-of-words embedder using feature hashing.
// It needs no credential or network and is used for local runs and tests.
// Texts that share content words score high; unrelated texts score near zero.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns an embedder that produces L2-normalised vectors of the given size.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashingDimensions
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed hashes each content word of text into a bucket and counts occurrences.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := ContentWords(text)
	if len(words) == 0 {
		// Keep empty text non-zero so it can still be ranked.
		words = []string{strings.TrimSpace(text)}
	}
	emb := make([]float32, e.dimensions)
	for _, w := range words {
		emb[HashString(w)%uint32(e.dimensions)]++
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int { return e.dimensions }

// ModelName includes the dimension so differently sized hashers never share a generation.
func (e *HashingEmbedder) ModelName() string { return fmt.Sprintf("hashing-%d", e.dimensions) }

// Close is a no-op.
func (e *HashingEmbedder) Close() error { return nil }
