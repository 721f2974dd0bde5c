package vector

import (
	"fmt"
	"sort"

	"github.com/hyperjump/kotae/internal/models"
)

// Rank scores every candidate against query, keeps those scoring at least minScore,
// and returns at most topK ordered by descending score. Ties keep candidate order,
// so the result is deterministic for a fixed candidate slice. A topK of 0 or less keeps all.
// Any candidate that cannot be scored fails the whole ranking.
func Rank(query []float32, candidates []models.EmbeddedChunk, minScore float64, topK int) ([]models.ScoredChunk, error) {
	if _, err := norm(query); err != nil {
		return nil, fmt.Errorf("query vector: %w", err)
	}

	scored := make([]models.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		s, err := Cosine(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("score chunk %s: %w", c.Chunk.Key(), err)
		}
		if s >= minScore {
			scored = append(scored, models.ScoredChunk{Chunk: c.Chunk, Score: s})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
