package search

import (
	"strings"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

// contextSeparator sits between passages in the generation context.
const contextSeparator = "\n\n"

// BuildPrompt assembles the generation request for q from ranked matches.
// Passages keep rank order.
func BuildPrompt(q string, matches []models.ScoredChunk, systemPrompt string) llm.Request {
	passages := make([]string, len(matches))
	for i, m := range matches {
		passages[i] = m.Chunk.Text
	}
	return llm.Request{
		SystemPrompt: systemPrompt,
		Context:      strings.Join(passages, contextSeparator),
		Passages:     passages,
		Question:     q,
	}
}

// Sources returns the distinct source titles of matches in order of first appearance.
func Sources(matches []models.ScoredChunk) []string {
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		t := m.Chunk.SourceTitle
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
