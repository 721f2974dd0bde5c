package llm

import (
	"context"
	"strings"

	"github.com/hyperjump/kotae/pkg/utils"
)

const maxExtractLen = 600

// ExtractiveGenerator answers with the best retrieved passage. It needs no
// provider and never fails.
type ExtractiveGenerator struct{}

// NewExtractiveGenerator creates an ExtractiveGenerator.
func NewExtractiveGenerator() *ExtractiveGenerator { return &ExtractiveGenerator{} }

// Generate returns the first passage, or the first block of Context when no
// passages are given.
func (ExtractiveGenerator) Generate(_ context.Context, req Request) (string, error) {
	text := ""
	if len(req.Passages) > 0 {
		text = req.Passages[0]
	} else {
		text, _, _ = strings.Cut(req.Context, "\n\n")
	}
	return utils.Truncate(strings.TrimSpace(text), maxExtractLen), nil
}

// ModelName returns "extractive".
func (ExtractiveGenerator) ModelName() string { return "extractive" }
