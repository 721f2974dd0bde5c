// Package llm is the answer-generation boundary: it turns a question and the
// retrieved course passages into answer text.
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/provider"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Request is one generation call.
type Request struct {
	SystemPrompt string
	// Context is the selected passages joined in rank order.
	Context string
	// Passages are the same passages, individually, best first.
	Passages []string
	Question string
}

// Generator produces an answer. Failures unwrap to one of the models.ErrProvider* kinds.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	ModelName() string
}

// New builds the generator selected by cfg.Provider. A missing credential fails
// fast with models.ErrProviderUnavailable.
func New(cfg config.GenerationConfig, logger *zap.Logger) (Generator, error) {
	logger = utils.OrNop(logger)
	switch cfg.Provider {
	case "openai":
		g, err := NewOpenAIGenerator(OpenAIConfig{
			APIKey:            cfg.APIKey(),
			APIKeyEnv:         cfg.APIKeyEnv,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			MaxTokens:         cfg.MaxTokens,
			Temperature:       cfg.Temperature,
			Timeout:           cfg.Timeout.D(),
			MaxRetries:        cfg.MaxRetries,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, provider.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		logger.Info("generation provider ready", zap.String("provider", cfg.Provider), zap.String("model", g.ModelName()))
		return g, nil
	case "extractive":
		return NewExtractiveGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

// ConfiguredModelName returns the ModelName the generator built from cfg would report.
func ConfiguredModelName(cfg config.GenerationConfig) string {
	switch cfg.Provider {
	case "openai":
		if cfg.Model == "" {
			return DefaultModel
		}
		return cfg.Model
	case "extractive":
		return ExtractiveGenerator{}.ModelName()
	default:
		return cfg.Provider
	}
}
