// Package embedding turns text into vectors through a remote provider, a local ONNX model,
// or deterministic feature hashing, with an LRU cache in front of any of them.
package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Embedder produces vector embeddings for text.
// Failures unwrap to one of the models.ErrProvider* kinds.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelName identifies the model version; vectors from different names are never mixed.
	ModelName() string
	Close() error
}

// ConfiguredModelName returns the ModelName the embedder built from cfg would
// report, without building it. It names the model while a provider is not yet usable.
func ConfiguredModelName(cfg config.EmbeddingConfig) string {
	switch cfg.Provider {
	case "openai":
		model := cfg.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		return openAIModelName(model, openAIDimensions(model, cfg.Dimensions))
	case "onnx":
		return "onnx:" + strings.TrimSuffix(filepath.Base(cfg.ModelPath), filepath.Ext(cfg.ModelPath))
	case "hashing":
		return NewHashingEmbedder(cfg.Dimensions).ModelName()
	default:
		return cfg.Provider
	}
}

// New builds the embedder selected by cfg.Provider, wrapped in a CachedEmbedder when
// cfg.CacheSize is positive. A missing credential fails fast with models.ErrProviderUnavailable.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)

	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "openai":
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:            cfg.APIKey(),
			APIKeyEnv:         cfg.APIKeyEnv,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			Timeout:           cfg.Timeout.D(),
			MaxRetries:        cfg.MaxRetries,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, provider.WithLogger(logger))
	case "onnx":
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case "hashing":
		e = NewHashingEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", e.ModelName()),
		zap.Int("dimensions", e.Dimensions()))

	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}

// missingCredential reports an absent API key as an unavailable provider.
func missingCredential(name, env string) error {
	return &models.ProviderError{
		Provider: name,
		Kind:     models.ErrProviderUnavailable,
		Err:      fmt.Errorf("API key is not configured (set %s)", env),
	}
}
