package embedding

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hyperjump/kotae/internal/provider"
)

// Default configuration values.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "text-embedding-3-small"

	// maxBatchInputs bounds the inputs sent in one /embeddings request.
	maxBatchInputs = 256
)

// Model dimensions for OpenAI embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig holds configuration for the OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	// APIKey is the provider credential (required).
	APIKey string

	// APIKeyEnv names the variable APIKey came from, for error messages.
	APIKeyEnv string

	BaseURL string
	Model   string

	// Dimensions overrides the model's default size. Only sent for text-embedding-3-* models.
	Dimensions int

	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// OpenAIEmbedder generates embeddings through an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client     *provider.Client
	model      string
	dimensions int
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// NewOpenAIEmbedder creates an embedder. A missing APIKey fails with models.ErrProviderUnavailable.
func NewOpenAIEmbedder(cfg OpenAIConfig, opts ...provider.Option) (*OpenAIEmbedder, error) {
	const name = "openai-embeddings"
	if cfg.APIKey == "" {
		return nil, missingCredential(name, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	dimensions := openAIDimensions(cfg.Model, cfg.Dimensions)

	client, err := provider.New(provider.Config{
		Name:              name,
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{client: client, model: cfg.Model, dimensions: dimensions}, nil
}

// Embed generates a vector embedding for the given text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts, splitting large inputs into several requests.
// Every returned vector is non-empty and finite, otherwise the call fails as malformed.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchInputs {
		end := min(start+maxBatchInputs, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{Model: e.model, Input: texts}
	if e.model == "text-embedding-3-small" || e.model == "text-embedding-3-large" {
		req.Dimensions = e.dimensions
	}

	var resp embeddingResponse
	if err := e.client.PostJSON(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, e.malformed(fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || embeddings[d.Index] != nil {
			return nil, e.malformed(fmt.Sprintf("invalid or duplicate embedding index %d", d.Index))
		}
		if len(d.Embedding) == 0 {
			return nil, e.malformed(fmt.Sprintf("empty embedding at index %d", d.Index))
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
			if math.IsInf(float64(vec[i]), 0) {
				return nil, e.malformed(fmt.Sprintf("value out of float32 range in embedding %d", d.Index))
			}
		}
		embeddings[d.Index] = vec
	}
	return embeddings, nil
}

func (e *OpenAIEmbedder) malformed(reason string) error {
	return e.client.Malformed(nil, reason)
}

// Dimensions returns the configured embedding vector size.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// ModelName identifies the vectors this embedder produces: the provider model
// and the requested size, since one model serves several sizes.
func (e *OpenAIEmbedder) ModelName() string { return openAIModelName(e.model, e.dimensions) }

func openAIModelName(model string, dimensions int) string {
	return fmt.Sprintf("%s@%d", model, dimensions)
}

// openAIDimensions resolves the vector size: the configured override, else the model's default.
func openAIDimensions(model string, configured int) int {
	if configured > 0 {
		return configured
	}
	if d, ok := modelDimensions[model]; ok {
		return d
	}
	return 1536
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error { return nil }
