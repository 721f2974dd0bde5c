package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// OpenAIConfig holds configuration for an OpenAI-compatible chat completion provider.
type OpenAIConfig struct {
	// APIKey is the provider credential (required).
	APIKey    string
	APIKeyEnv string

	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64

	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// OpenAIGenerator answers through /chat/completions.
type OpenAIGenerator struct {
	client      *provider.Client
	model       string
	maxTokens   int
	temperature float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewOpenAIGenerator creates a generator. A missing APIKey fails with models.ErrProviderUnavailable.
func NewOpenAIGenerator(cfg OpenAIConfig, opts ...provider.Option) (*OpenAIGenerator, error) {
	const name = "openai-chat"
	if cfg.APIKey == "" {
		return nil, &models.ProviderError{
			Provider: name,
			Kind:     models.ErrProviderUnavailable,
			Err:      fmt.Errorf("API key is not configured (set %s)", cfg.APIKeyEnv),
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
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
	return &OpenAIGenerator{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate sends the system prompt, then the context and question as one user message.
// A 2xx response without answer text fails as malformed.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	body := chatRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: userMessage(req)})

	var raw json.RawMessage
	if err := g.client.PostJSON(ctx, "/chat/completions", body, &raw); err != nil {
		return "", err
	}
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", g.client.Malformed(raw, fmt.Sprintf("decode chat response: %v", err))
	}
	if len(resp.Choices) == 0 {
		return "", g.client.Malformed(raw, "no choices in chat response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", g.client.Malformed(raw, "empty answer in chat response")
	}
	return text, nil
}

// ModelName returns the chat model.
func (g *OpenAIGenerator) ModelName() string { return g.model }

func userMessage(req Request) string {
	var b strings.Builder
	b.WriteString("Course material:\n")
	b.WriteString(req.Context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(req.Question)
	return b.String()
}
