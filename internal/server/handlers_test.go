package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/search"
)

type stubAnswerer struct {
	answer   *models.Answer
	err      error
	question string
}

func (s *stubAnswerer) Answer(_ context.Context, q string) (*models.Answer, error) {
	s.question = q
	return s.answer, s.err
}

func (s *stubAnswerer) EmbeddingModel() string  { return "text-embedding-3-small" }
func (s *stubAnswerer) GenerationModel() string { return "gpt-4o-mini" }

type stubCache struct {
	invalidated int
	warmed      int
	stats       retrieval.Stats
}

func (c *stubCache) Invalidate()            { c.invalidated++ }
func (c *stubCache) Warm()                  { c.warmed++ }
func (c *stubCache) Stats() retrieval.Stats { return c.stats }

func newTestServer(a Answerer, c Cache, opts ...Option) http.Handler {
	return NewServer(a, c, &config.ServerConfig{Port: 8080}, nil, opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleAsk(t *testing.T) {
	a := &stubAnswerer{answer: &models.Answer{
		Text:       "ML learns from data.",
		Sources:    []string{"Intro to ML"},
		Confidence: 0.82,
		RequestID:  "req-1",
	}}
	w := do(t, newTestServer(a, &stubCache{}), http.MethodPost, "/ask", `{"question":"What is ML?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp models.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "ML learns from data." || resp.Confidence != 0.82 || len(resp.Sources) != 1 || resp.RequestID != "req-1" {
		t.Errorf("response = %+v", resp)
	}
	if resp.ResponseTime < 0 {
		t.Errorf("responseTime = %d", resp.ResponseTime)
	}
	if a.question != "What is ML?" {
		t.Errorf("question = %q", a.question)
	}
}

func TestHandleAsk_noRelevantContent(t *testing.T) {
	a := &stubAnswerer{answer: &models.Answer{
		Text:              models.NoRelevantContentMessage,
		Sources:           []string{},
		NoRelevantContent: true,
	}}
	w := do(t, newTestServer(a, &stubCache{}), http.MethodPost, "/ask", `{"question":"sourdough?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.NoRelevantContent || resp.Answer != models.NoRelevantContentMessage || resp.Sources == nil {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleAsk_errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		retryAfter string
		wantError  string
	}{
		{
			name:       "invalid json",
			body:       `{"question":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty question",
			body:       `{"question":""}`,
			err:        &search.StageError{Stage: search.StageValidating, Err: &models.ValidationError{Field: "question", Message: "question cannot be empty"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "rate limited",
			body: `{"question":"q"}`,
			err: &search.StageError{Stage: search.StageEmbedding, Err: &models.ProviderError{
				Provider: "openai", Kind: models.ErrProviderRateLimited, StatusCode: 429, RetryAfter: 1500 * time.Millisecond,
			}},
			wantStatus: http.StatusServiceUnavailable,
			retryAfter: "2",
		},
		{
			name:       "generator warming up",
			body:       `{"question":"q"}`,
			err:        &search.StageError{Stage: search.StageGenerating, Err: &models.ProviderError{Provider: "openai", Kind: models.ErrProviderUnavailable, StatusCode: 503}},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "retrieval unavailable",
			body:       `{"question":"q"}`,
			err:        &search.StageError{Stage: search.StageRetrieving, Err: models.ErrRetrievalUnavailable},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "first rebuild rate limited",
			body: `{"question":"q"}`,
			err: &search.StageError{Stage: search.StageRetrieving, Err: fmt.Errorf("%w: %w", models.ErrRetrievalUnavailable, &models.ProviderError{
				Provider: "openai-embeddings", Kind: models.ErrProviderRateLimited, StatusCode: 429, RetryAfter: 2 * time.Second,
			})},
			wantStatus: http.StatusServiceUnavailable,
			retryAfter: "2",
			wantError:  "The course assistant is temporarily unavailable.",
		},
		{
			name:       "malformed",
			body:       `{"question":"q"}`,
			err:        &search.StageError{Stage: search.StageGenerating, Err: &models.ProviderError{Provider: "openai", Kind: models.ErrProviderMalformed}},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "timeout",
			body:       `{"question":"q"}`,
			err:        &search.StageError{Stage: search.StageGenerating, Err: context.DeadlineExceeded},
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "internal",
			body:       `{"question":"q"}`,
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAnswerer{err: tt.err}
			w := do(t, newTestServer(a, &stubCache{}), http.MethodPost, "/ask", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := w.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}
			var resp models.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error == "" {
				t.Error("error message is empty")
			}
			if tt.wantError != "" && resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
			if tt.wantStatus == http.StatusInternalServerError && resp.Details == "" {
				t.Error("500 responses carry details")
			}
		})
	}
}

func TestHandleAsk_validationMessage(t *testing.T) {
	a := &stubAnswerer{err: &search.StageError{Stage: search.StageValidating, Err: &models.ValidationError{Field: "question", Message: "question cannot be empty"}}}
	w := do(t, newTestServer(a, &stubCache{}), http.MethodPost, "/ask", `{"question":""}`)
	var resp models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "question cannot be empty" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestHandleRefresh(t *testing.T) {
	c := &stubCache{}
	w := do(t, newTestServer(&stubAnswerer{}, c), http.MethodPost, "/refresh", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.MessageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message == "" || c.invalidated != 1 || c.warmed != 1 {
		t.Errorf("message = %q invalidated = %d warmed = %d", resp.Message, c.invalidated, c.warmed)
	}
}

func TestHandleStatus(t *testing.T) {
	c := &stubCache{stats: retrieval.Stats{
		State:        retrieval.StateReady,
		GenerationID: "gen-1",
		Documents:    2,
		Chunks:       5,
		Dimensions:   1536,
		Age:          90 * time.Second,
		Rebuilds:     1,
	}}
	w := do(t, newTestServer(&stubAnswerer{}, c), http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != models.StatusOperational || resp.Model != "gpt-4o-mini" || resp.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Cache == nil || resp.Cache.State != "ready" || resp.Cache.Chunks != 5 || resp.Cache.AgeSeconds != 90 {
		t.Errorf("cache = %+v", resp.Cache)
	}
}

func TestUnconfigured(t *testing.T) {
	h := newTestServer(nil, nil, WithConfigError(errors.New("OPENAI_API_KEY is not set")))

	w := do(t, h, http.MethodGet, "/status", "")
	var status models.StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Status != models.StatusConfigurationRequired || !strings.Contains(status.Details, "OPENAI_API_KEY") {
		t.Errorf("status = %+v", status)
	}

	for _, path := range []string{"/ask", "/refresh"} {
		w := do(t, h, http.MethodPost, path, `{"question":"q"}`)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, w.Code)
		}
	}
}

func TestUnconfigured_reportsConfiguredModels(t *testing.T) {
	h := newTestServer(nil, nil,
		WithConfigError(errors.New("OPENAI_API_KEY is not set")),
		WithModels("gpt-4o-mini", "text-embedding-3-small@512"))

	w := do(t, h, http.MethodGet, "/status", "")
	var status models.StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Status != models.StatusConfigurationRequired {
		t.Errorf("Status = %q", status.Status)
	}
	if status.Model != "gpt-4o-mini" || status.EmbeddingModel != "text-embedding-3-small@512" {
		t.Errorf("models = %q / %q", status.Model, status.EmbeddingModel)
	}
	if status.Cache != nil {
		t.Errorf("cache = %+v, want none while unconfigured", status.Cache)
	}
}

func TestHandleHealth(t *testing.T) {
	w := do(t, newTestServer(nil, nil), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}
}
