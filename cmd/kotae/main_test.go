package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/snapshot"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"what is machine learning", "-json"},
			expected: []string{"-json", "what is machine learning"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-config", "/c.yaml", "what is ml"},
			expected: []string{"-config", "/c.yaml", "what is ml"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what is ml"},
			expected: []string{"what is ml"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"what", "is", "ml", "--config", "/c.yaml"},
			expected: []string{"--config", "/c.yaml", "what", "is", "ml"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"recursion"}, "recursion"},
		{"multiple words", []string{"what", "is", "recursion?"}, "what is recursion?"},
		{"single quoted phrase", []string{"what is recursion?"}, "what is recursion?"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuestion(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestAskErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err:  &models.ValidationError{Field: "question", Message: "question must not be empty"},
			want: "Invalid question: question must not be empty",
		},
		{
			name: "rate limited with delay",
			err:  &models.ProviderError{Provider: "openai-embeddings", Kind: models.ErrProviderRateLimited, RetryAfter: 2 * time.Second},
			want: "Provider is busy, try again in 2s",
		},
		{
			name: "retrieval unavailable",
			err:  fmt.Errorf("%w: no documents", models.ErrRetrievalUnavailable),
			want: "Temporarily unavailable",
		},
		{
			name: "first rebuild rate limited",
			err: fmt.Errorf("%w: %w", models.ErrRetrievalUnavailable,
				&models.ProviderError{Provider: "openai-embeddings", Kind: models.ErrProviderRateLimited, RetryAfter: 2 * time.Second}),
			want: "Temporarily unavailable",
		},
		{
			name: "canceled",
			err:  context.Canceled,
			want: "Canceled",
		},
		{
			name: "other",
			err:  errors.New("boom"),
			want: "Failed to generate an answer: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := askErrorMessage(tt.err); !strings.HasPrefix(got, tt.want) {
				t.Errorf("askErrorMessage() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestOutputFormat(t *testing.T) {
	if outputFormat(true) != cli.OutputJSON || outputFormat(false) != cli.OutputText {
		t.Error("outputFormat does not map --json")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
course_store:
  database_path: "./courses.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
course_store:
  database_path: "./courses.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

// testConfig returns a config for a one-course directory store answered with
// the hashing embedder and the extractive generator.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	course := filepath.Join(root, "ml-basics")
	if err := os.MkdirAll(course, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := "id: ml-101\ntitle: Machine Learning Basics\ndescription: An introduction to machine learning.\n"
	if err := os.WriteFile(filepath.Join(course, "course.yaml"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	lesson := "Machine learning is a branch of artificial intelligence where models learn patterns from data."
	if err := os.WriteFile(filepath.Join(course, "01-intro.md"), []byte(lesson), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		CourseStore: config.CourseStoreConfig{Type: config.StoreDirectory, Directories: []string{root}},
		Embedding:   config.EmbeddingConfig{ProviderConfig: config.ProviderConfig{Provider: "hashing"}, Dimensions: 512},
		Generation:  config.GenerationConfig{ProviderConfig: config.ProviderConfig{Provider: "extractive"}},
		Index:       config.IndexConfig{Path: filepath.Join(t.TempDir(), "index")},
	}
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestInitializeComponents_answers(t *testing.T) {
	cfg := testConfig(t)
	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer c.Close()

	ans, err := c.Engine.Answer(context.Background(), "What is machine learning?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.NoRelevantContent {
		t.Fatal("expected relevant content")
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "Machine Learning Basics" {
		t.Errorf("Sources = %v", ans.Sources)
	}
}

func TestInitializeComponents_missingCredential(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding = config.EmbeddingConfig{ProviderConfig: config.ProviderConfig{Provider: "openai", APIKeyEnv: "KOTAE_TEST_UNSET_KEY"}}
	t.Setenv("KOTAE_TEST_UNSET_KEY", "")

	_, err := initializeComponents(cfg, zap.NewNop())
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestInitializeComponents_seedsFromIndex(t *testing.T) {
	cfg := testConfig(t)
	p, err := initializePipeline(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	m, err := snapshot.NewBuilder(p.Source, p.Pipeline).Build(context.Background(), cfg.Index.Path)
	p.Close()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if got := c.Cache.State(); got != retrieval.StateReady {
		t.Fatalf("State = %v, want ready", got)
	}
	if got := c.Cache.Stats().GenerationID; got != m.GenerationID {
		t.Errorf("GenerationID = %q, want %q", got, m.GenerationID)
	}
}

func TestStatusViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"operational","model":"extractive","embeddingModel":"hashing-512","cache":{"state":"ready","chunks":3}}`))
	}))
	defer ts.Close()

	st, err := statusViaHTTP(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != models.StatusOperational || st.Cache == nil || st.Cache.Chunks != 3 {
		t.Errorf("status = %+v", st)
	}

	if _, err := statusViaHTTP(ts.URL + "/missing"); err == nil {
		t.Error("expected error for non-200 response")
	}
}
