package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
course_store:
  database_path: "test.db"
retrieval:
  cache_ttl: 5m
  min_score: 0.25
  top_k: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.CourseStore.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Retrieval.CacheTTL.D() != 5*time.Minute {
		t.Errorf("cache_ttl = %v, want 5m", cfg.Retrieval.CacheTTL.D())
	}
	if cfg.Retrieval.MinScore != 0.25 || cfg.Retrieval.TopK != 5 {
		t.Errorf("unexpected retrieval config: %+v", cfg.Retrieval)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "debug: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	r := cfg.Retrieval
	if r.ChunkSize != 1000 || r.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = %d/%d, want 1000/200", r.ChunkSize, r.ChunkOverlap)
	}
	if r.MinScore != 0.3 || r.TopK != 3 {
		t.Errorf("ranking defaults = %g/%d, want 0.3/3", r.MinScore, r.TopK)
	}
	if r.CacheTTL.D() != 30*time.Minute {
		t.Errorf("cache_ttl default = %v, want 30m", r.CacheTTL.D())
	}
	if cfg.CourseStore.Type != StoreSQLite {
		t.Errorf("course_store.type default = %q", cfg.CourseStore.Type)
	}
	if cfg.Embedding.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("embedding.api_key_env default = %q", cfg.Embedding.APIKeyEnv)
	}
	if cfg.Generation.SystemPrompt != DefaultSystemPrompt {
		t.Error("generation.system_prompt should default")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
course_store:
  type: directory
  database_path: "./data/db/courses.db"
  directories: ["./courses"]
index:
  path: "./data/index"
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "db", "courses.db"); cfg.CourseStore.DatabasePath != want {
		t.Errorf("database_path = %q, want %q", cfg.CourseStore.DatabasePath, want)
	}
	if want := filepath.Join(dir, "courses"); cfg.CourseStore.Directories[0] != want {
		t.Errorf("directories[0] = %q, want %q", cfg.CourseStore.Directories[0], want)
	}
	if want := filepath.Join(dir, "data", "index"); cfg.Index.Path != want {
		t.Errorf("index.path = %q, want %q", cfg.Index.Path, want)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"overlap not below size", "retrieval:\n  chunk_size: 100\n  chunk_overlap: 100\n", "chunk_overlap"},
		{"score out of range", "retrieval:\n  min_score: 1.5\n", "min_score"},
		{"unknown store", "course_store:\n  type: mongo\n", "course_store.type"},
		{"directory store without dirs", "course_store:\n  type: directory\n", "directories"},
		{"bad duration", "retrieval:\n  cache_ttl: soon\n", "invalid duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_envFileNextToConfig(t *testing.T) {
	path := writeConfig(t, "embedding:\n  api_key_env: KOTAE_TEST_KEY\n")
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envPath, []byte("KOTAE_TEST_KEY=sk-from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("KOTAE_TEST_KEY") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Embedding.APIKey(); got != "sk-from-dotenv" {
		t.Errorf("APIKey() = %q, want value from .env", got)
	}
}

func TestProviderConfig_APIKey(t *testing.T) {
	t.Setenv("KOTAE_KEY_UNDER_TEST", "  secret  ")
	p := ProviderConfig{APIKeyEnv: "KOTAE_KEY_UNDER_TEST"}
	if p.APIKey() != "secret" {
		t.Errorf("APIKey() = %q", p.APIKey())
	}
	if (ProviderConfig{}).APIKey() != "" {
		t.Error("no env var name means no key")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Retrieval.CacheTTL = Duration(90 * time.Second)
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "cache_ttl: 1m30s") {
		t.Errorf("saved config should encode durations as strings:\n%s", data)
	}
}
