// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	CourseStore CourseStoreConfig `yaml:"course_store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Index       IndexConfig       `yaml:"index"`
	Watch       WatchConfig       `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// Course store types.
const (
	StoreSQLite    = "sqlite"
	StoreDirectory = "directory"
)

// CourseStoreConfig selects where published courses are read from.
type CourseStoreConfig struct {
	Type         string   `yaml:"type"`
	DatabasePath string   `yaml:"database_path"`
	Directories  []string `yaml:"directories"`
	Extensions   []string `yaml:"extensions"`
}

// ProviderConfig holds the settings shared by HTTP providers.
// The credential itself is never stored in YAML; APIKeyEnv names the variable that holds it.
type ProviderConfig struct {
	Provider          string   `yaml:"provider"`
	Model             string   `yaml:"model"`
	BaseURL           string   `yaml:"base_url"`
	APIKeyEnv         string   `yaml:"api_key_env"`
	Timeout           Duration `yaml:"timeout"`
	MaxRetries        int      `yaml:"max_retries"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
}

// APIKey returns the credential from the environment, or "" when unset.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(p.APIKeyEnv))
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	ProviderConfig `yaml:",inline"`
	Dimensions     int    `yaml:"dimensions"`
	Concurrency    int    `yaml:"concurrency"`
	CacheSize      int    `yaml:"cache_size"`
	ModelPath      string `yaml:"model_path"`
	MaxTokens      int    `yaml:"max_tokens"`
}

// GenerationConfig holds answer-generation provider settings.
type GenerationConfig struct {
	ProviderConfig `yaml:",inline"`
	SystemPrompt   string  `yaml:"system_prompt"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
}

// RetrievalConfig holds chunking, cache and ranking settings.
type RetrievalConfig struct {
	ChunkSize         int      `yaml:"chunk_size"`
	ChunkOverlap      int      `yaml:"chunk_overlap"`
	CacheTTL          Duration `yaml:"cache_ttl"`
	RebuildTimeout    Duration `yaml:"rebuild_timeout"`
	RebuildBackoff    Duration `yaml:"rebuild_backoff"`
	MinScore          float64  `yaml:"min_score"`
	TopK              int      `yaml:"top_k"`
	MaxQuestionLength int      `yaml:"max_question_length"`
}

// IndexConfig holds the offline index location.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig holds directory watch settings for directory course stores.
type WatchConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Debounce Duration `yaml:"debounce"`
}

// Duration is a time.Duration read from and written to YAML as a string such as "30m".
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// A .env file next to the config and one in the working directory are loaded first;
// variables already set in the environment win.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	LoadEnv(filepath.Join(configDir, ".env"), ".env")

	ApplyDefaults(&cfg)

	cfg.CourseStore.DatabasePath = expandPath(cfg.CourseStore.DatabasePath, configDir)
	for i := range cfg.CourseStore.Directories {
		cfg.CourseStore.Directories[i] = expandPath(cfg.CourseStore.Directories[i], configDir)
	}
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Index.Path = expandPath(cfg.Index.Path, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv loads each existing .env file into the process environment. Missing files are ignored.
func LoadEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	var errs []error
	r := c.Retrieval
	if r.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.chunk_size must be positive, got %d", r.ChunkSize))
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		errs = append(errs, fmt.Errorf("retrieval.chunk_overlap must be in [0, chunk_size), got %d", r.ChunkOverlap))
	}
	if r.MinScore < -1 || r.MinScore > 1 {
		errs = append(errs, fmt.Errorf("retrieval.min_score must be in [-1, 1], got %g", r.MinScore))
	}
	if r.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive, got %d", r.TopK))
	}
	switch c.CourseStore.Type {
	case StoreSQLite, StoreDirectory:
	default:
		errs = append(errs, fmt.Errorf("course_store.type must be %q or %q, got %q", StoreSQLite, StoreDirectory, c.CourseStore.Type))
	}
	if c.CourseStore.Type == StoreDirectory && len(c.CourseStore.Directories) == 0 {
		errs = append(errs, errors.New("course_store.directories is required for the directory store"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
