package config

import "time"

// DefaultSystemPrompt instructs the generator to stay within the supplied course material.
const DefaultSystemPrompt = "You are a teaching assistant for an online course platform. " +
	"Answer the student's question using only the course material provided as context. " +
	"If the context does not contain the answer, say so. Keep answers concise."

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = Duration(60 * time.Second)
	}

	if cfg.CourseStore.Type == "" {
		cfg.CourseStore.Type = StoreSQLite
	}
	if cfg.CourseStore.DatabasePath == "" {
		cfg.CourseStore.DatabasePath = "/usr/local/var/kotae/data/db/courses.db"
	}
	if cfg.CourseStore.Extensions == nil {
		cfg.CourseStore.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods"}
	}

	e := &cfg.Embedding
	if e.Provider == "" {
		e.Provider = "openai"
	}
	switch e.Provider {
	case "openai":
		if e.Model == "" {
			e.Model = "text-embedding-3-small"
		}
		if e.BaseURL == "" {
			e.BaseURL = "https://api.openai.com/v1"
		}
		if e.APIKeyEnv == "" {
			e.APIKeyEnv = "OPENAI_API_KEY"
		}
		if e.Dimensions == 0 {
			e.Dimensions = 1536
		}
	case "onnx":
		if e.ModelPath == "" {
			e.ModelPath = "/usr/local/var/kotae/data/models/all-MiniLM-L6-v2.onnx"
		}
		if e.Dimensions == 0 {
			e.Dimensions = 384
		}
		if e.MaxTokens == 0 {
			e.MaxTokens = 256
		}
	case "hashing":
		if e.Dimensions == 0 {
			e.Dimensions = 256
		}
	}
	if e.Timeout == 0 {
		e.Timeout = Duration(30 * time.Second)
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = 2
	}
	if e.Concurrency == 0 {
		e.Concurrency = 4
	}
	if e.CacheSize == 0 {
		e.CacheSize = 10000
	}

	g := &cfg.Generation
	if g.Provider == "" {
		g.Provider = "openai"
	}
	if g.Provider == "openai" {
		if g.Model == "" {
			g.Model = "gpt-4o-mini"
		}
		if g.BaseURL == "" {
			g.BaseURL = "https://api.openai.com/v1"
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if g.Timeout == 0 {
		g.Timeout = Duration(60 * time.Second)
	}
	if g.MaxRetries == 0 {
		g.MaxRetries = 2
	}
	if g.SystemPrompt == "" {
		g.SystemPrompt = DefaultSystemPrompt
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = 500
	}
	if g.Temperature == 0 {
		g.Temperature = 0.7
	}

	r := &cfg.Retrieval
	if r.ChunkSize == 0 {
		r.ChunkSize = 1000
	}
	if r.ChunkOverlap == 0 {
		r.ChunkOverlap = 200
	}
	if r.CacheTTL == 0 {
		r.CacheTTL = Duration(30 * time.Minute)
	}
	if r.RebuildTimeout == 0 {
		r.RebuildTimeout = Duration(10 * time.Minute)
	}
	if r.RebuildBackoff == 0 {
		r.RebuildBackoff = Duration(30 * time.Second)
	}
	if r.MinScore == 0 {
		r.MinScore = 0.3
	}
	if r.TopK == 0 {
		r.TopK = 3
	}
	if r.MaxQuestionLength == 0 {
		r.MaxQuestionLength = 1000
	}

	if cfg.Index.Path == "" {
		cfg.Index.Path = "/usr/local/var/kotae/data/index"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = Duration(2 * time.Second)
	}
}
