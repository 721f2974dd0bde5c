// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Answerer answers questions. *search.Engine implements it.
type Answerer interface {
	Answer(ctx context.Context, question string) (*models.Answer, error)
	EmbeddingModel() string
	GenerationModel() string
}

// Cache is the part of the retrieval cache the API controls. *retrieval.Cache implements it.
type Cache interface {
	Invalidate()
	Warm()
	Stats() retrieval.Stats
}

// Server is the HTTP server for the kotae API.
type Server struct {
	engine          Answerer
	cache           Cache
	config          *config.ServerConfig
	configErr       error
	generationModel string
	embeddingModel  string
	logger          *zap.Logger
	server          *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithConfigError marks the server as unconfigured. /ask and /refresh then
// fail and /status reports configuration_required with err as details.
func WithConfigError(err error) Option {
	return func(s *Server) { s.configErr = err }
}

// WithModels names the configured generation and embedding models for /status
// when no engine is running to report them.
func WithModels(generation, embedding string) Option {
	return func(s *Server) {
		s.generationModel = generation
		s.embeddingModel = embedding
	}
}

// NewServer creates a server. A nil engine also means configuration is required.
func NewServer(engine Answerer, cache Cache, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		cache:  cache,
		config: cfg,
		logger: utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	timeout := s.config.RequestTimeout.D()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Post("/ask", s.handleAsk)
	r.Post("/refresh", s.handleRefresh)
	r.Get("/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) configured() bool {
	return s.engine != nil && s.configErr == nil
}
