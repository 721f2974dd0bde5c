package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/coursedir"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/snapshot"
	"github.com/hyperjump/kotae/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Source    retrieval.DocumentSource
	Courses   *storage.SQLiteCourseStore
	Dirs      *coursedir.Source
	Embedder  embedding.Embedder
	Pipeline  *indexer.Pipeline
	Cache     *retrieval.Cache
	Generator llm.Generator
	Engine    *search.Engine
}

func (c *Components) Close() {
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Courses != nil {
		_ = c.Courses.Close()
	}
}

// initializeSource opens the configured course store.
func initializeSource(cfg *config.Config, logger *zap.Logger, c *Components) error {
	switch cfg.CourseStore.Type {
	case config.StoreDirectory:
		c.Dirs = coursedir.NewSource(cfg.CourseStore.Directories, cfg.CourseStore.Extensions, coursedir.WithLogger(logger))
		c.Source = c.Dirs
	default:
		store, err := storage.NewSQLiteCourseStore(cfg.CourseStore.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open course store: %w", err)
		}
		c.Courses = store
		c.Source = store
	}
	logger.Info("course store ready",
		zap.String("type", cfg.CourseStore.Type),
		zap.String("database_path", cfg.CourseStore.DatabasePath),
		zap.Strings("directories", cfg.CourseStore.Directories))
	return nil
}

// initializePipeline opens the course store, the embedder and the chunk pipeline.
// That is everything the offline index builder needs.
func initializePipeline(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	if err := initializeSource(cfg, logger, c); err != nil {
		return nil, err
	}
	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	chunker, err := indexer.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Pipeline = indexer.NewPipeline(chunker, embedder,
		indexer.WithConcurrency(cfg.Embedding.Concurrency),
		indexer.WithLogger(logger))
	return c, nil
}

// initializeComponents builds the full query path: pipeline, retrieval cache
// (seeded from the offline index when one matches the embedding model),
// generator and engine.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c, err := initializePipeline(cfg, logger)
	if err != nil {
		return nil, err
	}

	generator, err := llm.New(cfg.Generation, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	c.Generator = generator

	c.Cache = retrieval.New(c.Source, c.Pipeline, retrieval.Config{
		TTL:            cfg.Retrieval.CacheTTL.D(),
		RebuildTimeout: cfg.Retrieval.RebuildTimeout.D(),
		RebuildBackoff: cfg.Retrieval.RebuildBackoff.D(),
	}, retrieval.WithLogger(logger))
	seedFromIndex(cfg.Index.Path, c.Cache, logger)

	c.Engine = search.NewEngine(c.Embedder, c.Cache, generator, search.OptionsFromConfig(cfg), search.WithLogger(logger))
	return c, nil
}

// seedFromIndex loads the offline index at dir into cache. A missing index is
// normal; a corrupt or mismatched one is logged and the cache builds online.
func seedFromIndex(dir string, cache *retrieval.Cache, logger *zap.Logger) {
	if dir == "" {
		return
	}
	g, err := snapshot.Read(context.Background(), dir)
	if errors.Is(err, snapshot.ErrNotFound) {
		logger.Debug("no offline index", zap.String("path", dir))
		return
	}
	if err != nil {
		logger.Warn("offline index unreadable, building online", zap.String("path", dir), zap.Error(err))
		return
	}
	if err := cache.Seed(g); err != nil {
		logger.Warn("offline index not used", zap.String("path", dir), zap.Error(err))
		return
	}
	logger.Info("retrieval cache seeded from offline index",
		zap.String("path", dir),
		zap.String("generation_id", g.ID),
		zap.Int("chunks", len(g.Chunks)))
}
