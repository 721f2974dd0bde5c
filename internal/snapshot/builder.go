package snapshot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Builder embeds the published corpus and writes it as an offline index.
type Builder struct {
	source   retrieval.DocumentSource
	pipeline retrieval.Builder
	logger   *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a Builder.
func NewBuilder(source retrieval.DocumentSource, pipeline retrieval.Builder, opts ...Option) *Builder {
	b := &Builder{source: source, pipeline: pipeline}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = utils.OrNop(b.logger)
	return b
}

// Build lists, chunks and embeds every published document and writes the
// result to dir. On any failure the existing index in dir is left untouched.
func (b *Builder) Build(ctx context.Context, dir string) (*Manifest, error) {
	start := time.Now()
	docs, err := b.source.ListPublishedDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published documents: %w", err)
	}
	res, err := b.pipeline.Run(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	gen := retrieval.NewGeneration(res, len(docs), time.Now())
	if err := Write(ctx, dir, gen); err != nil {
		return nil, err
	}
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	size, err := Size(dir)
	if err != nil {
		b.logger.Warn("failed to measure index size", zap.Error(err))
	}
	b.logger.Info("offline index written",
		zap.String("path", dir),
		zap.String("generation", gen.ID),
		zap.Int("documents", m.Documents),
		zap.Int("chunks", m.Chunks),
		zap.Int64("bytes", size),
		zap.Duration("duration", time.Since(start)))
	return m, nil
}
