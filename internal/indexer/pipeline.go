package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

const defaultBatchSize = 32

// Pipeline chunks documents and embeds every chunk. It is shared by the online
// retrieval cache and the offline index builder.
type Pipeline struct {
	chunker     *Chunker
	embedder    embedding.Embedder
	concurrency int
	batchSize   int
	logger      *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets a logger for per-run debug output.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithConcurrency bounds the number of embedding requests in flight. Values below 1 mean 1.
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithBatchSize sets how many chunks are sent per embedding request.
func WithBatchSize(n int) PipelineOption {
	return func(p *Pipeline) { p.batchSize = n }
}

// NewPipeline creates a pipeline.
func NewPipeline(chunker *Chunker, embedder embedding.Embedder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		chunker:     chunker,
		embedder:    embedder,
		concurrency: 1,
		batchSize:   defaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	if p.batchSize < 1 {
		p.batchSize = defaultBatchSize
	}
	p.logger = utils.OrNop(p.logger)
	return p
}

// ModelName returns the embedding model every vector of a run comes from.
func (p *Pipeline) ModelName() string { return p.embedder.ModelName() }

// Dimensions reports the embedder's vector size, 0 when it is not known up front.
func (p *Pipeline) Dimensions() int { return p.embedder.Dimensions() }

// Result is the output of one pipeline run.
type Result struct {
	Chunks     []models.EmbeddedChunk
	Dimensions int
	Model      string
}

// Run normalizes whitespace in each document, then chunks and embeds it. The
// first error cancels the remaining requests and is returned; no partial result
// is ever returned. All vectors must share the first vector's length and
// none may be zero or non-finite, otherwise the run fails as a malformed provider response.
func (p *Pipeline) Run(ctx context.Context, docs []models.Document) (*Result, error) {
	start := time.Now()

	var chunks []models.Chunk
	for _, d := range docs {
		d.Text = Preprocess(d.Text)
		chunks = append(chunks, p.chunker.Chunk(d)...)
	}
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for lo := 0; lo < len(chunks); lo += p.batchSize {
		lo := lo
		hi := min(lo+p.batchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, hi-lo)
			for i := range texts {
				texts[i] = chunks[lo+i].Text
			}
			vecs, err := p.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunks[lo].Key(), err)
			}
			if len(vecs) != len(texts) {
				return malformed(p.embedder.ModelName(), fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts)))
			}
			copy(vectors[lo:hi], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Chunks: make([]models.EmbeddedChunk, len(chunks)),
		Model:  p.embedder.ModelName(),
	}
	for i, c := range chunks {
		v := vectors[i]
		if i == 0 {
			res.Dimensions = len(v)
		}
		if err := vector.Check(v, res.Dimensions); err != nil {
			return nil, malformed(res.Model, fmt.Errorf("chunk %s: %w", c.Key(), err))
		}
		res.Chunks[i] = models.EmbeddedChunk{Chunk: c, Vector: v}
	}

	p.logger.Debug("embedded documents",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(res.Chunks)),
		zap.Int("dimensions", res.Dimensions),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

func malformed(model string, err error) error {
	return &models.ProviderError{Provider: model, Kind: models.ErrProviderMalformed, Err: err}
}
