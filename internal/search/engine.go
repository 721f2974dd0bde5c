// Package search answers questions from the retrieval cache: it embeds the
// question, ranks the current generation's chunks and hands the best ones to
// the answer generator.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Retriever returns the generation to rank against. *retrieval.Cache implements it.
type Retriever interface {
	Get(ctx context.Context) (*retrieval.Generation, error)
}

// Options holds the ranking and generation parameters.
type Options struct {
	MinScore          float64
	TopK              int
	MaxQuestionLength int
	SystemPrompt      string
}

// OptionsFromConfig reads Options from the retrieval and generation sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinScore:          cfg.Retrieval.MinScore,
		TopK:              cfg.Retrieval.TopK,
		MaxQuestionLength: cfg.Retrieval.MaxQuestionLength,
		SystemPrompt:      cfg.Generation.SystemPrompt,
	}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// Engine answers questions. It holds no per-query state and is safe for
// concurrent use.
type Engine struct {
	embedder  embedding.Embedder
	retriever Retriever
	generator llm.Generator
	opts      Options
	logger    *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(embedder embedding.Embedder, retriever Retriever, generator llm.Generator, opts Options, eopts ...EngineOption) *Engine {
	e := &Engine{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		opts:      opts,
	}
	for _, opt := range eopts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// EmbeddingModel returns the embedding model questions are embedded with.
func (e *Engine) EmbeddingModel() string { return e.embedder.ModelName() }

// GenerationModel returns the answer generator's model.
func (e *Engine) GenerationModel() string { return e.generator.ModelName() }

// Answer runs one question through validation, embedding, retrieval, ranking
// and generation. Any failure is a *StageError naming the stage it happened
// in; provider failures keep their kind. When no chunk reaches MinScore the
// result has NoRelevantContent set and the generator is not called.
func (e *Engine) Answer(ctx context.Context, question string) (*models.Answer, error) {
	start := time.Now()
	requestID := uuid.NewString()
	log := e.logger.With(zap.String("request_id", requestID))

	fail := func(stage Stage, err error) (*models.Answer, error) {
		log.Warn("question failed",
			zap.String("stage", stage.String()),
			zap.String("kind", models.Kind(err)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, &StageError{Stage: stage, Err: err}
	}

	q, err := models.ValidateQuestion(question, e.opts.MaxQuestionLength)
	if err != nil {
		return fail(StageValidating, err)
	}

	qvec, err := e.embedder.Embed(ctx, q)
	if err != nil {
		return fail(StageEmbedding, err)
	}

	gen, err := e.retriever.Get(ctx)
	if err != nil {
		return fail(StageRetrieving, err)
	}

	if gen.Model != e.embedder.ModelName() {
		return fail(StageRanking, fmt.Errorf("generation %s was embedded with %s, questions with %s",
			gen.ID, gen.Model, e.embedder.ModelName()))
	}
	matches, err := vector.Rank(qvec, gen.Chunks, e.opts.MinScore, e.opts.TopK)
	if err != nil {
		return fail(StageRanking, err)
	}

	ans := &models.Answer{
		Sources:      []string{},
		Matches:      matches,
		GenerationID: gen.ID,
		RequestID:    requestID,
	}
	if len(matches) == 0 {
		ans.Text = models.NoRelevantContentMessage
		ans.NoRelevantContent = true
		log.Info("no relevant content",
			zap.String("generation", gen.ID),
			zap.Duration("duration", time.Since(start)))
		return ans, nil
	}

	prompt := BuildPrompt(q, matches, e.opts.SystemPrompt)
	text, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return fail(StageGenerating, err)
	}
	ans.Text = text
	ans.Sources = Sources(matches)
	ans.Confidence = matches[0].Score

	log.Info("question answered",
		zap.String("generation", gen.ID),
		zap.Float64("confidence", ans.Confidence),
		zap.Strings("sources", ans.Sources),
		zap.Duration("duration", time.Since(start)))
	return ans, nil
}
