// Package generate produces grounded answers from assembled context.
//
// The generator builds a grounding prompt, calls a chat completion provider
// and attaches a confidence estimate plus source attributions. An empty
// context short-circuits to a canned insufficient-context answer without
// touching the provider.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/augment"
	"github.com/fyrsmithlabs/ragd/internal/logging"
)

// ErrGenerationFailed wraps provider failures.
var ErrGenerationFailed = errors.New("generation failed")

// insufficientContextAnswer is returned when retrieval produced nothing to
// ground an answer on.
const insufficientContextAnswer = "I could not find relevant information in the indexed documents to answer this question. Try rephrasing the question or ingesting documents that cover the topic."

// sourcePreviewLimit caps the content preview carried per source.
const sourcePreviewLimit = 200

// Options are the per-request generation knobs.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Source attributes part of an answer to an indexed chunk.
type Source struct {
	Filename   string  `json:"filename"`
	PageNumber int     `json:"page"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	ChunkType  string  `json:"chunk_type"`
}

// Answer is the generation output.
type Answer struct {
	Text string
	// Confidence is a heuristic estimate in [0, 1].
	Confidence float64
	// Sources lists the context chunks the answer is grounded on.
	Sources []Source
	// Usage totals, zero when the provider was not called.
	PromptTokens     int
	CompletionTokens int
}

// Generator turns a question plus context into an answer.
// Safe for concurrent use.
type Generator struct {
	client     CompletionClient
	confidence ConfidenceConfig
	logger     *logging.Logger
}

// New creates a Generator. Zero-valued confidence weights are replaced with
// the standard tuning.
func New(client CompletionClient, confidence ConfidenceConfig, logger *logging.Logger) *Generator {
	confidence.ApplyDefaults()
	return &Generator{
		client:     client,
		confidence: confidence,
		logger:     logger.Named("generate"),
	}
}

// Generate answers the question from the assembled context.
func (g *Generator) Generate(ctx context.Context, question string, c augment.Context, opts Options) (Answer, error) {
	if c.Empty() {
		g.logger.Info(ctx, "empty context, skipping generation")
		return Answer{
			Text:       insufficientContextAnswer,
			Confidence: 0,
			Sources:    nil,
		}, nil
	}

	start := time.Now()
	resp, err := g.client.Complete(ctx, CompletionRequest{
		System:      systemPrompt,
		User:        userPrompt(c.Text, question),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	generationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		generationsTotal.WithLabelValues("error").Inc()
		return Answer{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	generationsTotal.WithLabelValues("success").Inc()

	topScore := 0.0
	if len(c.Included) > 0 {
		topScore = c.Included[0].Score
	}
	confidence := g.confidence.Estimate(resp.Text, c.Text, topScore)

	g.logger.Debug(ctx, "generation complete",
		zap.Float64("confidence", confidence),
		zap.Int("sources", len(c.Included)),
		zap.Int("completion_tokens", resp.CompletionTokens))

	return Answer{
		Text:             resp.Text,
		Confidence:       confidence,
		Sources:          sourcesFromContext(c),
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}, nil
}

// sourcesFromContext derives attributions strictly from the chunks that made
// it into the context.
func sourcesFromContext(c augment.Context) []Source {
	sources := make([]Source, len(c.Included))
	for i, r := range c.Included {
		sources[i] = Source{
			Filename:   r.Chunk.Filename,
			PageNumber: r.Chunk.PageNumber,
			Content:    truncateRunes(r.Chunk.Content, sourcePreviewLimit),
			Score:      r.Score,
			ChunkType:  r.Chunk.ChunkType,
		}
	}
	return sources
}

// truncateRunes cuts s to at most limit bytes without splitting a rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
