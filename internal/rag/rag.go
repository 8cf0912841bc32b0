// Package rag orchestrates the ingestion and query pipelines.
//
// Ingestion runs chunk -> embed -> index; queries run search -> augment ->
// generate. Each stage failure is wrapped in a StageError naming the stage
// that aborted the pipeline. Request options are validated before any stage
// executes.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/augment"
	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/generate"
	"github.com/fyrsmithlabs/ragd/internal/index"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

const tracerName = "github.com/fyrsmithlabs/ragd/internal/rag"

// Pipeline stages, as reported by StageError.
type Stage string

const (
	StageDelete   Stage = "delete"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageIndex    Stage = "index"
	StageSearch   Stage = "search"
	StageGenerate Stage = "generate"
)

// StageError names the pipeline stage that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IngestResult summarizes one document ingestion.
type IngestResult struct {
	Filename       string
	ChunkCount     int
	ProcessingTime time.Duration
	ChunkTime      time.Duration
	EmbedTime      time.Duration
	IndexTime      time.Duration
}

// SearchResult is the SearchOnly output.
type SearchResult struct {
	Results      []index.ScoredResult
	TotalResults int
	SearchTime   time.Duration
	SearchType   string
}

// AskResult is the full question-answering output.
type AskResult struct {
	Answer             string
	Sources            []generate.Source
	Confidence         float64
	ProcessingTime     time.Duration
	SearchTime         time.Duration
	GenerateTime       time.Duration
	SearchResultsCount int
	ContextLength      int
	SearchType         string
}

// Service wires the pipeline stages together. Safe for concurrent use; the
// defaults snapshot is immutable after construction.
type Service struct {
	chunker   *chunker.Chunker
	embedder  embeddings.Embedder
	store     index.Store
	searcher  *retrieval.Searcher
	generator *generate.Generator
	defaults  config.QueryConfig
	logger    *logging.Logger
	tracer    trace.Tracer
}

// Deps are the Service dependencies.
type Deps struct {
	Chunker   *chunker.Chunker
	Embedder  embeddings.Embedder
	Store     index.Store
	Searcher  *retrieval.Searcher
	Generator *generate.Generator
	Defaults  config.QueryConfig
	Logger    *logging.Logger
}

// NewService creates the orchestrator.
func NewService(deps Deps) (*Service, error) {
	if err := deps.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return &Service{
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		store:     deps.Store,
		searcher:  deps.Searcher,
		generator: deps.Generator,
		defaults:  deps.Defaults,
		logger:    deps.Logger.Named("rag"),
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// Ingest chunks, embeds and indexes one document. With ForceReprocess the
// document's existing chunks are deleted first; the delete is not rolled
// back if a later stage fails, so a failed forced re-ingest can leave the
// document absent until retried.
func (s *Service) Ingest(ctx context.Context, doc chunker.Document, opts IngestOptions) (IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "rag.Ingest",
		trace.WithAttributes(attribute.String("filename", doc.Filename)))
	defer span.End()

	start := time.Now()
	if strings.TrimSpace(doc.Filename) == "" {
		return IngestResult{}, fmt.Errorf("%w: filename must not be empty", ErrInvalidOptions)
	}
	doc.Tags = opts.Tags

	if opts.ForceReprocess {
		if err := s.store.DeleteByDocument(ctx, doc.Filename); err != nil {
			return IngestResult{}, &StageError{Stage: StageDelete, Err: err}
		}
	}

	chunkStart := time.Now()
	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return IngestResult{}, &StageError{Stage: StageChunk, Err: err}
	}
	chunkTime := time.Since(chunkStart)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embedStart := time.Now()
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return IngestResult{}, &StageError{Stage: StageEmbed, Err: err}
	}
	embedTime := time.Since(embedStart)

	indexed := make([]index.Chunk, len(chunks))
	for i, ch := range chunks {
		indexed[i] = index.Chunk{
			ID:         ch.ID,
			Content:    ch.Content,
			Filename:   ch.Filename,
			PageNumber: ch.PageNumber,
			ChunkIndex: ch.ChunkIndex,
			ChunkType:  ch.ChunkType,
			Tags:       ch.Tags,
			Vector:     vectors[i],
		}
	}
	indexStart := time.Now()
	if err := s.store.Upsert(ctx, indexed); err != nil {
		return IngestResult{}, &StageError{Stage: StageIndex, Err: err}
	}
	indexTime := time.Since(indexStart)

	s.logger.Info(ctx, "document ingested",
		zap.String("filename", doc.Filename),
		zap.Int("chunks", len(chunks)),
		zap.Bool("force_reprocess", opts.ForceReprocess),
		zap.Duration("duration", time.Since(start)))

	return IngestResult{
		Filename:       doc.Filename,
		ChunkCount:     len(chunks),
		ProcessingTime: time.Since(start),
		ChunkTime:      chunkTime,
		EmbedTime:      embedTime,
		IndexTime:      indexTime,
	}, nil
}

// DeleteDocument removes a document's chunks from the index.
func (s *Service) DeleteDocument(ctx context.Context, filename string) error {
	ctx, span := s.tracer.Start(ctx, "rag.DeleteDocument",
		trace.WithAttributes(attribute.String("filename", filename)))
	defer span.End()

	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("%w: filename must not be empty", ErrInvalidOptions)
	}
	if err := s.store.DeleteByDocument(ctx, filename); err != nil {
		return &StageError{Stage: StageDelete, Err: err}
	}
	s.logger.Info(ctx, "document deleted", zap.String("filename", filename))
	return nil
}

// SearchOnly runs retrieval without generation.
func (s *Service) SearchOnly(ctx context.Context, query string, opts QueryOptions) (SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "rag.SearchOnly")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return SearchResult{}, fmt.Errorf("%w: query must not be empty", ErrInvalidOptions)
	}
	set, err := resolve(s.defaults, opts)
	if err != nil {
		return SearchResult{}, err
	}

	start := time.Now()
	results, err := s.search(ctx, query, set)
	if err != nil {
		return SearchResult{}, err
	}

	return SearchResult{
		Results:      results,
		TotalResults: len(results),
		SearchTime:   time.Since(start),
		SearchType:   set.SearchType,
	}, nil
}

// Ask answers a question: retrieval, context assembly, generation. Empty
// retrieval is not an error; the answer reports insufficient context with
// zero confidence.
func (s *Service) Ask(ctx context.Context, question string, opts QueryOptions) (AskResult, error) {
	ctx, span := s.tracer.Start(ctx, "rag.Ask")
	defer span.End()

	start := time.Now()
	if strings.TrimSpace(question) == "" {
		return AskResult{}, fmt.Errorf("%w: question must not be empty", ErrInvalidOptions)
	}
	set, err := resolve(s.defaults, opts)
	if err != nil {
		return AskResult{}, err
	}

	searchStart := time.Now()
	results, err := s.search(ctx, question, set)
	if err != nil {
		return AskResult{}, err
	}
	searchTime := time.Since(searchStart)

	assembled := augment.Assemble(results, set.ContextLength)

	generateStart := time.Now()
	answer, err := s.generator.Generate(ctx, question, assembled, generate.Options{
		Temperature: set.Temperature,
		MaxTokens:   set.MaxTokens,
	})
	if err != nil {
		return AskResult{}, &StageError{Stage: StageGenerate, Err: err}
	}
	generateTime := time.Since(generateStart)

	s.logger.Info(ctx, "question answered",
		zap.String("search_type", set.SearchType),
		zap.Int("search_results", len(results)),
		zap.Float64("confidence", answer.Confidence),
		zap.Duration("duration", time.Since(start)))

	return AskResult{
		Answer:             answer.Text,
		Sources:            answer.Sources,
		Confidence:         answer.Confidence,
		ProcessingTime:     time.Since(start),
		SearchTime:         searchTime,
		GenerateTime:       generateTime,
		SearchResultsCount: len(results),
		ContextLength:      len(assembled.Text),
		SearchType:         set.SearchType,
	}, nil
}

// DocumentCount reports how many chunks the index holds.
func (s *Service) DocumentCount(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *Service) search(ctx context.Context, query string, set settings) ([]index.ScoredResult, error) {
	results, err := s.searcher.Search(ctx, query, retrieval.Options{
		TopK:           set.TopK,
		SearchType:     set.SearchType,
		MinScore:       set.MinScore,
		SemanticWeight: set.SemanticWeight,
		KeywordWeight:  set.KeywordWeight,
		Filename:       set.Filename,
	})
	if err != nil {
		return nil, &StageError{Stage: StageSearch, Err: err}
	}
	return results, nil
}
