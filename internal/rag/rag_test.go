package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/generate"
	"github.com/fyrsmithlabs/ragd/internal/index"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

// fakeEmbedder returns the same unit vector for every text, so semantic
// similarity is always maximal and tests can focus on pipeline behavior.
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

type fakeCompletion struct {
	text  string
	err   error
	calls int
}

func (f *fakeCompletion) Complete(ctx context.Context, req generate.CompletionRequest) (generate.CompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return generate.CompletionResponse{}, f.err
	}
	return generate.CompletionResponse{Text: f.text, PromptTokens: 10, CompletionTokens: 5}, nil
}

type testEnv struct {
	svc      *Service
	store    *index.MemoryStore
	embedder *fakeEmbedder
	client   *fakeCompletion
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ch, err := chunker.New(chunker.Config{})
	require.NoError(t, err)

	store := index.NewMemoryStore()
	embedder := &fakeEmbedder{}
	client := &fakeCompletion{
		text: "According to the context, the document describes indexing strategies for relational databases.",
	}
	logger := logging.NewNop()

	svc, err := NewService(Deps{
		Chunker:   ch,
		Embedder:  embedder,
		Store:     store,
		Searcher:  retrieval.New(store, embedder, logger),
		Generator: generate.New(client, generate.ConfidenceConfig{}, logger),
		Defaults:  config.NewDefaultConfig().Query,
		Logger:    logger,
	})
	require.NoError(t, err)

	return &testEnv{svc: svc, store: store, embedder: embedder, client: client}
}

func testDoc(filename, body string) chunker.Document {
	return chunker.Document{Filename: filename, Text: body}
}

const sampleText = "Relational databases use B-tree indexes to speed up lookups. " +
	"Secondary indexes trade write throughput for read performance. " +
	"Covering indexes can satisfy queries without touching the table heap."

func ptr[T any](v T) *T { return &v }

func TestIngest_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Ingest(ctx, testDoc("db.pdf", sampleText), IngestOptions{Tags: []string{"databases"}})
	require.NoError(t, err)

	assert.Equal(t, "db.pdf", res.Filename)
	assert.Greater(t, res.ChunkCount, 0)
	assert.Greater(t, res.ProcessingTime, time.Duration(0))

	count, err := env.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.ChunkCount, count)
}

func TestIngest_EmptyDocument(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Ingest(context.Background(), testDoc("empty.pdf", "   "), IngestOptions{})
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageChunk, stageErr.Stage)
	assert.ErrorIs(t, err, chunker.ErrEmptyInput)
}

func TestIngest_MissingFilename(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Ingest(context.Background(), testDoc("", sampleText), IngestOptions{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestIngest_EmbedFailureAbortsBeforeIndexing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.embedder.err = embeddings.ErrEmbeddingFailed

	_, err := env.svc.Ingest(ctx, testDoc("db.pdf", sampleText), IngestOptions{})
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageEmbed, stageErr.Stage)

	// No partial writes.
	count, err := env.store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngest_ForceReprocessDeletesFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	long := strings.Repeat(sampleText+" ", 20)
	first, err := env.svc.Ingest(ctx, testDoc("db.pdf", long), IngestOptions{})
	require.NoError(t, err)
	require.Greater(t, first.ChunkCount, 1)

	second, err := env.svc.Ingest(ctx, testDoc("db.pdf", sampleText), IngestOptions{ForceReprocess: true})
	require.NoError(t, err)

	count, err := env.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ChunkCount, count, "stale chunks from the longer version must be gone")
}

func TestAsk_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Ingest(ctx, testDoc("db.pdf", sampleText), IngestOptions{})
	require.NoError(t, err)

	res, err := env.svc.Ask(ctx, "how do indexes speed up lookups?", QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, env.client.text, res.Answer)
	assert.NotEmpty(t, res.Sources)
	for _, src := range res.Sources {
		assert.Equal(t, "db.pdf", src.Filename)
	}
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.Greater(t, res.SearchResultsCount, 0)
	assert.Greater(t, res.ContextLength, 0)
	assert.Equal(t, "hybrid", res.SearchType)
	assert.Equal(t, 1, env.client.calls)
}

func TestAsk_SourcesCarryPageAttribution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := "--- Page 1 ---\n" +
		"Shipping schedules are published quarterly by the logistics team.\n" +
		"--- Page 2 ---\n" +
		"Covering indexes satisfy queries without touching the table heap.\n" +
		"--- Page 3 ---\n" +
		"Appendix with contact details for the operations group.\n"

	_, err := env.svc.Ingest(ctx, testDoc("manual.pdf", doc), IngestOptions{})
	require.NoError(t, err)

	res, err := env.svc.Ask(ctx, "how do covering indexes satisfy queries?", QueryOptions{})
	require.NoError(t, err)

	require.NotEmpty(t, res.Sources)
	pages := make(map[int]bool)
	for _, src := range res.Sources {
		pages[src.PageNumber] = true
		assert.GreaterOrEqual(t, src.Score, config.DefaultMinScore)
	}
	assert.True(t, pages[2], "answer sources must attribute page 2")
}

func TestAsk_EmptyIndexYieldsInsufficientContext(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.Ask(context.Background(), "anything at all?", QueryOptions{})
	require.NoError(t, err)

	assert.Zero(t, env.client.calls, "generation must be skipped")
	assert.Equal(t, 0.0, res.Confidence)
	assert.Empty(t, res.Sources)
	assert.Zero(t, res.SearchResultsCount)
	assert.Contains(t, res.Answer, "could not find relevant information")
}

func TestAsk_ValidationBeforeAnyStage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		opts QueryOptions
	}{
		{"top_k too large", QueryOptions{TopK: ptr(21)}},
		{"top_k zero", QueryOptions{TopK: ptr(0)}},
		{"bad search type", QueryOptions{SearchType: ptr("fuzzy")}},
		{"temperature out of range", QueryOptions{Temperature: ptr(2.5)}},
		{"max_tokens too small", QueryOptions{MaxTokens: ptr(50)}},
		{"context_length too large", QueryOptions{ContextLength: ptr(9000)}},
		{"min_score negative", QueryOptions{MinScore: ptr(-0.1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Ask(ctx, "question", tt.opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
	assert.Zero(t, env.client.calls)
	assert.Zero(t, env.embedder.calls)

	_, err := env.svc.Ask(ctx, "  ", QueryOptions{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestAsk_OptionOverridesApplied(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Ingest(ctx, testDoc("db.pdf", sampleText), IngestOptions{})
	require.NoError(t, err)

	res, err := env.svc.Ask(ctx, "indexes?", QueryOptions{
		SearchType: ptr("semantic"),
		TopK:       ptr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "semantic", res.SearchType)
	assert.LessOrEqual(t, res.SearchResultsCount, 1)
}

func TestAsk_GenerationFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Ingest(ctx, testDoc("db.pdf", sampleText), IngestOptions{})
	require.NoError(t, err)

	env.client.err = errors.New("provider exploded")
	_, err = env.svc.Ask(ctx, "how do indexes work?", QueryOptions{})
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageGenerate, stageErr.Stage)
	assert.ErrorIs(t, err, generate.ErrGenerationFailed)
}

func TestSearchOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Ingest(ctx, testDoc("db.pdf", sampleText), IngestOptions{})
	require.NoError(t, err)

	res, err := env.svc.SearchOnly(ctx, "covering indexes", QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, len(res.Results), res.TotalResults)
	assert.Greater(t, res.TotalResults, 0)
	assert.Equal(t, "hybrid", res.SearchType)
	assert.Zero(t, env.client.calls, "search-only must not generate")

	_, err = env.svc.SearchOnly(ctx, "", QueryOptions{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestDeleteDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Ingest(ctx, testDoc("db.pdf", sampleText), IngestOptions{})
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteDocument(ctx, "db.pdf"))

	count, err := env.svc.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = env.svc.DeleteDocument(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
