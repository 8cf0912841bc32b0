package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunks() []Chunk {
	return []Chunk{
		{
			ID: "c1", Content: "PostgreSQL stores table rows in heap pages.",
			Filename: "db.pdf", PageNumber: 1, ChunkIndex: 0, ChunkType: "text",
			Vector: []float32{1, 0, 0},
		},
		{
			ID: "c2", Content: "Indexes in PostgreSQL speed up lookups on large tables.",
			Filename: "db.pdf", PageNumber: 2, ChunkIndex: 1, ChunkType: "text",
			Vector: []float32{0.9, 0.1, 0},
		},
		{
			ID: "c3", Content: "Kubernetes schedules pods onto cluster nodes.",
			Filename: "k8s.pdf", PageNumber: 1, ChunkIndex: 0, ChunkType: "text",
			Vector: []float32{0, 1, 0},
		},
	}
}

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(context.Background(), testChunks()))
	return s
}

func TestMemoryStore_SemanticQuery(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Query(context.Background(), Query{
		Mode:   ModeSemantic,
		Vector: []float32{1, 0, 0},
		TopK:   2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Equal(t, "c2", results[1].Chunk.ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.Equal(t, ModeSemantic, r.Mode)
	}
}

func TestMemoryStore_KeywordQuery(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Query(context.Background(), Query{
		Mode: ModeKeyword,
		Text: "PostgreSQL indexes",
		TopK: 5,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// c2 matches both terms, c1 only one.
	assert.Equal(t, "c2", results[0].Chunk.ID)
	assert.Equal(t, "c1", results[1].Chunk.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestMemoryStore_KeywordQuery_NoMatches(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Query(context.Background(), Query{
		Mode: ModeKeyword,
		Text: "astrophysics",
		TopK: 5,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStore_FilenameFilter(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Query(context.Background(), Query{
		Mode:     ModeSemantic,
		Vector:   []float32{1, 0, 0},
		TopK:     10,
		Filename: "k8s.pdf",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c3", results[0].Chunk.ID)
}

func TestMemoryStore_UpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	updated := testChunks()[0]
	updated.Content = "rewritten content"
	require.NoError(t, s.Upsert(ctx, []Chunk{updated}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := s.Query(ctx, Query{Mode: ModeSemantic, Vector: []float32{1, 0, 0}, TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rewritten content", results[0].Chunk.Content)
}

func TestMemoryStore_DeleteByDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.DeleteByDocument(ctx, "db.pdf"))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Deleting an absent document is not an error.
	require.NoError(t, s.DeleteByDocument(ctx, "missing.pdf"))
}

func TestMemoryStore_EmptyIndex(t *testing.T) {
	s := NewMemoryStore()

	results, err := s.Query(context.Background(), Query{
		Mode:   ModeSemantic,
		Vector: []float32{1, 0, 0},
		TopK:   5,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStore_InvalidQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
	}{
		{"unknown mode", Query{Mode: "fuzzy", Vector: []float32{1}, TopK: 5}},
		{"zero top k", Query{Mode: ModeSemantic, Vector: []float32{1}, TopK: 0}},
		{"semantic without vector", Query{Mode: ModeSemantic, TopK: 5}},
		{"keyword without text", Query{Mode: ModeKeyword, TopK: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Query(ctx, tt.q)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestMemoryStore_ContextCancellation(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Query(ctx, Query{Mode: ModeSemantic, Vector: []float32{1}, TopK: 1})
	assert.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, s.Upsert(ctx, testChunks()), context.Canceled)
}
