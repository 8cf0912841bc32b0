package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChromemTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	s, err := NewChromemStore(ChromemConfig{Collection: "test"})
	require.NoError(t, err)
	require.NoError(t, s.Upsert(context.Background(), testChunks()))
	return s
}

func TestChromemStore_SemanticQuery(t *testing.T) {
	s := newChromemTestStore(t)

	results, err := s.Query(context.Background(), Query{
		Mode:   ModeSemantic,
		Vector: []float32{1, 0, 0},
		TopK:   2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Equal(t, "db.pdf", results[0].Chunk.Filename)
	assert.Equal(t, 1, results[0].Chunk.PageNumber)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestChromemStore_KeywordQuery(t *testing.T) {
	s := newChromemTestStore(t)

	results, err := s.Query(context.Background(), Query{
		Mode:   ModeKeyword,
		Text:   "PostgreSQL indexes",
		Vector: []float32{1, 0, 0},
		TopK:   5,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c2", results[0].Chunk.ID)
}

func TestChromemStore_DeleteByDocument(t *testing.T) {
	s := newChromemTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.DeleteByDocument(ctx, "db.pdf"))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestChromemStore_EmptyCollection(t *testing.T) {
	s, err := NewChromemStore(ChromemConfig{Collection: "empty"})
	require.NoError(t, err)

	results, err := s.Query(context.Background(), Query{
		Mode:   ModeSemantic,
		Vector: []float32{1, 0, 0},
		TopK:   5,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewChromemStore(ChromemConfig{Path: dir, Collection: "docs"})
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, testChunks()))
	require.NoError(t, s.Close())

	reopened, err := NewChromemStore(ChromemConfig{Path: dir, Collection: "docs"})
	require.NoError(t, err)

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
