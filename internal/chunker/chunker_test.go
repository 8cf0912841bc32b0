package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative size", Config{MaxChunkSize: -1}},
		{"overlap equals size", Config{MaxChunkSize: 100, ChunkOverlap: 100, MinChunkSize: 10}},
		{"overlap exceeds size", Config{MaxChunkSize: 100, ChunkOverlap: 150, MinChunkSize: 10}},
		{"min exceeds max", Config{MaxChunkSize: 100, ChunkOverlap: 10, MinChunkSize: 200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	c := mustNew(t, Config{})

	for _, text := range []string{"", "   ", "\n\n\t"} {
		_, err := c.Chunk(Document{Filename: "doc.pdf", Text: text})
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
}

func TestChunk_SmallTextSingleChunk(t *testing.T) {
	c := mustNew(t, Config{})

	chunks, err := c.Chunk(Document{Filename: "doc.pdf", Text: "A short paragraph.", Tags: []string{"manual"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	ch := chunks[0]
	assert.Equal(t, "A short paragraph.", ch.Content)
	assert.Equal(t, "doc.pdf", ch.Filename)
	assert.Equal(t, 0, ch.PageNumber)
	assert.Equal(t, 0, ch.ChunkIndex)
	assert.Equal(t, TypeText, ch.ChunkType)
	assert.Equal(t, []string{"manual"}, ch.Tags)
	assert.NotEmpty(t, ch.ID)
}

func TestChunk_SizeBoundAndCoverage(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&sb, "Sentence number %d talks about topic %d in some detail. ", i, i%7)
	}
	text := sb.String()

	c := mustNew(t, Config{MaxChunkSize: 300, ChunkOverlap: 60, MinChunkSize: 50})
	chunks, err := c.Chunk(Document{Filename: "doc.pdf", Text: text})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 300, "chunk %d exceeds max size", i)
		assert.True(t, strings.Contains(text, ch.Content), "chunk %d is not a substring of the input", i)
		assert.Equal(t, i, ch.ChunkIndex)
	}

	// Every sentence must survive in at least one chunk.
	joined := strings.Join(collectContents(chunks), "\n")
	for i := 0; i < 120; i++ {
		assert.Contains(t, joined, fmt.Sprintf("Sentence number %d ", i))
	}
}

func TestChunk_OverlapBetweenConsecutiveChunks(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "Alpha beta gamma delta epsilon zeta %d. ", i)
	}

	c := mustNew(t, Config{MaxChunkSize: 200, ChunkOverlap: 80, MinChunkSize: 40})
	chunks, err := c.Chunk(Document{Filename: "doc.pdf", Text: sb.String()})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	for i := 0; i < len(chunks)-1; i++ {
		head := chunks[i+1].Content
		if len(head) > 40 {
			head = head[:40]
		}
		assert.Contains(t, chunks[i].Content, strings.TrimSpace(head),
			"chunk %d does not begin inside chunk %d", i+1, i)
	}
}

func TestChunk_NoBoundariesFallsBackToWindows(t *testing.T) {
	text := strings.Repeat("x", 2500)

	c := mustNew(t, Config{MaxChunkSize: 1000, ChunkOverlap: 200, MinChunkSize: 200})
	chunks, err := c.Chunk(Document{Filename: "blob.txt", Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 1000)
	}
}

func TestChunk_SmallTailMerged(t *testing.T) {
	// Two paragraphs: one near the limit, one tiny. The tiny tail should be
	// folded into the previous chunk when it fits.
	text := strings.Repeat("word ", 150) + "\n\ntiny tail."

	c := mustNew(t, Config{MaxChunkSize: 1000, ChunkOverlap: 100, MinChunkSize: 200})
	chunks, err := c.Chunk(Document{Filename: "doc.pdf", Text: text})
	require.NoError(t, err)

	last := chunks[len(chunks)-1].Content
	assert.Contains(t, last, "tiny tail.")
	if len(chunks) > 1 {
		assert.GreaterOrEqual(t, len(last), 200)
	}
}

func TestChunk_PageMarkers(t *testing.T) {
	text := "--- Page 1 ---\nFirst page content about databases.\n--- Page 2 ---\nSecond page content about indexes.\n"

	c := mustNew(t, Config{})
	chunks, err := c.Chunk(Document{Filename: "doc.pdf", Text: text})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Contains(t, chunks[0].Content, "First page")
	assert.Equal(t, 2, chunks[1].PageNumber)
	assert.Contains(t, chunks[1].Content, "Second page")
}

func TestChunk_PreambleBeforeFirstMarkerIsPageZero(t *testing.T) {
	text := "Cover sheet text.\n--- Page 1 ---\nBody text.\n"

	c := mustNew(t, Config{})
	chunks, err := c.Chunk(Document{Filename: "doc.pdf", Text: text})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0, chunks[0].PageNumber)
	assert.Equal(t, 1, chunks[1].PageNumber)
}

func TestChunk_ImageAnalysisSections(t *testing.T) {
	text := "Intro paragraph about the system.\n\n" +
		"[Image Analysis - figure-3] The diagram shows a three stage pipeline with queues between stages.\n\n" +
		"Closing paragraph with more prose."

	c := mustNew(t, Config{})
	chunks, err := c.Chunk(Document{Filename: "doc.pdf", Text: text})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, TypeText, chunks[0].ChunkType)
	assert.Equal(t, TypeImageDerived, chunks[1].ChunkType)
	assert.Contains(t, chunks[1].Content, "[Image Analysis - figure-3]")
	assert.Contains(t, chunks[1].Content, "three stage pipeline")
	assert.Equal(t, TypeText, chunks[2].ChunkType)
}

func TestChunk_DeterministicIDs(t *testing.T) {
	doc := Document{Filename: "doc.pdf", Text: "Same text both times, long enough to chunk once."}

	c := mustNew(t, Config{})
	first, err := c.Chunk(doc)
	require.NoError(t, err)
	second, err := c.Chunk(doc)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}

	// Different documents must not collide.
	other, err := c.Chunk(Document{Filename: "other.pdf", Text: doc.Text})
	require.NoError(t, err)
	assert.NotEqual(t, first[0].ID, other[0].ID)
}

func collectContents(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Content
	}
	return out
}
