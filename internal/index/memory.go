package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs the "memory"
// index backend and serves as the test double for the other adapters.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string]Chunk)}
}

// Upsert writes chunks, replacing existing entries with the same IDs.
func (s *MemoryStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range chunks {
		if ch.ID == "" {
			return fmt.Errorf("%w: chunk without id", ErrInvalidQuery)
		}
		s.chunks[ch.ID] = ch
	}
	return nil
}

// DeleteByDocument removes every chunk of the named document.
func (s *MemoryStore) DeleteByDocument(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.chunks {
		if ch.Filename == filename {
			delete(s.chunks, id)
		}
	}
	return nil
}

// Query runs a semantic or keyword lookup over all stored chunks.
func (s *MemoryStore) Query(ctx context.Context, q Query) ([]ScoredResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var queryTokens []string
	if q.Mode == ModeKeyword {
		queryTokens = Tokenize(q.Text)
	}

	results := make([]ScoredResult, 0, len(s.chunks))
	for _, ch := range s.chunks {
		if q.Filename != "" && ch.Filename != q.Filename {
			continue
		}
		var score float64
		switch q.Mode {
		case ModeSemantic:
			score = clamp01(cosineSimilarity(q.Vector, ch.Vector))
		case ModeKeyword:
			score = TermOverlap(queryTokens, Tokenize(ch.Content))
			if score == 0 {
				continue
			}
		}
		results = append(results, ScoredResult{Chunk: ch, Score: score, Mode: q.Mode})
	}

	sortResults(results)
	if len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// sortResults orders by score descending, breaking ties by document name
// and chunk ordinal so results are deterministic.
func sortResults(results []ScoredResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.Filename != results[j].Chunk.Filename {
			return results[i].Chunk.Filename < results[j].Chunk.Filename
		}
		return results[i].Chunk.ChunkIndex < results[j].Chunk.ChunkIndex
	})
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
