package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
)

// ChromemConfig configures the embedded chromem backend.
type ChromemConfig struct {
	// Path is the on-disk database directory. Empty means in-memory.
	Path string
	// Compress gzips persisted collections.
	Compress bool
	// Collection is the collection name.
	Collection string
}

// ApplyDefaults fills zero values.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "documents"
	}
}

// ChromemStore is a Store backed by an embedded chromem database. Vectors
// are always precomputed by the caller; chromem's own embedding hook is
// never exercised.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) the database and collection.
func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	cfg.ApplyDefaults()

	var db *chromem.DB
	var err error
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: open chromem db: %v", ErrUnavailable, err)
		}
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("%w: create collection %q: %v", ErrUnavailable, cfg.Collection, err)
	}

	return &ChromemStore{db: db, collection: collection}, nil
}

// rejectEmbedding guards against chunks arriving without vectors.
func rejectEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("chunks must carry precomputed embeddings")
}

// Upsert writes chunks, replacing existing documents with the same IDs.
func (s *ChromemStore) Upsert(ctx context.Context, chunks []Chunk) error {
	for _, ch := range chunks {
		if len(ch.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s has no vector", ErrInvalidQuery, ch.ID)
		}
		doc := chromem.Document{
			ID:        ch.ID,
			Metadata:  chunkMetadata(ch),
			Embedding: ch.Vector,
			Content:   ch.Content,
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("%w: add document %s: %v", ErrUnavailable, ch.ID, err)
		}
	}
	return nil
}

// DeleteByDocument removes every chunk of the named document.
func (s *ChromemStore) DeleteByDocument(ctx context.Context, filename string) error {
	err := s.collection.Delete(ctx, map[string]string{"filename": filename}, nil)
	if err != nil {
		return fmt.Errorf("%w: delete document %s: %v", ErrUnavailable, filename, err)
	}
	return nil
}

// Query runs a lookup. Keyword mode retrieves a vector-similarity candidate
// pool and rescores it lexically; chromem has no native keyword search.
func (s *ChromemStore) Query(ctx context.Context, q Query) ([]ScoredResult, error) {
	if err := validateQuery(q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: chromem keyword search requires a query vector", ErrInvalidQuery)
	}

	var where map[string]string
	if q.Filename != "" {
		where = map[string]string{"filename": q.Filename}
	}

	total := s.collection.Count()
	if total == 0 {
		return []ScoredResult{}, nil
	}

	n := q.TopK
	if q.Mode == ModeKeyword {
		n = candidatePoolSize(q.TopK, total)
	}
	if n > total {
		n = total
	}

	hits, err := s.collection.QueryEmbedding(ctx, q.Vector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}

	var queryTokens []string
	if q.Mode == ModeKeyword {
		queryTokens = Tokenize(q.Text)
	}

	results := make([]ScoredResult, 0, len(hits))
	for _, hit := range hits {
		ch, err := chunkFromMetadata(hit.ID, hit.Content, hit.Metadata)
		if err != nil {
			return nil, err
		}
		var score float64
		switch q.Mode {
		case ModeSemantic:
			score = clamp01(float64(hit.Similarity))
		case ModeKeyword:
			score = TermOverlap(queryTokens, Tokenize(hit.Content))
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

// candidatePoolSize picks how many vector hits to rescore lexically.
func candidatePoolSize(topK, total int) int {
	pool := topK * 4
	if pool < 50 {
		pool = 50
	}
	if pool > total {
		pool = total
	}
	return pool
}

// Count returns the number of stored chunks.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.collection.Count(), nil
}

// Close is a no-op: chromem persists synchronously.
func (s *ChromemStore) Close() error {
	return nil
}

func chunkMetadata(ch Chunk) map[string]string {
	md := map[string]string{
		"filename":    ch.Filename,
		"page_number": strconv.Itoa(ch.PageNumber),
		"chunk_index": strconv.Itoa(ch.ChunkIndex),
		"chunk_type":  ch.ChunkType,
	}
	if len(ch.Tags) > 0 {
		md["tags"] = strings.Join(ch.Tags, ",")
	}
	return md
}

func chunkFromMetadata(id, content string, md map[string]string) (Chunk, error) {
	page, err := strconv.Atoi(md["page_number"])
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: bad page_number %q", ErrMalformedResponse, md["page_number"])
	}
	ordinal, err := strconv.Atoi(md["chunk_index"])
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: bad chunk_index %q", ErrMalformedResponse, md["chunk_index"])
	}
	var tags []string
	if md["tags"] != "" {
		tags = strings.Split(md["tags"], ",")
	}
	return Chunk{
		ID:         id,
		Content:    content,
		Filename:   md["filename"],
		PageNumber: page,
		ChunkIndex: ordinal,
		ChunkType:  md["chunk_type"],
		Tags:       tags,
	}, nil
}
