// Package retrieval runs semantic, keyword and hybrid searches against the
// index. Hybrid search issues both query modes and fuses scores with
// configurable weights. Backend failures always surface as errors; an empty
// result set is returned only when the index genuinely has no matches.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/index"
	"github.com/fyrsmithlabs/ragd/internal/logging"
)

var (
	// ErrSearchFailed wraps index or embedding failures during search.
	ErrSearchFailed = errors.New("search failed")
	// ErrEmptyQuery is returned for blank query text.
	ErrEmptyQuery = errors.New("empty query")
	// ErrInvalidOptions is returned for out-of-range search options.
	ErrInvalidOptions = errors.New("invalid search options")
)

// Options controls one search.
type Options struct {
	TopK       int
	SearchType string
	// MinScore drops results below the threshold after fusion.
	MinScore float64
	// SemanticWeight and KeywordWeight control hybrid fusion.
	SemanticWeight float64
	KeywordWeight  float64
	// Filename restricts the search to one document when non-empty.
	Filename string
}

// ApplyDefaults fills zero values with the standard hyperparameters.
func (o *Options) ApplyDefaults() {
	if o.TopK == 0 {
		o.TopK = 5
	}
	if o.SearchType == "" {
		o.SearchType = string(index.ModeHybrid)
	}
	if o.SemanticWeight == 0 && o.KeywordWeight == 0 {
		o.SemanticWeight = 0.7
		o.KeywordWeight = 0.3
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.TopK < 1 {
		return fmt.Errorf("%w: top k must be positive, got %d", ErrInvalidOptions, o.TopK)
	}
	switch index.SearchMode(o.SearchType) {
	case index.ModeSemantic, index.ModeKeyword, index.ModeHybrid:
	default:
		return fmt.Errorf("%w: unknown search type %q", ErrInvalidOptions, o.SearchType)
	}
	if o.MinScore < 0 || o.MinScore > 1 {
		return fmt.Errorf("%w: min score must be in [0, 1], got %g", ErrInvalidOptions, o.MinScore)
	}
	if o.SemanticWeight < 0 || o.KeywordWeight < 0 {
		return fmt.Errorf("%w: fusion weights must be non-negative", ErrInvalidOptions)
	}
	return nil
}

// Searcher executes searches against one Store using one Embedder.
// Safe for concurrent use.
type Searcher struct {
	store    index.Store
	embedder embeddings.Embedder
	logger   *logging.Logger
}

// New creates a Searcher.
func New(store index.Store, embedder embeddings.Embedder, logger *logging.Logger) *Searcher {
	return &Searcher{
		store:    store,
		embedder: embedder,
		logger:   logger.Named("retrieval"),
	}
}

// Search embeds the query once and runs the requested mode. Results are
// ordered by score descending with deterministic tie-breaking, filtered by
// MinScore and capped at TopK.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]index.ScoredResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	// One embedding per search regardless of mode: the chromem backend
	// needs the vector for its keyword candidate pool too.
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrSearchFailed, err)
	}

	var results []index.ScoredResult
	switch index.SearchMode(opts.SearchType) {
	case index.ModeSemantic:
		results, err = s.singleMode(ctx, query, vector, opts, index.ModeSemantic)
	case index.ModeKeyword:
		results, err = s.singleMode(ctx, query, vector, opts, index.ModeKeyword)
	case index.ModeHybrid:
		results, err = s.hybrid(ctx, query, vector, opts)
	}
	if err != nil {
		return nil, err
	}

	results = filterByScore(results, opts.MinScore)
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	s.logger.Debug(ctx, "search complete",
		zap.String("search_type", opts.SearchType),
		zap.Int("results", len(results)))
	return results, nil
}

func (s *Searcher) singleMode(ctx context.Context, query string, vector []float32, opts Options, mode index.SearchMode) ([]index.ScoredResult, error) {
	results, err := s.store.Query(ctx, index.Query{
		Mode:     mode,
		Vector:   vector,
		Text:     query,
		TopK:     opts.TopK,
		Filename: opts.Filename,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s query: %w", ErrSearchFailed, mode, err)
	}
	return results, nil
}

// hybrid fuses semantic and keyword result sets. A chunk present in both
// scores semW*s + kwW*k; a chunk found by only one mode keeps that score
// scaled by its weight.
func (s *Searcher) hybrid(ctx context.Context, query string, vector []float32, opts Options) ([]index.ScoredResult, error) {
	semantic, err := s.singleMode(ctx, query, vector, opts, index.ModeSemantic)
	if err != nil {
		return nil, err
	}
	keyword, err := s.singleMode(ctx, query, vector, opts, index.ModeKeyword)
	if err != nil {
		return nil, err
	}

	fused := make(map[string]index.ScoredResult, len(semantic)+len(keyword))
	for _, r := range semantic {
		r.Score = r.Score * opts.SemanticWeight
		r.Mode = index.ModeHybrid
		fused[r.Chunk.ID] = r
	}
	for _, r := range keyword {
		if existing, ok := fused[r.Chunk.ID]; ok {
			existing.Score += r.Score * opts.KeywordWeight
			fused[r.Chunk.ID] = existing
			continue
		}
		r.Score = r.Score * opts.KeywordWeight
		r.Mode = index.ModeHybrid
		fused[r.Chunk.ID] = r
	}

	results := make([]index.ScoredResult, 0, len(fused))
	for _, r := range fused {
		results = append(results, r)
	}
	sortResults(results)
	return results, nil
}

func filterByScore(results []index.ScoredResult, minScore float64) []index.ScoredResult {
	filtered := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// sortResults applies the same ordering contract as the index package:
// score descending, then document name and chunk ordinal ascending.
func sortResults(results []index.ScoredResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.Filename != b.Chunk.Filename {
			return a.Chunk.Filename < b.Chunk.Filename
		}
		return a.Chunk.ChunkIndex < b.Chunk.ChunkIndex
	})
}
