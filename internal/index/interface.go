package index

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("index unavailable")
	// ErrMalformedResponse indicates the backend returned data the adapter
	// could not interpret.
	ErrMalformedResponse = errors.New("malformed index response")
	// ErrInvalidConfig indicates bad adapter configuration.
	ErrInvalidConfig = errors.New("invalid index config")
	// ErrInvalidQuery indicates a query missing required fields.
	ErrInvalidQuery = errors.New("invalid index query")
)

// Store is the capability interface implemented by every index backend.
// Implementations must be safe for concurrent use.
type Store interface {
	// Upsert writes chunks, replacing any existing points with the same IDs.
	Upsert(ctx context.Context, chunks []Chunk) error
	// DeleteByDocument removes every chunk belonging to the named document.
	DeleteByDocument(ctx context.Context, filename string) error
	// Query runs one semantic or keyword lookup.
	Query(ctx context.Context, q Query) ([]ScoredResult, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	// Close releases backend resources.
	Close() error
}

func validateQuery(q Query) error {
	switch q.Mode {
	case ModeSemantic, ModeKeyword:
	default:
		return errors.New("unknown search mode")
	}
	if q.TopK <= 0 {
		return errors.New("top k must be positive")
	}
	if q.Mode == ModeSemantic && len(q.Vector) == 0 {
		return errors.New("semantic query requires a vector")
	}
	if q.Mode == ModeKeyword && q.Text == "" {
		return errors.New("keyword query requires text")
	}
	return nil
}
