// Package embeddings turns text into vectors through an OpenAI-compatible
// embeddings API. Inputs are batched, transient provider failures are
// retried with exponential backoff, and output order always matches input
// order. A failed batch fails the whole call: callers never receive partial
// or padded results.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmbeddingFailed is the root of all embedding failures.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrEmptyInput is returned when there is nothing to embed.
	ErrEmptyInput = errors.New("no texts to embed")
	// ErrInvalidConfig is returned for bad service configuration.
	ErrInvalidConfig = errors.New("invalid embeddings config")
)

// Embedder is the capability interface consumed by ingestion and retrieval.
type Embedder interface {
	// EmbedDocuments embeds texts in order. len(result) == len(texts).
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// BatchError reports which inputs belonged to the batch that exhausted its
// retries.
type BatchError struct {
	// Indices are positions in the original input slice.
	Indices []int
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("embedding failed for inputs %v: %v", e.Indices, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrEmbeddingFailed) hold for batch errors.
func (e *BatchError) Is(target error) bool {
	return target == ErrEmbeddingFailed
}
