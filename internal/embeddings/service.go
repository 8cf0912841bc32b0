package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/logging"
)

// Config configures the embedding service.
type Config struct {
	// BaseURL points at an OpenAI-compatible endpoint. Empty uses the
	// provider default.
	BaseURL string
	APIKey  string
	Model   string
	// Dimensions is the expected vector size; responses with a different
	// size are rejected. Zero disables the check.
	Dimensions int
	// BatchSize caps texts per API request.
	BatchSize int
	// MaxRetries bounds attempts per batch on transient failures.
	MaxRetries int
	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff time.Duration
	// Timeout bounds a single API request. Zero uses the provider default.
	Timeout time.Duration
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 16
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries must be positive, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	return nil
}

// Service is an Embedder backed by an OpenAI-compatible API.
type Service struct {
	cfg    Config
	client openai.Client
	logger *logging.Logger
}

// NewService creates the embedding service.
func NewService(cfg Config, logger *logging.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// The SDK retries internally; the service owns retry policy.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Service{
		cfg:    cfg,
		client: openai.NewClient(opts...),
		logger: logger.Named("embeddings"),
	}, nil
}

// EmbedDocuments embeds texts in batches, preserving input order.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	textsPerCall.Observe(float64(len(texts)))

	vectors := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := s.embedBatch(ctx, texts[start:end], "embed_documents")
		if err != nil {
			indices := make([]int, 0, end-start)
			for i := start; i < end; i++ {
				indices = append(indices, i)
			}
			return nil, &BatchError{Indices: indices, Err: err}
		}
		copy(vectors[start:], batch)
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	batch, err := s.embedBatch(ctx, []string{text}, "embed_query")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return batch[0], nil
}

// embedBatch issues one API request with retry on transient failures.
func (s *Service) embedBatch(ctx context.Context, batch []string, operation string) ([][]float32, error) {
	backoff := s.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn(ctx, "retrying embedding batch",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		vectors, err := s.callAPI(ctx, batch, operation)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !isTransient(err) {
			requestsTotal.WithLabelValues(operation, "error").Inc()
			return nil, err
		}
	}
	requestsTotal.WithLabelValues(operation, "error").Inc()
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

func (s *Service) callAPI(ctx context.Context, batch []string, operation string) ([][]float32, error) {
	start := time.Now()
	resp, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		Model: openai.EmbeddingModel(s.cfg.Model),
	})
	requestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data))
	}

	vectors := make([][]float32, len(batch))
	for _, item := range resp.Data {
		i := int(item.Index)
		if i < 0 || i >= len(batch) {
			return nil, fmt.Errorf("embedding index %d out of range", i)
		}
		if s.cfg.Dimensions > 0 && len(item.Embedding) != s.cfg.Dimensions {
			return nil, fmt.Errorf("expected %d dimensions, got %d", s.cfg.Dimensions, len(item.Embedding))
		}
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	requestsTotal.WithLabelValues(operation, "success").Inc()
	return vectors, nil
}

// isTransient reports whether the provider error is worth retrying:
// rate limits, server errors and network failures, but not client errors.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Transport-level failures have no status code.
	return true
}
