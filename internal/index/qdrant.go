package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const tracerName = "github.com/fyrsmithlabs/ragd/internal/index"

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// VectorSize is the embedding dimensionality; the collection is created
	// with it when missing.
	VectorSize int
	// MaxRetries bounds attempts for transient gRPC failures.
	MaxRetries int
	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff time.Duration
}

// ApplyDefaults fills zero values.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "documents"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
}

// Validate checks the config.
func (c QdrantConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive, got %d", ErrInvalidConfig, c.VectorSize)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be in [1, 65535], got %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// QdrantStore is a Store backed by a Qdrant collection over gRPC.
type QdrantStore struct {
	cfg    QdrantConfig
	client *qdrant.Client
	tracer trace.Tracer
}

// NewQdrantStore connects to Qdrant and ensures the collection and payload
// indexes exist.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect to qdrant: %v", ErrUnavailable, err)
	}

	s := &QdrantStore{
		cfg:    cfg,
		client: client,
		tracer: otel.Tracer(tracerName),
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("%w: check collection: %v", ErrUnavailable, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.VectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %v", ErrUnavailable, err)
	}

	// Full-text index on content for keyword search, keyword index on
	// filename for document-scoped filters and deletes.
	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{"content", qdrant.FieldType_FieldTypeText},
		{"filename", qdrant.FieldType_FieldTypeKeyword},
	}
	for _, idx := range indexes {
		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.Collection,
			FieldName:      idx.field,
			FieldType:      idx.kind.Enum(),
		})
		if err != nil {
			return fmt.Errorf("%w: create %s index: %v", ErrUnavailable, idx.field, err)
		}
	}
	return nil
}

// Upsert writes chunks, replacing points with the same IDs.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk) error {
	ctx, span := s.tracer.Start(ctx, "index.Upsert",
		trace.WithAttributes(attribute.Int("chunks", len(chunks))))
	defer span.End()

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, ch := range chunks {
		if len(ch.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s has no vector", ErrInvalidQuery, ch.ID)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(ch.ID),
			Vectors: qdrant.NewVectors(ch.Vector...),
			Payload: chunkPayload(ch),
		}
	}

	err := s.withRetry(ctx, func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.cfg.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("%w: upsert: %v", ErrUnavailable, err)
	}
	span.SetStatus(otelcodes.Ok, "")
	return nil
}

// DeleteByDocument removes every chunk of the named document.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, filename string) error {
	ctx, span := s.tracer.Start(ctx, "index.DeleteByDocument",
		trace.WithAttributes(attribute.String("filename", filename)))
	defer span.End()

	err := s.withRetry(ctx, func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.cfg.Collection,
			Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must: []*qdrant.Condition{
					qdrant.NewMatchKeyword("filename", filename),
				},
			}),
			Wait: qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("%w: delete document %s: %v", ErrUnavailable, filename, err)
	}
	span.SetStatus(otelcodes.Ok, "")
	return nil
}

// Query runs a semantic vector search or a keyword full-text scroll.
func (s *QdrantStore) Query(ctx context.Context, q Query) ([]ScoredResult, error) {
	ctx, span := s.tracer.Start(ctx, "index.Query",
		trace.WithAttributes(
			attribute.String("mode", string(q.Mode)),
			attribute.Int("top_k", q.TopK),
		))
	defer span.End()

	if err := validateQuery(q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	var results []ScoredResult
	var err error
	switch q.Mode {
	case ModeSemantic:
		results, err = s.semanticQuery(ctx, q)
	case ModeKeyword:
		results, err = s.keywordQuery(ctx, q)
	}
	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(otelcodes.Ok, "")
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

func (s *QdrantStore) semanticQuery(ctx context.Context, q Query) ([]ScoredResult, error) {
	var hits []*qdrant.ScoredPoint
	err := s.withRetry(ctx, func() error {
		var err error
		hits, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.cfg.Collection,
			Query:          qdrant.NewQuery(q.Vector...),
			Limit:          qdrant.PtrOf(uint64(q.TopK)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         documentFilter(q.Filename),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: semantic query: %v", ErrUnavailable, err)
	}

	results := make([]ScoredResult, 0, len(hits))
	for _, hit := range hits {
		ch, err := chunkFromPayload(hit.GetId(), hit.GetPayload())
		if err != nil {
			return nil, err
		}
		results = append(results, ScoredResult{
			Chunk: ch,
			Score: clamp01(float64(hit.GetScore())),
			Mode:  ModeSemantic,
		})
	}
	sortResults(results)
	return results, nil
}

// keywordQuery scrolls points whose content matches the query terms, then
// scores them lexically on the client.
func (s *QdrantStore) keywordQuery(ctx context.Context, q Query) ([]ScoredResult, error) {
	must := []*qdrant.Condition{
		qdrant.NewMatchText("content", q.Text),
	}
	if q.Filename != "" {
		must = append(must, qdrant.NewMatchKeyword("filename", q.Filename))
	}

	limit := uint32(q.TopK * 4)
	if limit < 50 {
		limit = 50
	}
	var hits []*qdrant.RetrievedPoint
	err := s.withRetry(ctx, func() error {
		var err error
		hits, err = s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Filter:         &qdrant.Filter{Must: must},
			Limit:          qdrant.PtrOf(limit),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: keyword scroll: %v", ErrUnavailable, err)
	}

	queryTokens := Tokenize(q.Text)
	results := make([]ScoredResult, 0, len(hits))
	for _, hit := range hits {
		ch, err := chunkFromPayload(hit.GetId(), hit.GetPayload())
		if err != nil {
			return nil, err
		}
		score := TermOverlap(queryTokens, Tokenize(ch.Content))
		if score == 0 {
			continue
		}
		results = append(results, ScoredResult{Chunk: ch, Score: score, Mode: ModeKeyword})
	}

	sortResults(results)
	if len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}

// Count returns the exact number of stored points.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "index.Count")
	defer span.End()

	var count uint64
	err := s.withRetry(ctx, func() error {
		var err error
		count, err = s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.cfg.Collection,
			Exact:          qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("%w: count: %v", ErrUnavailable, err)
	}
	span.SetStatus(otelcodes.Ok, "")
	return int(count), nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// withRetry retries fn on transient gRPC failures with exponential backoff.
func (s *QdrantStore) withRetry(ctx context.Context, fn func() error) error {
	backoff := s.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientGRPC(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// isTransientGRPC reports whether the error is worth retrying.
func isTransientGRPC(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	}
	return false
}

func documentFilter(filename string) *qdrant.Filter {
	if filename == "" {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchKeyword("filename", filename),
		},
	}
}

func chunkPayload(ch Chunk) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"content":     {Kind: &qdrant.Value_StringValue{StringValue: ch.Content}},
		"filename":    {Kind: &qdrant.Value_StringValue{StringValue: ch.Filename}},
		"page_number": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(ch.PageNumber)}},
		"chunk_index": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(ch.ChunkIndex)}},
		"chunk_type":  {Kind: &qdrant.Value_StringValue{StringValue: ch.ChunkType}},
	}
	if len(ch.Tags) > 0 {
		payload["tags"] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: strings.Join(ch.Tags, ",")}}
	}
	return payload
}

func chunkFromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) (Chunk, error) {
	if id == nil || payload == nil {
		return Chunk{}, fmt.Errorf("%w: point missing id or payload", ErrMalformedResponse)
	}
	content, ok := payload["content"]
	if !ok {
		return Chunk{}, fmt.Errorf("%w: point %s missing content", ErrMalformedResponse, id.GetUuid())
	}
	var tags []string
	if t := payload["tags"].GetStringValue(); t != "" {
		tags = strings.Split(t, ",")
	}
	return Chunk{
		ID:         id.GetUuid(),
		Content:    content.GetStringValue(),
		Filename:   payload["filename"].GetStringValue(),
		PageNumber: int(payload["page_number"].GetIntegerValue()),
		ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
		ChunkType:  payload["chunk_type"].GetStringValue(),
		Tags:       tags,
	}, nil
}
