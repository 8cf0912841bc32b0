package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/logging"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// fakeProvider serves an OpenAI-compatible embeddings endpoint. Each vector
// encodes the input's global sequence so tests can verify ordering.
type fakeProvider struct {
	srv      *httptest.Server
	calls    atomic.Int64
	failures atomic.Int64
	// failFirst makes the first N requests return failStatus.
	failFirst  int64
	failStatus int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{failStatus: http.StatusInternalServerError}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		call := f.calls.Add(1)
		if call <= f.failFirst {
			f.failures.Add(1)
			w.WriteHeader(f.failStatus)
			fmt.Fprint(w, `{"error": {"message": "upstream failure", "type": "server_error"}}`)
			return
		}

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(text)), float64(i)},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		}))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func newTestService(t *testing.T, f *fakeProvider, cfg Config) *Service {
	t.Helper()
	cfg.BaseURL = f.srv.URL + "/v1/"
	cfg.APIKey = "test-key"
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	svc, err := NewService(cfg, logging.NewNop())
	require.NoError(t, err)
	return svc
}

func TestEmbedDocuments_PreservesOrderAcrossBatches(t *testing.T) {
	f := newFakeProvider(t)
	svc := newTestService(t, f, Config{BatchSize: 2})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := svc.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, text := range texts {
		require.Len(t, vectors[i], 2)
		assert.Equal(t, float32(len(text)), vectors[i][0], "vector %d out of order", i)
	}
	// 5 inputs at batch size 2 means 3 requests.
	assert.Equal(t, int64(3), f.calls.Load())
}

func TestEmbedDocuments_EmptyInput(t *testing.T) {
	f := newFakeProvider(t)
	svc := newTestService(t, f, Config{})

	_, err := svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, f.calls.Load())
}

func TestEmbedDocuments_RetriesTransientFailures(t *testing.T) {
	f := newFakeProvider(t)
	f.failFirst = 2
	svc := newTestService(t, f, Config{MaxRetries: 3})

	vectors, err := svc.EmbedDocuments(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, int64(3), f.calls.Load())
}

func TestEmbedDocuments_RetriesExhausted(t *testing.T) {
	f := newFakeProvider(t)
	f.failFirst = 100
	svc := newTestService(t, f, Config{MaxRetries: 3})

	_, err := svc.EmbedDocuments(context.Background(), []string{"hello", "world"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []int{0, 1}, batchErr.Indices)
	assert.Equal(t, int64(3), f.calls.Load())
}

func TestEmbedDocuments_NoRetryOnClientError(t *testing.T) {
	f := newFakeProvider(t)
	f.failFirst = 100
	f.failStatus = http.StatusBadRequest
	svc := newTestService(t, f, Config{MaxRetries: 3})

	_, err := svc.EmbedDocuments(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Equal(t, int64(1), f.calls.Load())
}

func TestEmbedDocuments_DimensionMismatch(t *testing.T) {
	f := newFakeProvider(t)
	svc := newTestService(t, f, Config{Dimensions: 1536})

	_, err := svc.EmbedDocuments(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestEmbedQuery(t *testing.T) {
	f := newFakeProvider(t)
	svc := newTestService(t, f, Config{})

	vec, err := svc.EmbedQuery(context.Background(), "what is a vector index")
	require.NoError(t, err)
	require.Len(t, vec, 2)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
