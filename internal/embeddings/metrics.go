package embeddings

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ragd",
		Subsystem: "embeddings",
		Name:      "requests_total",
		Help:      "Embedding API requests by operation and outcome.",
	}, []string{"operation", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ragd",
		Subsystem: "embeddings",
		Name:      "request_duration_seconds",
		Help:      "Embedding API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	textsPerCall = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ragd",
		Subsystem: "embeddings",
		Name:      "texts_per_call",
		Help:      "Number of texts embedded per EmbedDocuments call.",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	})
)
