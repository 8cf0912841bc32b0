package config

import (
	"fmt"
	"time"
)

// Query hyperparameter bounds. Per-request overrides are validated against
// the same limits as the configured defaults.
const (
	DefaultTopK = 5
	MaxTopK     = 20

	DefaultMinScore = 0.7

	DefaultContextLength = 4000
	MinContextLength     = 500
	MaxContextLength     = 8000

	DefaultTemperature = 0.7
	MaxTemperature     = 2.0

	DefaultMaxTokens = 500
	MinMaxTokens     = 100
	MaxMaxTokens     = 1000

	DefaultSearchType = "hybrid"

	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3
)

// Valid search types.
const (
	SearchTypeSemantic = "semantic"
	SearchTypeKeyword  = "keyword"
	SearchTypeHybrid   = "hybrid"
)

// Config is the complete service configuration, loaded once at startup and
// treated as immutable afterwards.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Server     ServerConfig     `koanf:"server"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Generation GenerationConfig `koanf:"generation"`
	Index      IndexConfig      `koanf:"index"`
	Chunking   ChunkingConfig   `koanf:"chunking"`
	Query      QueryConfig      `koanf:"query"`
}

// LoggingConfig selects log level and output encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ReadTimeout     Duration `koanf:"read_timeout"`
	WriteTimeout    Duration `koanf:"write_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Address returns the host:port listen address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	BaseURL      string   `koanf:"base_url"`
	APIKey       Secret   `koanf:"api_key"`
	Model        string   `koanf:"model"`
	Dimensions   int      `koanf:"dimensions"`
	BatchSize    int      `koanf:"batch_size"`
	MaxRetries   int      `koanf:"max_retries"`
	RetryBackoff Duration `koanf:"retry_backoff"`
	Timeout      Duration `koanf:"timeout"`
}

// GenerationConfig configures the chat completion provider.
type GenerationConfig struct {
	BaseURL string   `koanf:"base_url"`
	APIKey  Secret   `koanf:"api_key"`
	Model   string   `koanf:"model"`
	Timeout Duration `koanf:"timeout"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Backend    string        `koanf:"backend"`
	Collection string        `koanf:"collection"`
	VectorSize int           `koanf:"vector_size"`
	Qdrant     QdrantConfig  `koanf:"qdrant"`
	Chromem    ChromemConfig `koanf:"chromem"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// ChromemConfig holds settings for the embedded chromem backend.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// ChunkingConfig holds document chunking parameters.
type ChunkingConfig struct {
	MaxChunkSize int `koanf:"max_chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
	MinChunkSize int `koanf:"min_chunk_size"`
}

// QueryConfig holds the default query hyperparameters. Requests may override
// individual fields within the documented ranges.
type QueryConfig struct {
	TopK           int     `koanf:"top_k"`
	SearchType     string  `koanf:"search_type"`
	MinScore       float64 `koanf:"min_score"`
	ContextLength  int     `koanf:"context_length"`
	Temperature    float64 `koanf:"temperature"`
	MaxTokens      int     `koanf:"max_tokens"`
	SemanticWeight float64 `koanf:"semantic_weight"`
	KeywordWeight  float64 `koanf:"keyword_weight"`
}

// NewDefaultConfig returns a Config populated with working defaults for
// local development (embedded chromem index, localhost server).
func NewDefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero-valued fields. A zero value is indistinguishable
// from an unset field here, so an explicit `min_score: 0` or `temperature: 0`
// in the config file still yields the default; requests that need zero pass
// it through QueryOptions, whose pointer fields distinguish set from unset.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(120 * time.Second)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 16
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.RetryBackoff == 0 {
		cfg.Embedding.RetryBackoff = Duration(time.Second)
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = Duration(30 * time.Second)
	}

	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = Duration(60 * time.Second)
	}

	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "chromem"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "documents"
	}
	if cfg.Index.VectorSize == 0 {
		cfg.Index.VectorSize = cfg.Embedding.Dimensions
	}
	if cfg.Index.Qdrant.Host == "" {
		cfg.Index.Qdrant.Host = "localhost"
	}
	if cfg.Index.Qdrant.Port == 0 {
		cfg.Index.Qdrant.Port = 6334
	}
	if cfg.Index.Chromem.Path == "" {
		cfg.Index.Chromem.Path = "./data/chromem"
	}

	if cfg.Chunking.MaxChunkSize == 0 {
		cfg.Chunking.MaxChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}
	if cfg.Chunking.MinChunkSize == 0 {
		cfg.Chunking.MinChunkSize = 200
	}

	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = DefaultTopK
	}
	if cfg.Query.SearchType == "" {
		cfg.Query.SearchType = DefaultSearchType
	}
	if cfg.Query.MinScore == 0 {
		cfg.Query.MinScore = DefaultMinScore
	}
	if cfg.Query.ContextLength == 0 {
		cfg.Query.ContextLength = DefaultContextLength
	}
	if cfg.Query.Temperature == 0 {
		cfg.Query.Temperature = DefaultTemperature
	}
	if cfg.Query.MaxTokens == 0 {
		cfg.Query.MaxTokens = DefaultMaxTokens
	}
	if cfg.Query.SemanticWeight == 0 {
		cfg.Query.SemanticWeight = DefaultSemanticWeight
	}
	if cfg.Query.KeywordWeight == 0 {
		cfg.Query.KeywordWeight = DefaultKeywordWeight
	}
}

// ValidSearchType reports whether s names a supported search mode.
func ValidSearchType(s string) bool {
	switch s {
	case SearchTypeSemantic, SearchTypeKeyword, SearchTypeHybrid:
		return true
	}
	return false
}

// Validate checks the configuration for invalid or out-of-range values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}

	if c.Embedding.BatchSize < 1 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Embedding.MaxRetries < 1 {
		return fmt.Errorf("embedding.max_retries must be positive, got %d", c.Embedding.MaxRetries)
	}
	if c.Embedding.Dimensions < 1 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}

	switch c.Index.Backend {
	case "qdrant", "chromem", "memory":
	default:
		return fmt.Errorf("index.backend must be qdrant, chromem or memory, got %q", c.Index.Backend)
	}
	if c.Index.Collection == "" {
		return fmt.Errorf("index.collection must not be empty")
	}
	if c.Index.VectorSize < 1 {
		return fmt.Errorf("index.vector_size must be positive, got %d", c.Index.VectorSize)
	}
	if c.Index.Backend == "qdrant" {
		if c.Index.Qdrant.Host == "" {
			return fmt.Errorf("index.qdrant.host must not be empty")
		}
		if c.Index.Qdrant.Port < 1 || c.Index.Qdrant.Port > 65535 {
			return fmt.Errorf("index.qdrant.port must be in [1, 65535], got %d", c.Index.Qdrant.Port)
		}
	}
	if c.Index.Backend == "chromem" && c.Index.Chromem.Path == "" {
		return fmt.Errorf("index.chromem.path must not be empty")
	}

	if c.Chunking.MaxChunkSize < 1 {
		return fmt.Errorf("chunking.max_chunk_size must be positive, got %d", c.Chunking.MaxChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.MaxChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, max_chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.MinChunkSize < 0 || c.Chunking.MinChunkSize > c.Chunking.MaxChunkSize {
		return fmt.Errorf("chunking.min_chunk_size must be in [0, max_chunk_size], got %d", c.Chunking.MinChunkSize)
	}

	if err := c.Query.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the query defaults against the hyperparameter ranges.
func (q QueryConfig) Validate() error {
	if q.TopK < 1 || q.TopK > MaxTopK {
		return fmt.Errorf("query.top_k must be in [1, %d], got %d", MaxTopK, q.TopK)
	}
	if !ValidSearchType(q.SearchType) {
		return fmt.Errorf("query.search_type must be semantic, keyword or hybrid, got %q", q.SearchType)
	}
	if q.MinScore < 0 || q.MinScore > 1 {
		return fmt.Errorf("query.min_score must be in [0, 1], got %g", q.MinScore)
	}
	if q.ContextLength < MinContextLength || q.ContextLength > MaxContextLength {
		return fmt.Errorf("query.context_length must be in [%d, %d], got %d", MinContextLength, MaxContextLength, q.ContextLength)
	}
	if q.Temperature < 0 || q.Temperature > MaxTemperature {
		return fmt.Errorf("query.temperature must be in [0, %g], got %g", MaxTemperature, q.Temperature)
	}
	if q.MaxTokens < MinMaxTokens || q.MaxTokens > MaxMaxTokens {
		return fmt.Errorf("query.max_tokens must be in [%d, %d], got %d", MinMaxTokens, MaxMaxTokens, q.MaxTokens)
	}
	if q.SemanticWeight < 0 || q.KeywordWeight < 0 {
		return fmt.Errorf("query fusion weights must be non-negative")
	}
	if q.SemanticWeight+q.KeywordWeight == 0 {
		return fmt.Errorf("query fusion weights must not both be zero")
	}
	return nil
}
