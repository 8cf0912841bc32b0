package rag

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/config"
)

// ErrInvalidOptions is returned when request options fail validation.
// Validation happens before any pipeline stage runs.
var ErrInvalidOptions = errors.New("invalid options")

// QueryOptions are per-request overrides for Ask and SearchOnly. Nil fields
// fall back to the configured defaults.
type QueryOptions struct {
	TopK          *int
	SearchType    *string
	MinScore      *float64
	ContextLength *int
	Temperature   *float64
	MaxTokens     *int
	// Filename restricts retrieval to one document. Empty means no filter.
	Filename string
}

// IngestOptions control one document ingestion.
type IngestOptions struct {
	// ForceReprocess deletes the document's existing chunks first.
	ForceReprocess bool
	// Tags are attached to every chunk of the document.
	Tags []string
}

// settings is one fully resolved, validated parameter set.
type settings struct {
	TopK           int
	SearchType     string
	MinScore       float64
	ContextLength  int
	Temperature    float64
	MaxTokens      int
	SemanticWeight float64
	KeywordWeight  float64
	Filename       string
}

// resolve merges overrides onto the defaults field by field and validates
// the result against the hyperparameter ranges.
func resolve(defaults config.QueryConfig, opts QueryOptions) (settings, error) {
	s := settings{
		TopK:           defaults.TopK,
		SearchType:     defaults.SearchType,
		MinScore:       defaults.MinScore,
		ContextLength:  defaults.ContextLength,
		Temperature:    defaults.Temperature,
		MaxTokens:      defaults.MaxTokens,
		SemanticWeight: defaults.SemanticWeight,
		KeywordWeight:  defaults.KeywordWeight,
	}
	if opts.TopK != nil {
		s.TopK = *opts.TopK
	}
	if opts.SearchType != nil {
		s.SearchType = *opts.SearchType
	}
	if opts.MinScore != nil {
		s.MinScore = *opts.MinScore
	}
	if opts.ContextLength != nil {
		s.ContextLength = *opts.ContextLength
	}
	if opts.Temperature != nil {
		s.Temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		s.MaxTokens = *opts.MaxTokens
	}
	s.Filename = opts.Filename

	if err := s.validate(); err != nil {
		return settings{}, err
	}
	return s, nil
}

func (s settings) validate() error {
	if s.TopK < 1 || s.TopK > config.MaxTopK {
		return fmt.Errorf("%w: top_k must be in [1, %d], got %d", ErrInvalidOptions, config.MaxTopK, s.TopK)
	}
	if !config.ValidSearchType(s.SearchType) {
		return fmt.Errorf("%w: search_type must be semantic, keyword or hybrid, got %q", ErrInvalidOptions, s.SearchType)
	}
	if s.MinScore < 0 || s.MinScore > 1 {
		return fmt.Errorf("%w: min_score must be in [0, 1], got %g", ErrInvalidOptions, s.MinScore)
	}
	if s.ContextLength < config.MinContextLength || s.ContextLength > config.MaxContextLength {
		return fmt.Errorf("%w: context_length must be in [%d, %d], got %d",
			ErrInvalidOptions, config.MinContextLength, config.MaxContextLength, s.ContextLength)
	}
	if s.Temperature < 0 || s.Temperature > config.MaxTemperature {
		return fmt.Errorf("%w: temperature must be in [0, %g], got %g", ErrInvalidOptions, config.MaxTemperature, s.Temperature)
	}
	if s.MaxTokens < config.MinMaxTokens || s.MaxTokens > config.MaxMaxTokens {
		return fmt.Errorf("%w: max_tokens must be in [%d, %d], got %d",
			ErrInvalidOptions, config.MinMaxTokens, config.MaxMaxTokens, s.MaxTokens)
	}
	return nil
}
