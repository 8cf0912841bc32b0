package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/generate"
	"github.com/fyrsmithlabs/ragd/internal/index"
	"github.com/fyrsmithlabs/ragd/internal/rag"
)

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
}

// SearchRequest is the body for POST /api/v1/search.
type SearchRequest struct {
	Query      string   `json:"query"`
	TopK       *int     `json:"top_k,omitempty"`
	SearchType *string  `json:"search_type,omitempty"`
	MinScore   *float64 `json:"min_score,omitempty"`
	Filename   string   `json:"filename,omitempty"`
}

// SearchResultItem is one hit in a SearchResponse.
type SearchResultItem struct {
	Content    string   `json:"content"`
	Filename   string   `json:"filename"`
	PageNumber int      `json:"page_number"`
	ChunkIndex int      `json:"chunk_index"`
	ChunkType  string   `json:"chunk_type"`
	Tags       []string `json:"tags,omitempty"`
	Score      float64  `json:"score"`
}

// SearchResponse is the body for POST /api/v1/search.
type SearchResponse struct {
	Results      []SearchResultItem `json:"results"`
	TotalResults int                `json:"total_results"`
	SearchTime   float64            `json:"search_time"`
	SearchType   string             `json:"search_type"`
}

// AskRequest is the body for POST /api/v1/ask.
type AskRequest struct {
	Question      string   `json:"question"`
	TopK          *int     `json:"top_k,omitempty"`
	SearchType    *string  `json:"search_type,omitempty"`
	MinScore      *float64 `json:"min_score,omitempty"`
	ContextLength *int     `json:"context_length,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
}

// AskResponse is the body for POST /api/v1/ask.
type AskResponse struct {
	Answer             string            `json:"answer"`
	Sources            []generate.Source `json:"sources"`
	Confidence         float64           `json:"confidence"`
	ProcessingTime     float64           `json:"processing_time"`
	SearchResultsCount int               `json:"search_results_count"`
	ContextLength      int               `json:"context_length"`
	SearchType         string            `json:"search_type"`
}

// IngestRequest is the body for POST /api/v1/documents. Text is extracted
// document text, with page markers where pagination is known.
type IngestRequest struct {
	Filename       string   `json:"filename"`
	Text           string   `json:"text"`
	Tags           []string `json:"tags,omitempty"`
	ForceReprocess bool     `json:"force_reprocess,omitempty"`
}

// IngestResponse is the body for POST /api/v1/documents.
type IngestResponse struct {
	Filename       string  `json:"filename"`
	ChunkCount     int     `json:"chunk_count"`
	ProcessingTime float64 `json:"processing_time"`
}

// ErrorResponse is the body for every error status.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c echo.Context) error {
	count, err := s.svc.DocumentCount(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "index unavailable"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", ChunkCount: count})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.svc.SearchOnly(c.Request().Context(), req.Query, rag.QueryOptions{
		TopK:       req.TopK,
		SearchType: req.SearchType,
		MinScore:   req.MinScore,
		Filename:   req.Filename,
	})
	if err != nil {
		return s.errorResponse(c, err)
	}

	items := make([]SearchResultItem, len(res.Results))
	for i, r := range res.Results {
		items[i] = SearchResultItem{
			Content:    r.Chunk.Content,
			Filename:   r.Chunk.Filename,
			PageNumber: r.Chunk.PageNumber,
			ChunkIndex: r.Chunk.ChunkIndex,
			ChunkType:  r.Chunk.ChunkType,
			Tags:       r.Chunk.Tags,
			Score:      r.Score,
		}
	}
	return c.JSON(http.StatusOK, SearchResponse{
		Results:      items,
		TotalResults: res.TotalResults,
		SearchTime:   res.SearchTime.Seconds(),
		SearchType:   res.SearchType,
	})
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.svc.Ask(c.Request().Context(), req.Question, rag.QueryOptions{
		TopK:          req.TopK,
		SearchType:    req.SearchType,
		MinScore:      req.MinScore,
		ContextLength: req.ContextLength,
		Temperature:   req.Temperature,
		MaxTokens:     req.MaxTokens,
	})
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, AskResponse{
		Answer:             res.Answer,
		Sources:            res.Sources,
		Confidence:         res.Confidence,
		ProcessingTime:     res.ProcessingTime.Seconds(),
		SearchResultsCount: res.SearchResultsCount,
		ContextLength:      res.ContextLength,
		SearchType:         res.SearchType,
	})
}

func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.svc.Ingest(c.Request().Context(), chunker.Document{
		Filename: req.Filename,
		Text:     req.Text,
	}, rag.IngestOptions{
		ForceReprocess: req.ForceReprocess,
		Tags:           req.Tags,
	})
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, IngestResponse{
		Filename:       res.Filename,
		ChunkCount:     res.ChunkCount,
		ProcessingTime: res.ProcessingTime.Seconds(),
	})
}

func (s *Server) handleDelete(c echo.Context) error {
	filename := c.Param("filename")
	if err := s.svc.DeleteDocument(c.Request().Context(), filename); err != nil {
		return s.errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// errorResponse maps pipeline errors to HTTP statuses: caller mistakes are
// 400, backend unavailability is 502, anything else 500.
func (s *Server) errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, rag.ErrInvalidOptions),
		errors.Is(err, chunker.ErrEmptyInput),
		errors.Is(err, chunker.ErrInvalidConfig):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, index.ErrUnavailable):
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
