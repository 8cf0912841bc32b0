package generate

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// CompletionResponse carries the answer text and token usage.
type CompletionResponse struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// CompletionClient is the capability interface over the LLM provider.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// ClientConfig configures the OpenAI-compatible completion client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// RetryBackoff is the pause before the single transient-failure retry.
	RetryBackoff time.Duration
	// Timeout bounds a single API request. Zero uses the provider default.
	Timeout time.Duration
}

// ApplyDefaults fills zero values.
func (c *ClientConfig) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
}

// OpenAIClient is a CompletionClient backed by an OpenAI-compatible chat
// completions API.
type OpenAIClient struct {
	cfg    ClientConfig
	client openai.Client
}

// NewOpenAIClient creates the client.
func NewOpenAIClient(cfg ClientConfig) *OpenAIClient {
	cfg.ApplyDefaults()

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIClient{
		cfg:    cfg,
		client: openai.NewClient(opts...),
	}
}

// Complete runs one chat completion. Rate limits, server errors and network
// failures get exactly one retry; client errors none.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := c.call(ctx, req)
	if err != nil && isTransient(err) {
		select {
		case <-ctx.Done():
			return CompletionResponse{}, ctx.Err()
		case <-time.After(c.cfg.RetryBackoff):
		}
		resp, err = c.call(ctx, req)
	}
	return resp, err
}

func (c *OpenAIClient) call(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	chat, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Model:       openai.ChatModel(c.cfg.Model),
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	})
	if err != nil {
		return CompletionResponse{}, err
	}
	if len(chat.Choices) == 0 {
		return CompletionResponse{}, errors.New("provider returned no choices")
	}
	return CompletionResponse{
		Text:             chat.Choices[0].Message.Content,
		PromptTokens:     int(chat.Usage.PromptTokens),
		CompletionTokens: int(chat.Usage.CompletionTokens),
	}, nil
}

func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
