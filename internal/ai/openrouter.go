package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultTimeout = 2 * time.Minute

// OpenRouterClient is a Summarizer backed by any OpenAI-compatible endpoint.
type OpenRouterClient struct {
	client     *openai.Client
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures an OpenRouterClient.
type Option func(*OpenRouterClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *OpenRouterClient) {
		o.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *OpenRouterClient) {
		o.logger = logger
	}
}

// NewOpenRouterClient creates a client for baseURL (e.g. https://openrouter.ai/api/v1).
func NewOpenRouterClient(baseURL, apiKey, model string, opts ...Option) *OpenRouterClient {
	c := &OpenRouterClient{
		model:      model,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = c.httpClient
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

type flusher interface {
	Flush()
}

// StreamSummary streams the summary tokens into w, flushing after each chunk
// when w supports it.
func (c *OpenRouterClient) StreamSummary(ctx context.Context, content string, w io.Writer) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SummarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: summaryPrompt(content)},
		},
		Stream: true,
	})
	if err != nil {
		return fmt.Errorf("start summary stream: %w", err)
	}
	defer stream.Close()

	f, canFlush := w.(flusher)
	written := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("summary stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		n, err := io.WriteString(w, chunk)
		written += n
		if err != nil {
			return fmt.Errorf("write summary chunk: %w", err)
		}
		if canFlush {
			f.Flush()
		}
	}

	c.logger.Debug("summary streamed", "model", c.model, "bytes", written)
	return nil
}

// ExtractTags asks the model for a comma-separated tag list.
func (c *OpenRouterClient) ExtractTags(ctx context.Context, summary string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: TagsSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: tagsPrompt(summary)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("extract tags: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("extract tags: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
