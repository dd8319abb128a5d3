package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 512

// FirecrawlClient talks to the Firecrawl v2 REST API.
type FirecrawlClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewFirecrawlClient creates a client for endpoint (e.g. https://api.firecrawl.dev).
func NewFirecrawlClient(endpoint, apiKey string, timeout time.Duration) *FirecrawlClient {
	return &FirecrawlClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type firecrawlFormat struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt,omitempty"`
}

type firecrawlScrapeRequest struct {
	URL             string `json:"url"`
	Formats         []any  `json:"formats"`
	OnlyMainContent bool   `json:"onlyMainContent"`
}

type firecrawlScrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string          `json:"markdown"`
		Metadata Metadata        `json:"metadata"`
		JSON     json.RawMessage `json:"json"`
	} `json:"data"`
}

type firecrawlMapRequest struct {
	URL    string `json:"url"`
	Limit  int    `json:"limit,omitempty"`
	Search string `json:"search,omitempty"`
}

type firecrawlMapResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Links   []Link `json:"links"`
}

// Scrape fetches one page as markdown with optional structured extraction.
func (c *FirecrawlClient) Scrape(ctx context.Context, url string, opts Options) (*Result, error) {
	req := firecrawlScrapeRequest{URL: url, OnlyMainContent: opts.OnlyMainContent}
	for _, f := range opts.Formats {
		if f == FormatJSON {
			req.Formats = append(req.Formats, firecrawlFormat{Type: FormatJSON, Prompt: ExtractPrompt})
			continue
		}
		req.Formats = append(req.Formats, f)
	}

	var resp firecrawlScrapeResponse
	if err := c.post(ctx, "/v2/scrape", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("firecrawl scrape: %s", nonEmpty(resp.Error, "unsuccessful response"))
	}

	result := &Result{
		Markdown: resp.Data.Markdown,
		Metadata: resp.Data.Metadata,
	}
	if len(resp.Data.JSON) > 0 && string(resp.Data.JSON) != "null" {
		if err := json.Unmarshal(resp.Data.JSON, &result.JSON); err != nil {
			return nil, fmt.Errorf("firecrawl scrape: decode json extraction: %w", err)
		}
	}
	return result, nil
}

// Map lists URLs on the site rooted at url.
func (c *FirecrawlClient) Map(ctx context.Context, url string, opts MapOptions) ([]Link, error) {
	var resp firecrawlMapResponse
	req := firecrawlMapRequest{URL: url, Limit: opts.Limit, Search: opts.Search}
	if err := c.post(ctx, "/v2/map", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("firecrawl map: %s", nonEmpty(resp.Error, "unsuccessful response"))
	}

	links := resp.Links
	if links == nil {
		links = []Link{}
	}
	if opts.Limit > 0 && len(links) > opts.Limit {
		links = links[:opts.Limit]
	}
	return links, nil
}

func (c *FirecrawlClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("firecrawl %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("firecrawl %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("firecrawl %s: decode response: %w", path, err)
	}
	return nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
