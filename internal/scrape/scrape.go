// Package scrape turns a URL into markdown plus page metadata, and discovers
// links on a site. Two providers exist: the hosted Firecrawl API and a local
// fetcher built on go-readability.
package scrape

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hpungsan/readlater/internal/config"
)

// Output formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// ExtractPrompt asks the provider for the structured author/date fields.
const ExtractPrompt = "Please extract author and publishedAt timestamp"

// Options controls a single scrape.
type Options struct {
	Formats         []string
	OnlyMainContent bool
}

// DefaultOptions is markdown plus structured extraction of the main content.
func DefaultOptions() Options {
	return Options{
		Formats:         []string{FormatMarkdown, FormatJSON},
		OnlyMainContent: true,
	}
}

// Metadata is page-level metadata.
type Metadata struct {
	Title   string `json:"title"`
	OGImage string `json:"ogImage"`
}

// Extracted holds the structured fields. Either may be absent.
type Extracted struct {
	Author      *string `json:"author"`
	PublishedAt *string `json:"publishedAt"`
}

// UnmarshalJSON keeps string values only; providers sometimes return
// arrays or objects for these fields.
func (e *Extracted) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Author = stringField(raw, "author")
	e.PublishedAt = stringField(raw, "publishedAt")
	return nil
}

func stringField(m map[string]any, key string) *string {
	s, ok := m[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Result is the outcome of a successful scrape.
type Result struct {
	Markdown string
	Metadata Metadata
	JSON     Extracted
}

// Link is one discovered URL.
type Link struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// MapOptions bounds link discovery.
type MapOptions struct {
	Limit  int
	Search string
}

// Scraper is the scrape provider.
type Scraper interface {
	Scrape(ctx context.Context, url string, opts Options) (*Result, error)
	Map(ctx context.Context, url string, opts MapOptions) ([]Link, error)
}

// New returns the provider selected by cfg.
func New(cfg *config.Config) Scraper {
	if cfg.Provider() == config.ProviderFirecrawl {
		return NewFirecrawlClient(cfg.FirecrawlEndpoint, cfg.FirecrawlAPIKey, cfg.ScrapeTimeout())
	}
	var opts []LocalOption
	if !cfg.LoopbackBind() {
		opts = append(opts, WithPrivateAddressBlocking())
	}
	return NewLocalScraper(cfg.ScrapeTimeout(), opts...)
}

func hasFormat(opts Options, format string) bool {
	for _, f := range opts.Formats {
		if f == format {
			return true
		}
	}
	return false
}
