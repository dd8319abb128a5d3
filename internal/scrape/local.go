package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const (
	defaultUserAgent    = "readlater/1.0 (+https://github.com/hpungsan/readlater)"
	defaultMaxPageBytes = 5 << 20
	maxRedirects        = 5
)

// LocalScraper fetches pages directly and extracts the article in-process.
// It needs no API key.
type LocalScraper struct {
	client       *http.Client
	userAgent    string
	maxPageBytes int64
	converter    *Converter
}

// LocalOption configures a LocalScraper.
type LocalOption func(*LocalScraper)

// WithPrivateAddressBlocking refuses connections to loopback, private and
// link-local addresses. Enable it whenever the server is reachable from
// other hosts.
func WithPrivateAddressBlocking() LocalOption {
	return func(s *LocalScraper) {
		dialer := &net.Dialer{Timeout: 30 * time.Second, Control: denyPrivateDial}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nil
		transport.DialContext = dialer.DialContext
		s.client.Transport = transport
	}
}

// NewLocalScraper creates a scraper whose requests are bounded by timeout.
func NewLocalScraper(timeout time.Duration, opts ...LocalOption) *LocalScraper {
	s := &LocalScraper{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (max %d)", maxRedirects)
				}
				return nil
			},
		},
		userAgent:    defaultUserAgent,
		maxPageBytes: defaultMaxPageBytes,
		converter:    NewConverter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape fetches url and returns its main content as markdown.
func (s *LocalScraper) Scrape(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	page, pageURL, err := s.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	result := &Result{}
	result.Metadata.Title = metaContent(doc, `meta[property="og:title"]`)
	result.Metadata.OGImage = absoluteURL(pageURL, metaContent(doc, `meta[property="og:image"]`))

	body := string(page)
	parser := readability.NewParser()
	article, readErr := parser.Parse(bytes.NewReader(page), pageURL)
	if readErr == nil {
		if result.Metadata.Title == "" {
			result.Metadata.Title = strings.TrimSpace(article.Title)
		}
		if result.Metadata.OGImage == "" {
			result.Metadata.OGImage = article.Image
		}
		if opts.OnlyMainContent && strings.TrimSpace(article.Content) != "" {
			body = article.Content
		}
	}
	if result.Metadata.Title == "" {
		result.Metadata.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if hasFormat(opts, FormatMarkdown) {
		md, err := s.converter.Convert(body)
		if err != nil {
			return nil, fmt.Errorf("convert to markdown: %w", err)
		}
		result.Markdown = md
	}

	if hasFormat(opts, FormatJSON) {
		author := metaContent(doc, `meta[name="author"]`)
		if author == "" && readErr == nil {
			author = strings.TrimSpace(article.Byline)
		}
		published := metaContent(doc, `meta[property="article:published_time"]`)
		if published == "" {
			published = strings.TrimSpace(doc.Find("time[datetime]").First().AttrOr("datetime", ""))
		}
		if published == "" && readErr == nil && article.PublishedTime != nil {
			published = article.PublishedTime.Format(time.RFC3339)
		}
		if author != "" {
			result.JSON.Author = &author
		}
		if published != "" {
			result.JSON.PublishedAt = &published
		}
	}

	return result, nil
}

// Map returns same-host links found on the page, filtered by search and bounded by limit.
func (s *LocalScraper) Map(ctx context.Context, rawURL string, opts MapOptions) ([]Link, error) {
	page, pageURL, err := s.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	search := strings.ToLower(strings.TrimSpace(opts.Search))
	seen := make(map[string]bool)
	links := make([]Link, 0)

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if opts.Limit > 0 && len(links) >= opts.Limit {
			return false
		}
		href, _ := a.Attr("href")
		u, err := pageURL.Parse(strings.TrimSpace(href))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host != pageURL.Host {
			return true
		}
		u.Fragment = ""
		target := u.String()
		if seen[target] {
			return true
		}

		text := strings.Join(strings.Fields(a.Text()), " ")
		if search != "" &&
			!strings.Contains(strings.ToLower(target), search) &&
			!strings.Contains(strings.ToLower(text), search) {
			return true
		}

		seen[target] = true
		links = append(links, Link{
			URL:         target,
			Title:       text,
			Description: strings.TrimSpace(a.AttrOr("title", "")),
		})
		return true
	})

	return links, nil
}

// fetch GETs rawURL with a size cap. Returns the body and the final URL after redirects.
func (s *LocalScraper) fetch(ctx context.Context, rawURL string) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxPageBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > s.maxPageBytes {
		return nil, nil, fmt.Errorf("content too large (exceeds %d bytes)", s.maxPageBytes)
	}

	return body, resp.Request.URL, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

func absoluteURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
