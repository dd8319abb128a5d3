package ops

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/readlater/internal/auth"
	"github.com/hpungsan/readlater/internal/db"
	"github.com/hpungsan/readlater/internal/item"
	"github.com/hpungsan/readlater/internal/scrape"
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	URL string // required, absolute http(s)
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	ID     string      `json:"id"`
	URL    string      `json:"url"`
	Status item.Status `json:"status"`

	// Item is the stored item after a successful scrape; nil when the scrape failed.
	Item *item.Item `json:"item,omitempty"`
}

// Import creates an item for the URL and scrapes it.
// A scrape failure is not an error: the item ends FAILED and Item is nil.
// Failing to store the scraped content also ends FAILED. Only errors that
// leave no terminal status written are returned.
func Import(ctx context.Context, env *Env, id auth.Identity, input ImportInput) (*ImportOutput, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	url, err := validateURL("url", input.URL)
	if err != nil {
		return nil, err
	}
	out, err := ingest(ctx, env, id, url)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ingest runs the PROCESSING -> COMPLETED|FAILED lifecycle for one URL.
func ingest(ctx context.Context, env *Env, id auth.Identity, url string) (*ImportOutput, error) {
	now := time.Now().Unix()
	it := &item.Item{
		ID:        ulid.Make().String(),
		UserID:    id.UserID,
		URL:       url,
		Status:    item.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.InsertItem(ctx, env.DB, it); err != nil {
		return nil, err
	}

	start := time.Now()
	res, scrapeErr := env.Scraper.Scrape(ctx, url, scrape.DefaultOptions())
	env.Metrics.ObserveScrape(time.Since(start))

	// The terminal write must land even if the caller went away mid-scrape.
	finalCtx := context.WithoutCancel(ctx)

	if scrapeErr != nil {
		env.logger().Error("scrape failed", "item_id", it.ID, "url", url, "error", scrapeErr)
		return markFailed(finalCtx, env, id, it.ID, url)
	}

	fields := scrapeFields(res)
	if err := db.CompleteScrape(finalCtx, env.DB, id.UserID, it.ID, fields, time.Now().Unix()); err != nil {
		env.logger().Error("store scraped content failed", "item_id", it.ID, "url", url, "error", err)
		return markFailed(finalCtx, env, id, it.ID, url)
	}
	env.Metrics.ObserveIngest(string(item.StatusCompleted))

	out := &ImportOutput{ID: it.ID, URL: url, Status: item.StatusCompleted}
	stored, err := db.GetItem(finalCtx, env.DB, id.UserID, it.ID)
	if err != nil {
		return out, err
	}
	out.Item = stored
	env.logger().Debug("item imported", "item_id", it.ID, "url", url)
	return out, nil
}

// markFailed moves the item to FAILED. The output is returned even when that
// write fails so callers still know which item was created.
func markFailed(ctx context.Context, env *Env, id auth.Identity, itemID, url string) (*ImportOutput, error) {
	out := &ImportOutput{ID: itemID, URL: url, Status: item.StatusFailed}
	if err := db.FailScrape(ctx, env.DB, id.UserID, itemID, time.Now().Unix()); err != nil {
		return out, err
	}
	env.Metrics.ObserveIngest(string(item.StatusFailed))
	return out, nil
}

// scrapeFields maps a scrape result to stored fields. Content is always set on
// success (possibly empty); other blank values become NULL.
func scrapeFields(res *scrape.Result) item.ScrapeFields {
	content := res.Markdown
	fields := item.ScrapeFields{
		Title:   item.NullIfEmpty(res.Metadata.Title),
		Content: &content,
		OGImage: item.NullIfEmpty(res.Metadata.OGImage),
	}
	if res.JSON.Author != nil {
		fields.Author = item.NullIfEmpty(strings.TrimSpace(*res.JSON.Author))
	}
	if res.JSON.PublishedAt != nil {
		fields.PublishedAt = item.ParsePublishedAt(*res.JSON.PublishedAt)
	}
	return fields
}
