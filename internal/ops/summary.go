package ops

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/hpungsan/readlater/internal/auth"
	"github.com/hpungsan/readlater/internal/db"
	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/item"
	"github.com/hpungsan/readlater/internal/metrics"
)

// StreamSummaryInput contains parameters for the StreamSummary operation.
type StreamSummaryInput struct {
	ID string // required
}

// StreamSummary streams a summary of the item's stored content into w.
// Nothing is persisted; the caller saves the final text with SaveSummary.
func StreamSummary(ctx context.Context, env *Env, id auth.Identity, input StreamSummaryInput, w io.Writer) error {
	if err := requireUser(id); err != nil {
		return err
	}
	itemID, err := requireID(input.ID)
	if err != nil {
		return err
	}

	it, err := db.GetItem(ctx, env.DB, id.UserID, itemID)
	if err != nil {
		return err
	}
	if !hasContent(it) {
		return errNoContent()
	}

	if err := env.Summarizer.StreamSummary(ctx, *it.Content, w); err != nil {
		env.Metrics.ObserveSummary(metrics.OutcomeError)
		env.logger().Error("summary stream failed", "item_id", itemID, "error", err)
		return errors.NewUpstream("ai", err)
	}
	env.Metrics.ObserveSummary(metrics.OutcomeStreamed)
	return nil
}

// SaveSummaryInput contains parameters for the SaveSummary operation.
type SaveSummaryInput struct {
	ID      string // required
	Summary string // required, the final summary text
}

// SaveSummary derives tags from the summary and stores both.
// If tag extraction fails nothing is written.
func SaveSummary(ctx context.Context, env *Env, id auth.Identity, input SaveSummaryInput) (*item.Item, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	itemID, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}
	summary := strings.TrimSpace(input.Summary)
	if summary == "" {
		return nil, errors.NewInvalidField("summary", "is required")
	}

	it, err := db.GetItem(ctx, env.DB, id.UserID, itemID)
	if err != nil {
		return nil, err
	}
	if !hasContent(it) {
		return nil, errNoContent()
	}

	raw, err := env.Summarizer.ExtractTags(ctx, summary)
	if err != nil {
		env.Metrics.ObserveSummary(metrics.OutcomeError)
		env.logger().Error("tag extraction failed", "item_id", itemID, "error", err)
		return nil, errors.NewUpstream("ai", err)
	}
	tags := item.ParseTags(raw)

	if err := db.SaveSummary(ctx, env.DB, id.UserID, itemID, summary, tags, time.Now().Unix()); err != nil {
		return nil, err
	}
	env.Metrics.ObserveSummary(metrics.OutcomeSaved)

	return db.GetItem(ctx, env.DB, id.UserID, itemID)
}

// hasContent reports whether the item has non-blank content to summarize.
func hasContent(it *item.Item) bool {
	return it.Content != nil && strings.TrimSpace(*it.Content) != ""
}

func errNoContent() error {
	return errors.NewInvalidRequest("item has no content to summarize")
}
