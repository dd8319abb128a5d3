package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/readlater/internal/auth"
	"github.com/hpungsan/readlater/internal/db"
	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/item"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Query  string // case-insensitive substring of title or any tag
	Status string // PROCESSING, COMPLETED, FAILED, or "all"/"" for every status
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items []item.ItemSummary `json:"items"`
	Total int                `json:"total"`
}

// List retrieves the caller's items newest first, filtered by query and status.
func List(ctx context.Context, env *Env, id auth.Identity, input ListInput) (*ListOutput, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}

	status := strings.TrimSpace(input.Status)
	if strings.EqualFold(status, item.StatusAll) {
		status = ""
	}
	if status != "" {
		status = strings.ToUpper(status)
		if !item.Status(status).Valid() {
			return nil, errors.NewInvalidField("status", "must be one of: all, PROCESSING, COMPLETED, FAILED")
		}
	}

	summaries, err := db.ListItems(ctx, env.DB, id.UserID, status)
	if err != nil {
		return nil, err
	}

	filter := item.Filter{Query: input.Query}
	items := make([]item.ItemSummary, 0, len(summaries))
	for _, s := range summaries {
		if s.Matches(filter) {
			items = append(items, s)
		}
	}

	return &ListOutput{Items: items, Total: len(items)}, nil
}
