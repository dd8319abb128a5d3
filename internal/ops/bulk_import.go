package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/readlater/internal/auth"
	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/item"
)

// BulkImportInput contains parameters for the BulkImport operation.
type BulkImportInput struct {
	URLs []string // required, every entry an absolute http(s) URL
}

// BulkImportResult is the outcome for one URL.
type BulkImportResult struct {
	ID     string      `json:"id"`
	URL    string      `json:"url"`
	Status item.Status `json:"status"`
}

// BulkImportOutput contains the result of the BulkImport operation.
type BulkImportOutput struct {
	Results   []BulkImportResult `json:"results"`
	Completed int                `json:"completed"`
	Failed    int                `json:"failed"`
}

// BulkImport ingests each URL in order, one at a time.
// The whole batch is validated before anything is stored. Any per-URL failure
// is recorded as FAILED and the batch moves on to the next URL.
func BulkImport(ctx context.Context, env *Env, id auth.Identity, input BulkImportInput) (*BulkImportOutput, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	if len(input.URLs) == 0 {
		return nil, errors.NewInvalidField("urls", "at least one URL is required")
	}

	urls := make([]string, len(input.URLs))
	for i, raw := range input.URLs {
		url, err := validateURL(fmt.Sprintf("urls[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		urls[i] = url
	}

	output := &BulkImportOutput{Results: make([]BulkImportResult, 0, len(urls))}
	for _, url := range urls {
		res, err := ingest(ctx, env, id, url)
		if err != nil {
			env.logger().Error("bulk import item failed", "url", url, "error", err)
			if res == nil {
				res = &ImportOutput{URL: url, Status: item.StatusFailed}
			}
		}
		output.Results = append(output.Results, BulkImportResult{ID: res.ID, URL: res.URL, Status: res.Status})
		if res.Status == item.StatusCompleted {
			output.Completed++
		} else {
			output.Failed++
		}
	}

	env.logger().Info("bulk import finished",
		"user_id", id.UserID, "completed", output.Completed, "failed", output.Failed)
	return output, nil
}
