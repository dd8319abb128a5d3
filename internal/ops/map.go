package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/readlater/internal/auth"
	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/scrape"
)

// MapInput contains parameters for the MapLinks operation.
type MapInput struct {
	URL    string // required
	Search string // optional phrase to rank/filter links by
}

// MapOutput contains the result of the MapLinks operation.
type MapOutput struct {
	Links []scrape.Link `json:"links"`
}

// MapLinks discovers up to Env.MapLimit URLs on a site. Nothing is stored.
func MapLinks(ctx context.Context, env *Env, id auth.Identity, input MapInput) (*MapOutput, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	url, err := validateURL("url", input.URL)
	if err != nil {
		return nil, err
	}

	limit := env.mapLimit()
	links, err := env.Scraper.Map(ctx, url, scrape.MapOptions{
		Limit:  limit,
		Search: strings.TrimSpace(input.Search),
	})
	if err != nil {
		env.logger().Warn("map failed", "url", url, "error", err)
		return nil, errors.NewUpstream("scrape", err)
	}

	if links == nil {
		links = []scrape.Link{}
	}
	if len(links) > limit {
		links = links[:limit]
	}
	return &MapOutput{Links: links}, nil
}
