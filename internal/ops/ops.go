package ops

import (
	"database/sql"
	"log/slog"
	"strings"

	"github.com/hpungsan/readlater/internal/ai"
	"github.com/hpungsan/readlater/internal/auth"
	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/item"
	"github.com/hpungsan/readlater/internal/metrics"
	"github.com/hpungsan/readlater/internal/scrape"
)

// DefaultMapLimit is the link discovery bound when none is configured.
const DefaultMapLimit = 5

// Env carries the collaborators every operation needs.
// Surfaces (web, MCP, CLI) build one Env and share it.
type Env struct {
	DB         *sql.DB
	Scraper    scrape.Scraper
	Summarizer ai.Summarizer

	// Metrics may be nil
	Metrics *metrics.Metrics

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// MapLimit bounds link discovery; 0 means DefaultMapLimit
	MapLimit int
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Env) mapLimit() int {
	if e.MapLimit > 0 {
		return e.MapLimit
	}
	return DefaultMapLimit
}

// requireUser rejects calls without an authenticated identity.
func requireUser(id auth.Identity) error {
	if strings.TrimSpace(id.UserID) == "" {
		return errors.NewUnauthorized("sign in required")
	}
	return nil
}

// requireID validates an item id parameter.
func requireID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", errors.NewInvalidField("id", "is required")
	}
	return id, nil
}

// validateURL trims raw and checks it is an absolute http(s) URL.
func validateURL(field, raw string) (string, error) {
	url := strings.TrimSpace(raw)
	if reason := item.ValidateURL(url); reason != "" {
		return "", errors.NewInvalidField(field, reason)
	}
	return url, nil
}
