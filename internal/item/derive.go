package item

import (
	"net/url"
	"strings"

	"github.com/araddon/dateparse"
)

// MaxTags is the most tags kept from a tag extraction.
const MaxTags = 5

// ParseTags turns a comma-separated model response into tags:
// split on commas, trim, lowercase, drop empties, keep the first MaxTags.
func ParseTags(raw string) []string {
	tags := make([]string, 0, MaxTags)
	for _, part := range strings.Split(raw, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}

// ParsePublishedAt interprets a scraped publication date.
// Returns nil for empty, unparseable or yearless input; a valid date yields its Unix time.
func ParsePublishedAt(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseAny(raw)
	// Partial dates such as "12/31" parse with year 0.
	if err != nil || t.Year() < 1 {
		return nil
	}
	unix := t.Unix()
	return &unix
}

// ValidateURL checks that raw is an absolute http(s) URL with a host.
// Returns a short reason, or "" when valid.
func ValidateURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "is required"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "is not a valid URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "must use http or https"
	}
	if u.Host == "" {
		return "must include a host"
	}
	return ""
}

// NullIfEmpty returns nil for blank strings, else a pointer to s.
// Scraped fields use it so that "" is stored as NULL.
func NullIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
