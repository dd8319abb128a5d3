package item

import "strings"

// StatusAll disables status filtering.
const StatusAll = "all"

// Filter narrows a list of items for presentation.
type Filter struct {
	// Query is matched case-insensitively against title and tags
	Query string

	// Status is an exact status or StatusAll / "" for no filtering
	Status string
}

// Matches reports whether the summary passes the filter.
func (s ItemSummary) Matches(f Filter) bool {
	if f.Status != "" && !strings.EqualFold(f.Status, StatusAll) && string(s.Status) != f.Status {
		return false
	}

	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	if s.Title != nil && strings.Contains(strings.ToLower(*s.Title), q) {
		return true
	}
	for _, tag := range s.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
