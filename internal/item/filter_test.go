package item

import "testing"

func stringPtr(s string) *string { return &s }

func TestItemSummary_Matches(t *testing.T) {
	s := ItemSummary{
		ID:     "01A",
		Status: StatusCompleted,
		Title:  stringPtr("Understanding Go Generics"),
		Tags:   []string{"programming", "golang"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"status all", Filter{Status: "all"}, true},
		{"status ALL is case-insensitive", Filter{Status: "ALL"}, true},
		{"status match", Filter{Status: "COMPLETED"}, true},
		{"status mismatch", Filter{Status: "FAILED"}, false},
		{"title substring", Filter{Query: "generics"}, true},
		{"title case-insensitive", Filter{Query: "GO GEN"}, true},
		{"tag substring", Filter{Query: "lang"}, true},
		{"no match", Filter{Query: "rust"}, false},
		{"query and status", Filter{Query: "golang", Status: "COMPLETED"}, true},
		{"query ok status not", Filter{Query: "golang", Status: "PROCESSING"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Matches(tt.filter); got != tt.want {
				t.Errorf("Matches(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestItemSummary_MatchesNilTitle(t *testing.T) {
	s := ItemSummary{Status: StatusProcessing}
	if s.Matches(Filter{Query: "anything"}) {
		t.Error("item without title or tags should not match a query")
	}
	if !s.Matches(Filter{Status: "PROCESSING"}) {
		t.Error("status-only filter should match")
	}
}

func TestStatus(t *testing.T) {
	if !StatusProcessing.Valid() || !StatusCompleted.Valid() || !StatusFailed.Valid() {
		t.Error("known statuses should be valid")
	}
	if Status("DONE").Valid() {
		t.Error("unknown status should be invalid")
	}
	if StatusProcessing.IsTerminal() {
		t.Error("PROCESSING is not terminal")
	}
	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("COMPLETED and FAILED are terminal")
	}
}

func TestToSummary(t *testing.T) {
	summary := "short"
	it := &Item{
		ID:      "01B",
		URL:     "https://example.com",
		Status:  StatusCompleted,
		Content: stringPtr("# body"),
		Summary: &summary,
	}
	s := it.ToSummary()
	if !s.HasSummary {
		t.Error("HasSummary = false, want true")
	}
	if s.Tags == nil {
		t.Error("Tags should be an empty slice, not nil")
	}
}
