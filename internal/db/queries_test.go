package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/item"
)

func stringPtr(s string) *string {
	return &s
}

func int64Ptr(n int64) *int64 {
	return &n
}

// setupDB opens a fresh database with two users, "u1" and "u2".
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, u := range []*User{
		{ID: "u1", Email: "one@example.com", Name: "One", PasswordHash: "h", CreatedAt: 1},
		{ID: "u2", Email: "two@example.com", Name: "Two", PasswordHash: "h", CreatedAt: 1},
	} {
		if err := InsertUser(ctx, db, u); err != nil {
			t.Fatalf("InsertUser(%s) error = %v", u.ID, err)
		}
	}
	return db
}

func newProcessingItem(id, userID string, createdAt int64) *item.Item {
	return &item.Item{
		ID:        id,
		UserID:    userID,
		URL:       "https://example.com/" + id,
		Status:    item.StatusProcessing,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestInsertAndGetItem(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	it := newProcessingItem("01AAA", "u1", 1000)
	if err := InsertItem(ctx, db, it); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}

	got, err := GetItem(ctx, db, "u1", "01AAA")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.URL != it.URL {
		t.Errorf("URL = %q, want %q", got.URL, it.URL)
	}
	if got.Status != item.StatusProcessing {
		t.Errorf("Status = %s, want PROCESSING", got.Status)
	}
	if got.Title != nil || got.Content != nil || got.PublishedAt != nil || got.Summary != nil {
		t.Errorf("derived fields should be nil on a new item: %+v", got)
	}
	if got.Tags != nil {
		t.Errorf("Tags = %v, want nil", got.Tags)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	db := setupDB(t)

	_, err := GetItem(context.Background(), db, "u1", "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetItem() error = %v, want NOT_FOUND", err)
	}
}

func TestGetItem_ForeignOwnerIsNotFound(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := InsertItem(ctx, db, newProcessingItem("01AAA", "u1", 1000)); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}

	_, err := GetItem(ctx, db, "u2", "01AAA")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetItem() as other user error = %v, want NOT_FOUND", err)
	}
}

func TestCompleteScrape(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := InsertItem(ctx, db, newProcessingItem("01AAA", "u1", 1000)); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}

	fields := item.ScrapeFields{
		Title:       stringPtr("A Title"),
		Content:     stringPtr("# Heading\n\nbody"),
		OGImage:     stringPtr("https://example.com/og.png"),
		Author:      nil,
		PublishedAt: int64Ptr(1710498600),
	}
	if err := CompleteScrape(ctx, db, "u1", "01AAA", fields, 2000); err != nil {
		t.Fatalf("CompleteScrape() error = %v", err)
	}

	got, err := GetItem(ctx, db, "u1", "01AAA")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.Status != item.StatusCompleted {
		t.Errorf("Status = %s, want COMPLETED", got.Status)
	}
	if got.Title == nil || *got.Title != "A Title" {
		t.Errorf("Title = %v", got.Title)
	}
	if got.Author != nil {
		t.Errorf("Author = %v, want nil", got.Author)
	}
	if got.PublishedAt == nil || *got.PublishedAt != 1710498600 {
		t.Errorf("PublishedAt = %v", got.PublishedAt)
	}
	if got.UpdatedAt != 2000 {
		t.Errorf("UpdatedAt = %d, want 2000", got.UpdatedAt)
	}
}

func TestFailScrape(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := InsertItem(ctx, db, newProcessingItem("01AAA", "u1", 1000)); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}
	if err := FailScrape(ctx, db, "u1", "01AAA", 2000); err != nil {
		t.Fatalf("FailScrape() error = %v", err)
	}

	got, err := GetItem(ctx, db, "u1", "01AAA")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.Status != item.StatusFailed {
		t.Errorf("Status = %s, want FAILED", got.Status)
	}
	if got.Title != nil || got.Content != nil {
		t.Error("failed item should have no scraped fields")
	}
}

func TestTerminalStatusIsNeverRewritten(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := InsertItem(ctx, db, newProcessingItem("01AAA", "u1", 1000)); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}
	if err := FailScrape(ctx, db, "u1", "01AAA", 2000); err != nil {
		t.Fatalf("FailScrape() error = %v", err)
	}

	err := CompleteScrape(ctx, db, "u1", "01AAA", item.ScrapeFields{Title: stringPtr("late")}, 3000)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("CompleteScrape() on FAILED item error = %v, want NOT_FOUND", err)
	}
	if err := FailScrape(ctx, db, "u1", "01AAA", 3000); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("FailScrape() on FAILED item error = %v, want NOT_FOUND", err)
	}

	got, _ := GetItem(ctx, db, "u1", "01AAA")
	if got.Status != item.StatusFailed || got.Title != nil {
		t.Errorf("terminal item changed: status=%s title=%v", got.Status, got.Title)
	}
}

func TestCompleteScrape_ForeignOwner(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := InsertItem(ctx, db, newProcessingItem("01AAA", "u1", 1000)); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}
	err := CompleteScrape(ctx, db, "u2", "01AAA", item.ScrapeFields{}, 2000)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("CompleteScrape() as other user error = %v, want NOT_FOUND", err)
	}
}

func TestSaveSummary(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := InsertItem(ctx, db, newProcessingItem("01AAA", "u1", 1000)); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}
	if err := SaveSummary(ctx, db, "u1", "01AAA", "first", []string{"go"}, 2000); err != nil {
		t.Fatalf("SaveSummary() error = %v", err)
	}
	// Overwrite is allowed
	if err := SaveSummary(ctx, db, "u1", "01AAA", "second", []string{"tech", "programming"}, 3000); err != nil {
		t.Fatalf("SaveSummary() overwrite error = %v", err)
	}

	got, err := GetItem(ctx, db, "u1", "01AAA")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.Summary == nil || *got.Summary != "second" {
		t.Errorf("Summary = %v, want second", got.Summary)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "tech" || got.Tags[1] != "programming" {
		t.Errorf("Tags = %v, want [tech programming]", got.Tags)
	}
}

func TestSaveSummary_EmptyTags(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := InsertItem(ctx, db, newProcessingItem("01AAA", "u1", 1000)); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}
	if err := SaveSummary(ctx, db, "u1", "01AAA", "text", nil, 2000); err != nil {
		t.Fatalf("SaveSummary() error = %v", err)
	}

	got, _ := GetItem(ctx, db, "u1", "01AAA")
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("Tags = %#v, want empty non-nil", got.Tags)
	}
}

func TestSaveSummary_ForeignOwner(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := InsertItem(ctx, db, newProcessingItem("01AAA", "u1", 1000)); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}
	err := SaveSummary(ctx, db, "u2", "01AAA", "hijack", []string{"x"}, 2000)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("SaveSummary() as other user error = %v, want NOT_FOUND", err)
	}

	got, _ := GetItem(ctx, db, "u1", "01AAA")
	if got.Summary != nil {
		t.Errorf("Summary = %v, want nil", got.Summary)
	}
}

func TestListItems_NewestFirstWithTiebreak(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	for _, it := range []*item.Item{
		newProcessingItem("01AAA", "u1", 1000),
		newProcessingItem("01CCC", "u1", 2000),
		newProcessingItem("01BBB", "u1", 2000),
		newProcessingItem("01ZZZ", "u2", 3000),
	} {
		if err := InsertItem(ctx, db, it); err != nil {
			t.Fatalf("InsertItem() error = %v", err)
		}
	}

	got, err := ListItems(ctx, db, "u1", "")
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}

	want := []string{"01CCC", "01BBB", "01AAA"}
	if len(got) != len(want) {
		t.Fatalf("ListItems() len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("ListItems()[%d].ID = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestListItems_StatusFilter(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	for _, id := range []string{"01AAA", "01BBB"} {
		if err := InsertItem(ctx, db, newProcessingItem(id, "u1", 1000)); err != nil {
			t.Fatalf("InsertItem() error = %v", err)
		}
	}
	if err := FailScrape(ctx, db, "u1", "01BBB", 1001); err != nil {
		t.Fatalf("FailScrape() error = %v", err)
	}

	failed, err := ListItems(ctx, db, "u1", "FAILED")
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "01BBB" {
		t.Errorf("ListItems(FAILED) = %v", failed)
	}

	all, err := ListItems(ctx, db, "u1", "all")
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListItems(all) len = %d, want 2", len(all))
	}
}

func TestListItems_Empty(t *testing.T) {
	db := setupDB(t)

	got, err := ListItems(context.Background(), db, "u1", "")
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if got == nil {
		t.Error("ListItems() = nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("ListItems() len = %d, want 0", len(got))
	}
}

func TestListItems_HasSummaryAndTags(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := InsertItem(ctx, db, newProcessingItem("01AAA", "u1", 1000)); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}
	if err := InsertItem(ctx, db, newProcessingItem("01BBB", "u1", 1001)); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}
	if err := SaveSummary(ctx, db, "u1", "01AAA", "sum", []string{"go"}, 2000); err != nil {
		t.Fatalf("SaveSummary() error = %v", err)
	}

	got, err := ListItems(ctx, db, "u1", "")
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	byID := map[string]item.ItemSummary{}
	for _, s := range got {
		byID[s.ID] = s
	}
	if !byID["01AAA"].HasSummary || len(byID["01AAA"].Tags) != 1 {
		t.Errorf("01AAA = %+v, want summary and one tag", byID["01AAA"])
	}
	if byID["01BBB"].HasSummary || byID["01BBB"].Tags == nil {
		t.Errorf("01BBB = %+v, want no summary and empty tags", byID["01BBB"])
	}
}
