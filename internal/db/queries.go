package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/item"
)

const itemColumns = `id, user_id, url, status, title, content, og_image, author,
	published_at, summary, tags_json, created_at, updated_at`

// summaryColumns is the list projection: everything but content and summary text.
var summaryColumns = []string{
	"id", "url", "status", "title", "og_image", "author", "published_at",
	"summary IS NOT NULL AS has_summary", "tags_json", "created_at", "updated_at",
}

// InsertItem stores a new item in the database.
func InsertItem(ctx context.Context, db *sql.DB, it *item.Item) error {
	tagsJSON, err := encodeTags(it.Tags)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		it.ID, it.UserID, it.URL, string(it.Status),
		toNullString(it.Title), toNullString(it.Content), toNullString(it.OGImage), toNullString(it.Author),
		toNullInt64(it.PublishedAt), toNullString(it.Summary), tagsJSON,
		it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetItem retrieves an item by id, scoped to its owner.
// Missing and foreign items both yield NOT_FOUND.
func GetItem(ctx context.Context, db *sql.DB, userID, id string) (*item.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ? AND user_id = ?`

	it, err := scanItem(db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return it, nil
}

// CompleteScrape moves a PROCESSING item to COMPLETED and writes the scraped fields.
// Items in a terminal status are left untouched and reported as NOT_FOUND.
func CompleteScrape(ctx context.Context, db *sql.DB, userID, id string, f item.ScrapeFields, now int64) error {
	query := `
		UPDATE items SET
			status = ?, title = ?, content = ?, og_image = ?, author = ?, published_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status = ?
	`
	result, err := db.ExecContext(ctx, query,
		string(item.StatusCompleted),
		toNullString(f.Title), toNullString(f.Content), toNullString(f.OGImage), toNullString(f.Author),
		toNullInt64(f.PublishedAt), now,
		id, userID, string(item.StatusProcessing),
	)
	return checkAffected(result, err, id)
}

// FailScrape moves a PROCESSING item to FAILED. Scrape fields stay NULL.
func FailScrape(ctx context.Context, db *sql.DB, userID, id string, now int64) error {
	query := `
		UPDATE items SET status = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status = ?
	`
	result, err := db.ExecContext(ctx, query,
		string(item.StatusFailed), now,
		id, userID, string(item.StatusProcessing),
	)
	return checkAffected(result, err, id)
}

// SaveSummary writes summary and tags in one statement, so both land or neither does.
// Overwrites any earlier summary.
func SaveSummary(ctx context.Context, db *sql.DB, userID, id, summary string, tags []string, now int64) error {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := encodeTags(tags)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		UPDATE items SET summary = ?, tags_json = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`
	result, err := db.ExecContext(ctx, query, summary, tagsJSON, now, id, userID)
	return checkAffected(result, err, id)
}

// ListItems returns a user's items newest first (created_at DESC, id DESC).
// An empty status or item.StatusAll returns every status.
func ListItems(ctx context.Context, db *sql.DB, userID, status string) ([]item.ItemSummary, error) {
	q := sq.Select(summaryColumns...).
		From("items").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC")

	if status != "" && !strings.EqualFold(status, item.StatusAll) {
		q = q.Where(sq.Eq{"status": status})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	summaries := make([]item.ItemSummary, 0)
	for rows.Next() {
		s, err := scanItemSummary(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return summaries, nil
}

// checkAffected maps a zero-row update to NOT_FOUND.
func checkAffected(result sql.Result, err error, id string) error {
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanItem(row *sql.Row) (*item.Item, error) {
	var (
		it          item.Item
		status      string
		title       sql.NullString
		content     sql.NullString
		ogImage     sql.NullString
		author      sql.NullString
		publishedAt sql.NullInt64
		summary     sql.NullString
		tagsJSON    sql.NullString
	)

	err := row.Scan(
		&it.ID, &it.UserID, &it.URL, &status, &title, &content, &ogImage, &author,
		&publishedAt, &summary, &tagsJSON, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	it.Status = item.Status(status)
	it.Title = fromNullString(title)
	it.Content = fromNullString(content)
	it.OGImage = fromNullString(ogImage)
	it.Author = fromNullString(author)
	it.PublishedAt = fromNullInt64(publishedAt)
	it.Summary = fromNullString(summary)

	if it.Tags, err = decodeTags(tagsJSON); err != nil {
		return nil, err
	}
	return &it, nil
}

func scanItemSummary(rows *sql.Rows) (*item.ItemSummary, error) {
	var (
		s           item.ItemSummary
		status      string
		title       sql.NullString
		ogImage     sql.NullString
		author      sql.NullString
		publishedAt sql.NullInt64
		tagsJSON    sql.NullString
	)

	err := rows.Scan(
		&s.ID, &s.URL, &status, &title, &ogImage, &author, &publishedAt,
		&s.HasSummary, &tagsJSON, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = item.Status(status)
	s.Title = fromNullString(title)
	s.OGImage = fromNullString(ogImage)
	s.Author = fromNullString(author)
	s.PublishedAt = fromNullInt64(publishedAt)

	if s.Tags, err = decodeTags(tagsJSON); err != nil {
		return nil, err
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return &s, nil
}

// encodeTags stores nil as NULL and anything else (including empty) as JSON.
func encodeTags(tags []string) (sql.NullString, error) {
	if tags == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeTags(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(ns.String), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}
