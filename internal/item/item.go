package item

// Status is the scrape lifecycle state of an item.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further scrape transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Item is one captured web page owned by a user.
type Item struct {
	// ID is a ULID that uniquely identifies this item
	ID string `json:"id"`

	// UserID is the owner; every read and write is scoped to it
	UserID string `json:"user_id"`

	// URL is the submitted address, immutable after creation
	URL string `json:"url"`

	Status Status `json:"status"`

	// Scrape-derived fields, nil until a successful scrape
	Title       *string `json:"title,omitempty"`
	Content     *string `json:"content,omitempty"`
	OGImage     *string `json:"og_image,omitempty"`
	Author      *string `json:"author,omitempty"`
	PublishedAt *int64  `json:"published_at,omitempty"`

	// Summary is set by the user-triggered summarization step
	Summary *string `json:"summary,omitempty"`

	// Tags are derived from Summary (stored as JSON in DB)
	Tags []string `json:"tags"`

	// CreatedAt is the Unix timestamp when the item was created
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix timestamp of the last mutation
	UpdatedAt int64 `json:"updated_at"`
}

// ItemSummary is an item without its page content, used by list views.
type ItemSummary struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Status      Status   `json:"status"`
	Title       *string  `json:"title,omitempty"`
	OGImage     *string  `json:"og_image,omitempty"`
	Author      *string  `json:"author,omitempty"`
	PublishedAt *int64   `json:"published_at,omitempty"`
	HasSummary  bool     `json:"has_summary"`
	Tags        []string `json:"tags"`
	CreatedAt   int64    `json:"created_at"`
	UpdatedAt   int64    `json:"updated_at"`
}

// ToSummary strips the content and summary text.
func (i *Item) ToSummary() ItemSummary {
	tags := i.Tags
	if tags == nil {
		tags = []string{}
	}
	return ItemSummary{
		ID:          i.ID,
		URL:         i.URL,
		Status:      i.Status,
		Title:       i.Title,
		OGImage:     i.OGImage,
		Author:      i.Author,
		PublishedAt: i.PublishedAt,
		HasSummary:  i.Summary != nil,
		Tags:        tags,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

// ScrapeFields are the values written when a scrape succeeds.
type ScrapeFields struct {
	Title       *string
	Content     *string
	OGImage     *string
	Author      *string
	PublishedAt *int64
}
