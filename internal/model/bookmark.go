package model

import "time"

// Bookmark represents a saved URL owned by a single user.
type Bookmark struct {
	ID           string      `json:"id"`
	UserID       string      `json:"-"`
	FolderID     *string     `json:"folder_id"` // nil = root level
	Title        string      `json:"title"`
	URL          string      `json:"url"`
	Description  string      `json:"description"`
	Favicon      string      `json:"favicon"`
	Color        string      `json:"color"`
	Position     int         `json:"position"`
	IsFavorite   bool        `json:"is_favorite"`
	IsArchived   bool        `json:"is_archived"`
	ClickCount   int         `json:"click_count"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Tags         []string    `json:"tags"`
	TagsDetailed []TagDetail `json:"tags_detailed"`
}

// NewBookmarkParams holds parameters for creating a new Bookmark.
type NewBookmarkParams struct {
	UserID      string
	FolderID    *string
	Title       string
	URL         string
	Description string
	Color       string
	Position    int
	CreatedAt   time.Time
}

// NewBookmark creates a Bookmark with generated UUID and timestamps.
// A zero CreatedAt means now.
func NewBookmark(params NewBookmarkParams) Bookmark {
	now := time.Now().UTC()
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	return Bookmark{
		ID:           GenerateUUID(),
		UserID:       params.UserID,
		FolderID:     params.FolderID,
		Title:        params.Title,
		URL:          params.URL,
		Description:  params.Description,
		Color:        params.Color,
		Position:     params.Position,
		CreatedAt:    createdAt,
		UpdatedAt:    now,
		Tags:         []string{},
		TagsDetailed: []TagDetail{},
	}
}
