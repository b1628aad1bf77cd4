package model

// Tag is a user-scoped label. Names are unique per user and keep their case.
type Tag struct {
	ID       string `json:"id"`
	UserID   string `json:"-"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
	Position int    `json:"position"`
}

// BookmarkTag joins a bookmark to a tag, optionally recoloring the tag
// for that bookmark only.
type BookmarkTag struct {
	BookmarkID    string
	TagID         string
	ColorOverride *string
}

// TagDetail is the denormalized tag view attached to a bookmark.
type TagDetail struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Color         string  `json:"color"`
	ColorOverride *string `json:"color_override,omitempty"`
}

// NewTag creates a Tag with a generated UUID.
func NewTag(userID, name string, position int) Tag {
	return Tag{
		ID:       GenerateUUID(),
		UserID:   userID,
		Name:     name,
		Position: position,
	}
}
