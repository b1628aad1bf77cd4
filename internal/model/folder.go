package model

import "time"

// Folder represents a container for bookmarks and other folders.
type Folder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	ParentID  *string   `json:"parent_id"` // nil = root level
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFolderParams holds parameters for creating a new Folder.
type NewFolderParams struct {
	ID       string // empty = generate
	UserID   string
	ParentID *string
	Name     string
	Color    string
	Icon     string
	Position int
}

// NewFolder creates a Folder, generating a UUID unless one is supplied.
func NewFolder(params NewFolderParams) Folder {
	id := params.ID
	if id == "" {
		id = GenerateUUID()
	}
	now := time.Now().UTC()

	return Folder{
		ID:        id,
		UserID:    params.UserID,
		ParentID:  params.ParentID,
		Name:      params.Name,
		Color:     params.Color,
		Icon:      params.Icon,
		Position:  params.Position,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
