package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPayload is returned when an import or sync body is not an
// object carrying a bookmarks or folders array.
var ErrInvalidPayload = errors.New("invalid payload")

// ExternalID is an id scoped to the payload that carries it. Browsers send
// numeric ids, exports send strings; both decode to the same text form.
// The empty value means "none".
type ExternalID string

// UnmarshalJSON accepts a string, a number or null.
func (id *ExternalID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*id = ""
		return nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExternalID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number, got %s", raw)
	}
	*id = ExternalID(n.String())
	return nil
}

// MarshalJSON writes null for the empty id.
func (id ExternalID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// TagList accepts either a comma-delimited string or an array of strings.
// Elements are kept raw; splitting and trimming happen in the tag normalizer.
type TagList []string

// UnmarshalJSON accepts a string, an array of strings or null.
func (t *TagList) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*t = nil
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TagList{s}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("tags must be a string or an array of strings")
	}
	*t = list
	return nil
}

// FolderDescriptor is an incoming folder whose ids are scoped to the payload.
type FolderDescriptor struct {
	ID       ExternalID `json:"id"`
	ParentID ExternalID `json:"parent_id"`
	Name     string     `json:"name"`
	Color    string     `json:"color,omitempty"`
	Icon     string     `json:"icon,omitempty"`
}

// BookmarkDescriptor is an incoming bookmark. FolderID refers to a
// FolderDescriptor in the same payload (import) or to a canonical folder (sync).
type BookmarkDescriptor struct {
	ID          ExternalID        `json:"id,omitempty"`
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Description string            `json:"description,omitempty"`
	Tags        TagList           `json:"tags,omitempty"`
	TagColors   map[string]string `json:"tag_colors,omitempty"`
	Color       string            `json:"color,omitempty"`
	FolderID    ExternalID        `json:"folder_id,omitempty"`
	CreatedAt   *time.Time        `json:"created_at,omitempty"`
}

// Payload is the neutral {bookmarks, folders} document shared by HTML import,
// JSON import, sync push and JSON export.
type Payload struct {
	Bookmarks []BookmarkDescriptor `json:"bookmarks"`
	Folders   []FolderDescriptor   `json:"folders"`
}

// DecodePayload parses a JSON body. It rejects anything that is not an
// object or that carries neither a bookmarks nor a folders key.
func DecodePayload(data []byte) (*Payload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidPayload)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidPayload)
	}

	_, hasBookmarks := top["bookmarks"]
	_, hasFolders := top["folders"]
	if !hasBookmarks && !hasFolders {
		return nil, fmt.Errorf("%w: missing bookmarks and folders", ErrInvalidPayload)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &p, nil
}
