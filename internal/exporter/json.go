package exporter

import (
	"encoding/json"

	"github.com/nikbrunner/anchormarks/internal/model"
)

// ExportJSON renders the store as the {bookmarks, folders} payload the JSON
// importer accepts. Canonical ids become the payload ids, so importing the
// output into the same account creates nothing new.
func ExportJSON(store *model.Store) ([]byte, error) {
	return json.MarshalIndent(ToPayload(store), "", "  ")
}

// ToPayload converts a snapshot into a payload.
func ToPayload(store *model.Store) *model.Payload {
	payload := &model.Payload{
		Bookmarks: make([]model.BookmarkDescriptor, 0, len(store.Bookmarks)),
		Folders:   make([]model.FolderDescriptor, 0, len(store.Folders)),
	}

	for _, f := range store.Folders {
		payload.Folders = append(payload.Folders, model.FolderDescriptor{
			ID:       model.ExternalID(f.ID),
			ParentID: externalID(f.ParentID),
			Name:     f.Name,
			Color:    f.Color,
			Icon:     f.Icon,
		})
	}

	for _, b := range store.Bookmarks {
		createdAt := b.CreatedAt
		d := model.BookmarkDescriptor{
			ID:          model.ExternalID(b.ID),
			Title:       b.Title,
			URL:         b.URL,
			Description: b.Description,
			Tags:        model.TagList(append([]string{}, b.Tags...)),
			Color:       b.Color,
			FolderID:    externalID(b.FolderID),
			CreatedAt:   &createdAt,
		}
		for _, td := range b.TagsDetailed {
			if td.ColorOverride == nil {
				continue
			}
			if d.TagColors == nil {
				d.TagColors = map[string]string{}
			}
			d.TagColors[td.Name] = *td.ColorOverride
		}
		payload.Bookmarks = append(payload.Bookmarks, d)
	}

	return payload
}

func externalID(id *string) model.ExternalID {
	if id == nil {
		return ""
	}
	return model.ExternalID(*id)
}
