package storage

import (
	"context"

	"github.com/nikbrunner/anchormarks/internal/model"
)

// loadSnapshot assembles the user's folders, tags and bookmarks, with each
// bookmark's tags denormalized onto it.
func loadSnapshot(ctx context.Context, q Querier, userID string) (*model.Store, error) {
	store := model.NewStore()

	folders, err := ListFolders(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	store.Folders = folders

	tags, err := ListTags(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	store.Tags = tags

	bookmarks, err := ListBookmarks(ctx, q, userID)
	if err != nil {
		return nil, err
	}

	details, err := UserTagDetails(ctx, q, userID)
	if err != nil {
		return nil, err
	}

	for i := range bookmarks {
		if d, ok := details[bookmarks[i].ID]; ok {
			bookmarks[i].TagsDetailed = d
			for _, tag := range d {
				bookmarks[i].Tags = append(bookmarks[i].Tags, tag.Name)
			}
		}
	}
	store.Bookmarks = bookmarks

	return store, nil
}
