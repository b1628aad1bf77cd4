package importer

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nikbrunner/anchormarks/internal/model"
	"github.com/nikbrunner/anchormarks/internal/storage"
	"github.com/nikbrunner/anchormarks/internal/tags"
)

// errDuplicate aborts a bookmark's transaction when its URL is already stored.
var errDuplicate = errors.New(model.ReasonDuplicate)

// ImportBookmarks inserts each descriptor that is not already stored for the
// user, appending one log entry per descriptor to res. Each bookmark runs in
// its own transaction; a failure skips that bookmark only.
//
// importTag is appended to every inserted bookmark's tags. The ids of the
// inserted rows are returned in payload order.
func ImportBookmarks(ctx context.Context, store *storage.SQLiteStorage, log logrus.FieldLogger, userID string, descs []model.BookmarkDescriptor, remap Remap, importTag string, res *model.ImportResult) ([]string, error) {
	inserted := []string{}

	for _, d := range descs {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		url := strings.TrimSpace(d.URL)
		if url == "" {
			res.Skip(d.URL, model.ReasonMissingURL)
			continue
		}

		var created *model.ImportedBookmark
		err := store.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			created, err = insertBookmark(ctx, tx, userID, url, d, remap, importTag)
			return err
		})
		switch {
		case errors.Is(err, errDuplicate):
			res.Skip(url, model.ReasonDuplicate)
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return inserted, ctxErr
			}
			log.WithFields(logrus.Fields{"user": userID, "url": url}).WithError(err).Warn("bookmark import failed")
			res.Skip(url, "error: "+err.Error())
		default:
			res.Imported = append(res.Imported, *created)
			res.ImportLog = append(res.ImportLog, model.LogEntry{URL: url, Status: model.StatusImported})
			inserted = append(inserted, created.ID)
		}
	}

	return inserted, nil
}

func insertBookmark(ctx context.Context, tx *sql.Tx, userID, url string, d model.BookmarkDescriptor, remap Remap, importTag string) (*model.ImportedBookmark, error) {
	_, err := storage.FindBookmarkByURL(ctx, tx, userID, url)
	if err == nil {
		return nil, errDuplicate
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	folderID := remap.Lookup(d.FolderID)
	pos, err := storage.NextBookmarkPosition(ctx, tx, userID, folderID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = url
	}
	params := model.NewBookmarkParams{
		UserID:      userID,
		FolderID:    folderID,
		Title:       title,
		URL:         url,
		Description: d.Description,
		Color:       d.Color,
		Position:    pos,
	}
	if d.CreatedAt != nil {
		params.CreatedAt = d.CreatedAt.UTC()
	}
	b := model.NewBookmark(params)
	if err := storage.InsertBookmark(ctx, tx, &b); err != nil {
		return nil, err
	}

	names := tags.Parse(append(append([]string{}, d.Tags...), importTag)...)
	tagIDs, nameToID, err := tags.EnsureTagsExistMap(ctx, tx, userID, names)
	if err != nil {
		return nil, err
	}
	overrides := tags.NormalizeTagColorOverrides(d.TagColors, nameToID)
	if err := tags.UpdateBookmarkTags(ctx, tx, b.ID, tagIDs, overrides); err != nil {
		return nil, err
	}

	return &model.ImportedBookmark{ID: b.ID, URL: b.URL, Title: b.Title, Tags: names}, nil
}
