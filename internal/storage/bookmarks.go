package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nikbrunner/anchormarks/internal/model"
)

const bookmarkColumns = `id, user_id, folder_id, title, url, description, favicon, color,
	position, is_favorite, is_archived, click_count, created_at, updated_at`

// GetBookmark returns the user's bookmark with the given id.
func GetBookmark(ctx context.Context, q Querier, userID, id string) (*model.Bookmark, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks WHERE user_id = ? AND id = ?
	`, userID, id)
	return scanBookmark(row)
}

// FindBookmarkByURL returns the oldest bookmark the user has for url.
func FindBookmarkByURL(ctx context.Context, q Querier, userID, url string) (*model.Bookmark, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE user_id = ? AND url = ?
		ORDER BY created_at, id
		LIMIT 1
	`, userID, url)
	return scanBookmark(row)
}

// NextBookmarkPosition returns max(position)+1 within folderID (nil = root).
func NextBookmarkPosition(ctx context.Context, q Querier, userID string, folderID *string) (int, error) {
	var next int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), 0) + 1
		FROM bookmarks WHERE user_id = ? AND folder_id IS ?
	`, userID, nullable(folderID)).Scan(&next)
	return next, err
}

// InsertBookmark writes a new bookmark row. Tags are stored separately.
func InsertBookmark(ctx context.Context, q Querier, b *model.Bookmark) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO bookmarks (`+bookmarkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.UserID, nullable(b.FolderID), b.Title, b.URL, b.Description, b.Favicon, b.Color,
		b.Position, boolToInt(b.IsFavorite), boolToInt(b.IsArchived), b.ClickCount,
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	return err
}

// UpdateBookmarkTitleFolder changes only the title and folder of a bookmark.
func UpdateBookmarkTitleFolder(ctx context.Context, q Querier, userID, id, title string, folderID *string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE bookmarks SET title = ?, folder_id = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, title, nullable(folderID), formatTime(time.Now()), userID, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementClickCount records one open of the bookmark.
func IncrementClickCount(ctx context.Context, q Querier, userID, id string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE bookmarks SET click_count = click_count + 1
		WHERE user_id = ? AND id = ?
	`, userID, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFavicon stores a resolved favicon URL (empty when none was found) and
// stamps the lookup time.
func SetFavicon(ctx context.Context, q Querier, id, favicon string, checkedAt time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE bookmarks SET favicon = ?, favicon_checked_at = ?
		WHERE id = ?
	`, favicon, formatTime(checkedAt), id)
	return err
}

// ListBookmarks returns all of the user's bookmarks without tags.
func ListBookmarks(ctx context.Context, q Querier, userID string) ([]model.Bookmark, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE user_id = ?
		ORDER BY position, created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := []model.Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, *b)
	}
	return bookmarks, rows.Err()
}

func scanBookmark(row interface{ Scan(dest ...any) error }) (*model.Bookmark, error) {
	var b model.Bookmark
	var folderID sql.NullString
	var isFavorite, isArchived int
	var createdAt, updatedAt string

	if err := row.Scan(
		&b.ID, &b.UserID, &folderID, &b.Title, &b.URL, &b.Description, &b.Favicon, &b.Color,
		&b.Position, &isFavorite, &isArchived, &b.ClickCount, &createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if folderID.Valid {
		b.FolderID = &folderID.String
	}
	b.IsFavorite = isFavorite == 1
	b.IsArchived = isArchived == 1
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	b.Tags = []string{}
	b.TagsDetailed = []model.TagDetail{}
	return &b, nil
}
