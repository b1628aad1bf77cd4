package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/nikbrunner/anchormarks/internal/model"
)

const tagColumns = `id, user_id, name, color, icon, position`

// FindTagByName matches a tag name exactly (case-sensitive).
func FindTagByName(ctx context.Context, q Querier, userID, name string) (*model.Tag, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+tagColumns+` FROM tags WHERE user_id = ? AND name = ?
	`, userID, name)
	return scanTag(row)
}

// FindTagByNameFold matches a tag name ignoring case, skipping excludeID.
// An exact-case match is preferred when several rows qualify.
func FindTagByNameFold(ctx context.Context, q Querier, userID, name, excludeID string) (*model.Tag, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+tagColumns+`
		FROM tags
		WHERE user_id = ? AND lower(name) = lower(?) AND id != ?
		ORDER BY (name = ?) DESC, position
		LIMIT 1
	`, userID, name, excludeID, name)
	return scanTag(row)
}

// NextTagPosition returns max(position)+1 over the user's tags.
func NextTagPosition(ctx context.Context, q Querier, userID string) (int, error) {
	var next int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), 0) + 1 FROM tags WHERE user_id = ?
	`, userID).Scan(&next)
	return next, err
}

// InsertTag writes a new tag row.
func InsertTag(ctx context.Context, q Querier, t *model.Tag) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO tags (`+tagColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.Name, t.Color, t.Icon, t.Position)
	return err
}

// RenameTag changes a tag's name in place.
func RenameTag(ctx context.Context, q Querier, userID, id, name string) error {
	_, err := q.ExecContext(ctx, `UPDATE tags SET name = ? WHERE user_id = ? AND id = ?`, name, userID, id)
	return err
}

// DeleteTag removes a tag row; its bookmark_tags rows cascade.
func DeleteTag(ctx context.Context, q Querier, userID, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM tags WHERE user_id = ? AND id = ?`, userID, id)
	return err
}

// ListTags returns all of the user's tags.
func ListTags(ctx context.Context, q Querier, userID string) ([]model.Tag, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+tagColumns+` FROM tags WHERE user_id = ? ORDER BY position, name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	return tags, rows.Err()
}

// BookmarkTagDetails returns the tags attached to one bookmark.
func BookmarkTagDetails(ctx context.Context, q Querier, bookmarkID string) ([]model.TagDetail, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT t.id, t.name, t.color, bt.color_override
		FROM bookmark_tags bt
		JOIN tags t ON t.id = bt.tag_id
		WHERE bt.bookmark_id = ?
		ORDER BY t.position, t.name
	`, bookmarkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := []model.TagDetail{}
	for rows.Next() {
		d, err := scanTagDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// UserTagDetails returns tag details for every tagged bookmark of the user,
// keyed by bookmark id.
func UserTagDetails(ctx context.Context, q Querier, userID string) (map[string][]model.TagDetail, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT bt.bookmark_id, t.id, t.name, t.color, bt.color_override
		FROM bookmark_tags bt
		JOIN tags t ON t.id = bt.tag_id
		JOIN bookmarks b ON b.id = bt.bookmark_id
		WHERE b.user_id = ?
		ORDER BY t.position, t.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byBookmark := make(map[string][]model.TagDetail)
	for rows.Next() {
		var bookmarkID string
		var d model.TagDetail
		var override sql.NullString
		if err := rows.Scan(&bookmarkID, &d.ID, &d.Name, &d.Color, &override); err != nil {
			return nil, err
		}
		if override.Valid {
			d.ColorOverride = &override.String
		}
		byBookmark[bookmarkID] = append(byBookmark[bookmarkID], d)
	}
	return byBookmark, rows.Err()
}

// DeleteBookmarkTagsExcept drops every association of bookmarkID whose tag
// is not in keep.
func DeleteBookmarkTagsExcept(ctx context.Context, q Querier, bookmarkID string, keep []string) error {
	if len(keep) == 0 {
		_, err := q.ExecContext(ctx, `DELETE FROM bookmark_tags WHERE bookmark_id = ?`, bookmarkID)
		return err
	}

	args := make([]any, 0, len(keep)+1)
	args = append(args, bookmarkID)
	for _, id := range keep {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keep)), ", ")
	_, err := q.ExecContext(ctx, `
		DELETE FROM bookmark_tags
		WHERE bookmark_id = ? AND tag_id NOT IN (`+placeholders+`)
	`, args...)
	return err
}

// UpsertBookmarkTag attaches a tag. A nil override keeps any override
// already stored on the association.
func UpsertBookmarkTag(ctx context.Context, q Querier, bt model.BookmarkTag) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO bookmark_tags (bookmark_id, tag_id, color_override)
		VALUES (?, ?, ?)
		ON CONFLICT (bookmark_id, tag_id) DO UPDATE SET
			color_override = COALESCE(excluded.color_override, bookmark_tags.color_override)
	`, bt.BookmarkID, bt.TagID, nullable(bt.ColorOverride))
	return err
}

// RetagBookmarks attaches toID to every bookmark carrying fromID, keeping
// per-bookmark color overrides. Bookmarks already tagged toID are left as is.
// Returns the number of bookmarks that carried fromID.
func RetagBookmarks(ctx context.Context, q Querier, fromID, toID string) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookmark_tags WHERE tag_id = ?
	`, fromID).Scan(&count); err != nil {
		return 0, err
	}

	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO bookmark_tags (bookmark_id, tag_id, color_override)
		SELECT bookmark_id, ?, color_override FROM bookmark_tags WHERE tag_id = ?
	`, toID, fromID)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountBookmarksForTag returns how many bookmarks carry the tag.
func CountBookmarksForTag(ctx context.Context, q Querier, tagID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookmark_tags WHERE tag_id = ?`, tagID).Scan(&count)
	return count, err
}

func scanTag(row interface{ Scan(dest ...any) error }) (*model.Tag, error) {
	var t model.Tag
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &t.Icon, &t.Position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func scanTagDetail(rows *sql.Rows) (model.TagDetail, error) {
	var d model.TagDetail
	var override sql.NullString
	if err := rows.Scan(&d.ID, &d.Name, &d.Color, &override); err != nil {
		return d, err
	}
	if override.Valid {
		d.ColorOverride = &override.String
	}
	return d, nil
}
