package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nikbrunner/anchormarks/internal/model"
)

const folderColumns = `id, user_id, parent_id, name, color, icon, position, created_at, updated_at`

// GetFolder returns the user's folder with the given id.
func GetFolder(ctx context.Context, q Querier, userID, id string) (*model.Folder, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+folderColumns+`
		FROM folders WHERE user_id = ? AND id = ?
	`, userID, id)
	return scanFolder(row)
}

// FindFolder returns the user's folder with the given name under parentID
// (nil = root). When duplicates exist, the lowest position wins.
func FindFolder(ctx context.Context, q Querier, userID, name string, parentID *string) (*model.Folder, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+folderColumns+`
		FROM folders
		WHERE user_id = ? AND name = ? AND parent_id IS ?
		ORDER BY position, created_at
		LIMIT 1
	`, userID, name, nullable(parentID))
	return scanFolder(row)
}

// NextFolderPosition returns max(position)+1 among the siblings under parentID.
func NextFolderPosition(ctx context.Context, q Querier, userID string, parentID *string) (int, error) {
	var next int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), 0) + 1
		FROM folders WHERE user_id = ? AND parent_id IS ?
	`, userID, nullable(parentID)).Scan(&next)
	return next, err
}

// InsertFolder writes a new folder row.
func InsertFolder(ctx context.Context, q Querier, f *model.Folder) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO folders (`+folderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.UserID, nullable(f.ParentID), f.Name, f.Color, f.Icon, f.Position,
		formatTime(f.CreatedAt), formatTime(f.UpdatedAt))
	return err
}

// UpdateFolder rewrites name, color and parent of an existing folder.
func UpdateFolder(ctx context.Context, q Querier, f *model.Folder) error {
	res, err := q.ExecContext(ctx, `
		UPDATE folders SET name = ?, color = ?, parent_id = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, f.Name, f.Color, nullable(f.ParentID), formatTime(f.UpdatedAt), f.UserID, f.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsFolderDescendant reports whether candidate is folderID itself or lies
// below it. Walks at most maxDepth parents so corrupt loops terminate.
func IsFolderDescendant(ctx context.Context, q Querier, userID, folderID, candidate string) (bool, error) {
	const maxDepth = 1024

	current := candidate
	for depth := 0; depth < maxDepth; depth++ {
		if current == folderID {
			return true, nil
		}
		f, err := GetFolder(ctx, q, userID, current)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if f.ParentID == nil {
			return false, nil
		}
		current = *f.ParentID
	}
	return true, nil
}

// ListFolders returns all of the user's folders ordered by parent and position.
func ListFolders(ctx context.Context, q Querier, userID string) ([]model.Folder, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+folderColumns+`
		FROM folders
		WHERE user_id = ?
		ORDER BY position, name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders := []model.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *f)
	}
	return folders, rows.Err()
}

func scanFolder(row interface{ Scan(dest ...any) error }) (*model.Folder, error) {
	var f model.Folder
	var parentID sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&f.ID, &f.UserID, &parentID, &f.Name, &f.Color, &f.Icon,
		&f.Position, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if parentID.Valid {
		f.ParentID = &parentID.String
	}
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	return &f, nil
}
