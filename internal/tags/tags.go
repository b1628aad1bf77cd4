// Package tags turns user-supplied tag strings into canonical tag rows and
// maintains bookmark/tag associations.
//
// Tag names keep the case they were created with and are unique per user
// case-sensitively. Comparisons that decide whether two names mean the same
// tag (rename/merge targets, bulk removal) ignore case.
package tags

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nikbrunner/anchormarks/internal/model"
	"github.com/nikbrunner/anchormarks/internal/storage"
)

var (
	ErrTagNotFound  = errors.New("tag not found")
	ErrEmptyTagName = errors.New("tag name is required")
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Parse splits comma-delimited tag strings, trims each name, drops empties
// and removes exact duplicates while keeping first-seen order.
func Parse(raw ...string) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, chunk := range raw {
		for _, part := range strings.Split(chunk, ",") {
			name := strings.TrimSpace(part)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// EnsureTagsExist resolves names to tag ids for the user, creating any tag
// that does not exist yet. Ids are returned in the order of Parse(names...).
func EnsureTagsExist(ctx context.Context, q storage.Querier, userID string, names []string) ([]string, error) {
	ids, _, err := EnsureTagsExistMap(ctx, q, userID, names)
	return ids, err
}

// EnsureTagsExistMap is EnsureTagsExist that also returns a name→id map for
// callers attaching per-tag color overrides.
func EnsureTagsExistMap(ctx context.Context, q storage.Querier, userID string, names []string) ([]string, map[string]string, error) {
	parsed := Parse(names...)
	ids := make([]string, 0, len(parsed))
	nameToID := make(map[string]string, len(parsed))

	for _, name := range parsed {
		tag, err := storage.FindTagByName(ctx, q, userID, name)
		if errors.Is(err, storage.ErrNotFound) {
			tag, err = createTag(ctx, q, userID, name)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("ensure tag %q: %w", name, err)
		}
		ids = append(ids, tag.ID)
		nameToID[name] = tag.ID
	}

	return ids, nameToID, nil
}

func createTag(ctx context.Context, q storage.Querier, userID, name string) (*model.Tag, error) {
	pos, err := storage.NextTagPosition(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	tag := model.NewTag(userID, name, pos)
	if err := storage.InsertTag(ctx, q, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

// UpdateBookmarkTags replaces the bookmark's full set of tag associations
// with tagIDs. colorOverrides is keyed by tag id; tags without an entry
// keep whatever override they already had.
func UpdateBookmarkTags(ctx context.Context, q storage.Querier, bookmarkID string, tagIDs []string, colorOverrides map[string]string) error {
	if err := storage.DeleteBookmarkTagsExcept(ctx, q, bookmarkID, tagIDs); err != nil {
		return err
	}

	for _, tagID := range tagIDs {
		bt := model.BookmarkTag{BookmarkID: bookmarkID, TagID: tagID}
		if color, ok := colorOverrides[tagID]; ok {
			bt.ColorOverride = &color
		}
		if err := storage.UpsertBookmarkTag(ctx, q, bt); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeTagColorOverrides maps raw name→color overrides onto tag ids.
// Names are matched exactly first, then ignoring case. Entries whose name
// does not resolve or whose color is not a #rgb/#rrggbb value are dropped.
func NormalizeTagColorOverrides(raw map[string]string, nameToID map[string]string) map[string]string {
	out := make(map[string]string)
	if len(raw) == 0 {
		return out
	}

	folded := make(map[string]string, len(nameToID))
	for name, id := range nameToID {
		key := strings.ToLower(name)
		if _, exists := folded[key]; !exists {
			folded[key] = id
		}
	}

	for name, color := range raw {
		color = strings.TrimSpace(color)
		if !hexColor.MatchString(color) {
			continue
		}
		name = strings.TrimSpace(name)
		id, ok := nameToID[name]
		if !ok {
			id, ok = folded[strings.ToLower(name)]
		}
		if ok {
			out[id] = color
		}
	}
	return out
}
