package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nikbrunner/anchormarks/internal/logging"
	"github.com/nikbrunner/anchormarks/internal/model"
	"github.com/nikbrunner/anchormarks/internal/storage"
	"github.com/nikbrunner/anchormarks/internal/userlock"
)

// Normalizer runs the multi-row tag operations, each in its own transaction
// and under the user's lock.
type Normalizer struct {
	store *storage.SQLiteStorage
	locks *userlock.Locker
	log   logrus.FieldLogger
}

// NewNormalizer creates a Normalizer. Pass the locker shared with the
// importer and reconciler so tag edits never interleave with them; nil
// uses a private one. A nil logger discards output.
func NewNormalizer(store *storage.SQLiteStorage, locks *userlock.Locker, log logrus.FieldLogger) *Normalizer {
	if locks == nil {
		locks = userlock.New()
	}
	return &Normalizer{store: store, locks: locks, log: logging.OrDiscard(log)}
}

// RenameOrMergeTag renames from to to for the user. If a different tag
// named to already exists (ignoring case), every bookmark tagged from is
// re-tagged to and from is deleted. Returns the number of bookmarks that
// carried from.
func (n *Normalizer) RenameOrMergeTag(ctx context.Context, userID, from, to string) (int, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || to == "" {
		return 0, ErrEmptyTagName
	}
	if from == to {
		return 0, nil
	}

	var affected int
	var merged bool
	unlock := n.locks.Lock(userID)
	defer unlock()
	err := n.store.WithTx(ctx, func(tx *sql.Tx) error {
		src, err := findTag(ctx, tx, userID, from)
		if err != nil {
			return err
		}

		target, err := storage.FindTagByNameFold(ctx, tx, userID, to, src.ID)
		switch {
		case err == nil:
			merged = true
			affected, err = mergeInto(ctx, tx, userID, src.ID, target.ID)
			return err
		case errors.Is(err, storage.ErrNotFound):
			affected, err = storage.CountBookmarksForTag(ctx, tx, src.ID)
			if err != nil {
				return err
			}
			return storage.RenameTag(ctx, tx, userID, src.ID, to)
		default:
			return err
		}
	})
	if err != nil {
		return 0, err
	}

	n.log.WithFields(logrus.Fields{
		"user": userID, "from": from, "to": to, "merged": merged, "bookmarks": affected,
	}).Info("tag renamed")
	return affected, nil
}

// MergeTags folds every source tag into target, creating target if needed.
// Sources that do not exist or that name target itself are ignored.
// Returns the number of source associations moved.
func (n *Normalizer) MergeTags(ctx context.Context, userID string, sources []string, target string) (int, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return 0, ErrEmptyTagName
	}

	var affected int
	unlock := n.locks.Lock(userID)
	defer unlock()
	err := n.store.WithTx(ctx, func(tx *sql.Tx) error {
		ids, err := EnsureTagsExist(ctx, tx, userID, []string{target})
		if err != nil {
			return err
		}
		targetID := ids[0]

		for _, name := range Parse(sources...) {
			src, err := findTag(ctx, tx, userID, name)
			if errors.Is(err, ErrTagNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if src.ID == targetID {
				continue
			}
			moved, err := mergeInto(ctx, tx, userID, src.ID, targetID)
			if err != nil {
				return err
			}
			affected += moved
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	n.log.WithFields(logrus.Fields{"user": userID, "target": target, "bookmarks": affected}).Info("tags merged")
	return affected, nil
}

// BulkAddTags adds the tags in tagString to each bookmark, keeping the
// tags it already has. Returns the number of bookmarks updated.
func (n *Normalizer) BulkAddTags(ctx context.Context, userID string, bookmarkIDs []string, tagString string) (int, error) {
	additions := Parse(tagString)
	if len(additions) == 0 {
		return 0, ErrEmptyTagName
	}

	return n.applyPerBookmark(ctx, userID, bookmarkIDs, func(current []string) []string {
		return Parse(append(current, additions...)...)
	})
}

// BulkRemoveTags drops the tags in tagString from each bookmark. Names are
// compared ignoring case. Returns the number of bookmarks updated.
func (n *Normalizer) BulkRemoveTags(ctx context.Context, userID string, bookmarkIDs []string, tagString string) (int, error) {
	removals := make(map[string]bool)
	for _, name := range Parse(tagString) {
		removals[strings.ToLower(name)] = true
	}
	if len(removals) == 0 {
		return 0, ErrEmptyTagName
	}

	return n.applyPerBookmark(ctx, userID, bookmarkIDs, func(current []string) []string {
		kept := []string{}
		for _, name := range current {
			if !removals[strings.ToLower(name)] {
				kept = append(kept, name)
			}
		}
		return kept
	})
}

// applyPerBookmark computes each bookmark's new tag list from its current
// one and set-applies it. Bookmarks the user does not own are skipped.
func (n *Normalizer) applyPerBookmark(ctx context.Context, userID string, bookmarkIDs []string, next func(current []string) []string) (int, error) {
	updated := 0
	unlock := n.locks.Lock(userID)
	defer unlock()
	err := n.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range bookmarkIDs {
			if _, err := storage.GetBookmark(ctx, tx, userID, id); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return err
			}

			details, err := storage.BookmarkTagDetails(ctx, tx, id)
			if err != nil {
				return err
			}
			current := make([]string, 0, len(details))
			for _, d := range details {
				current = append(current, d.Name)
			}

			tagIDs, err := EnsureTagsExist(ctx, tx, userID, next(current))
			if err != nil {
				return err
			}
			if err := UpdateBookmarkTags(ctx, tx, id, tagIDs, nil); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// findTag looks a tag up by exact name, falling back to a case-insensitive match.
func findTag(ctx context.Context, q storage.Querier, userID, name string) (*model.Tag, error) {
	tag, err := storage.FindTagByName(ctx, q, userID, name)
	if errors.Is(err, storage.ErrNotFound) {
		tag, err = storage.FindTagByNameFold(ctx, q, userID, name, "")
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTagNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return tag, nil
}

// mergeInto moves every association of srcID onto targetID and deletes srcID.
func mergeInto(ctx context.Context, q storage.Querier, userID, srcID, targetID string) (int, error) {
	moved, err := storage.RetagBookmarks(ctx, q, srcID, targetID)
	if err != nil {
		return 0, err
	}
	if err := storage.DeleteTag(ctx, q, userID, srcID); err != nil {
		return 0, err
	}
	return moved, nil
}
