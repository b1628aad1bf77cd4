// Package syncer reconciles a browser's live bookmark tree with the
// canonical store. Unlike an import, a push trusts the ids it is given:
// folders are matched by id and bookmarks by URL, last writer wins.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nikbrunner/anchormarks/internal/logging"
	"github.com/nikbrunner/anchormarks/internal/model"
	"github.com/nikbrunner/anchormarks/internal/storage"
	"github.com/nikbrunner/anchormarks/internal/tags"
	"github.com/nikbrunner/anchormarks/internal/userlock"
)

var (
	errMissingID  = errors.New("missing id")
	errMissingURL = errors.New("missing url")
	errEmptyName  = errors.New("empty name")
	errCycle      = errors.New("parent would create a cycle")
)

// FaviconQueue receives bookmark ids whose favicon should be fetched.
type FaviconQueue interface {
	Enqueue(userID string, bookmarkIDs []string)
}

// Params configures a Reconciler. Store is required.
type Params struct {
	Store    *storage.SQLiteStorage
	Locks    *userlock.Locker   // share with the importer to serialize both
	Favicons FaviconQueue       // nil = no favicon lookups
	Logger   logrus.FieldLogger // nil = discard
}

// Reconciler implements sync push and pull.
type Reconciler struct {
	store    *storage.SQLiteStorage
	locks    *userlock.Locker
	favicons FaviconQueue
	log      logrus.FieldLogger
}

// New creates a Reconciler from params.
func New(params Params) *Reconciler {
	r := &Reconciler{
		store:    params.Store,
		locks:    params.Locks,
		favicons: params.Favicons,
		log:      logging.OrDiscard(params.Logger),
	}
	if r.locks == nil {
		r.locks = userlock.New()
	}
	return r
}

// Push applies payload to userID's store. Every record runs in its own
// transaction; failures are collected in the result and never abort the
// batch. Only a cancelled context stops early.
func (r *Reconciler) Push(ctx context.Context, userID string, payload *model.Payload) (*model.PushResult, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: empty payload", model.ErrInvalidPayload)
	}

	unlock := r.locks.Lock(userID)
	res, created, err := r.push(ctx, userID, payload)
	unlock()

	if len(created) > 0 && r.favicons != nil {
		r.favicons.Enqueue(userID, created)
	}
	return res, err
}

// PushJSON decodes a {bookmarks, folders} body and pushes it.
func (r *Reconciler) PushJSON(ctx context.Context, userID string, data []byte) (*model.PushResult, error) {
	payload, err := model.DecodePayload(data)
	if err != nil {
		return nil, err
	}
	return r.Push(ctx, userID, payload)
}

// Pull returns a consistent snapshot of userID's folders, bookmarks (with
// tags) and tags.
func (r *Reconciler) Pull(ctx context.Context, userID string) (*model.Store, error) {
	return r.store.Load(ctx, userID)
}

func (r *Reconciler) push(ctx context.Context, userID string, payload *model.Payload) (*model.PushResult, []string, error) {
	log := r.log.WithField("user", userID)
	res := &model.PushResult{Errors: []model.PushError{}}
	created := []string{}

	for _, d := range orderParentsFirst(payload.Folders) {
		if err := ctx.Err(); err != nil {
			return res, created, err
		}

		var inserted bool
		err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			inserted, err = upsertFolder(ctx, tx, userID, d)
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, created, ctxErr
			}
			log.WithField("folder", d.ID).WithError(err).Warn("folder push failed")
			res.Errors = append(res.Errors, model.PushError{Folder: folderLabel(d), Error: err.Error()})
			continue
		}
		if inserted {
			res.Created++
		} else {
			res.Updated++
		}
	}

	for _, d := range payload.Bookmarks {
		if err := ctx.Err(); err != nil {
			return res, created, err
		}

		var id string
		var inserted bool
		err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			id, inserted, err = upsertBookmark(ctx, tx, userID, d)
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, created, ctxErr
			}
			log.WithField("url", d.URL).WithError(err).Warn("bookmark push failed")
			res.Errors = append(res.Errors, model.PushError{URL: d.URL, Error: err.Error()})
			continue
		}
		if inserted {
			res.Created++
			created = append(created, id)
		} else {
			res.Updated++
		}
	}

	log.WithFields(logrus.Fields{
		"created": res.Created,
		"updated": res.Updated,
		"errors":  len(res.Errors),
	}).Info("sync push finished")
	return res, created, nil
}

// upsertFolder updates the user's folder with d's id in place, or inserts
// it with that id. Reports whether a row was inserted.
func upsertFolder(ctx context.Context, tx *sql.Tx, userID string, d model.FolderDescriptor) (bool, error) {
	if d.ID == "" {
		return false, errMissingID
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return false, errEmptyName
	}
	id := string(d.ID)

	parentID, err := knownParent(ctx, tx, userID, d)
	if err != nil {
		return false, err
	}

	existing, err := storage.GetFolder(ctx, tx, userID, id)
	switch {
	case err == nil:
		if parentID != nil {
			cycle, err := storage.IsFolderDescendant(ctx, tx, userID, id, *parentID)
			if err != nil {
				return false, err
			}
			if cycle {
				return false, errCycle
			}
		}
		existing.Name = name
		existing.Color = d.Color
		existing.ParentID = parentID
		existing.UpdatedAt = time.Now().UTC()
		return false, storage.UpdateFolder(ctx, tx, existing)

	case errors.Is(err, storage.ErrNotFound):
		pos, err := storage.NextFolderPosition(ctx, tx, userID, parentID)
		if err != nil {
			return false, err
		}
		f := model.NewFolder(model.NewFolderParams{
			ID:       id,
			UserID:   userID,
			ParentID: parentID,
			Name:     name,
			Color:    d.Color,
			Icon:     d.Icon,
			Position: pos,
		})
		return true, storage.InsertFolder(ctx, tx, &f)

	default:
		return false, err
	}
}

// knownParent returns d's parent when it is one of the user's folders.
// Anything else means top-level.
func knownParent(ctx context.Context, q storage.Querier, userID string, d model.FolderDescriptor) (*string, error) {
	if d.ParentID == "" || d.ParentID == d.ID {
		return nil, nil
	}
	return ownedFolder(ctx, q, userID, string(d.ParentID))
}

func ownedFolder(ctx context.Context, q storage.Querier, userID, id string) (*string, error) {
	if id == "" {
		return nil, nil
	}
	f, err := storage.GetFolder(ctx, q, userID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f.ID, nil
}

// upsertBookmark updates title and folder of the user's bookmark for d's URL,
// or inserts a new bookmark with its tags. Returns the bookmark id and
// whether it was inserted.
func upsertBookmark(ctx context.Context, tx *sql.Tx, userID string, d model.BookmarkDescriptor) (string, bool, error) {
	url := strings.TrimSpace(d.URL)
	if url == "" {
		return "", false, errMissingURL
	}

	folderID, err := ownedFolder(ctx, tx, userID, string(d.FolderID))
	if err != nil {
		return "", false, err
	}
	title := strings.TrimSpace(d.Title)

	existing, err := storage.FindBookmarkByURL(ctx, tx, userID, url)
	switch {
	case err == nil:
		if title == "" {
			title = existing.Title
		}
		return existing.ID, false, storage.UpdateBookmarkTitleFolder(ctx, tx, userID, existing.ID, title, folderID)
	case !errors.Is(err, storage.ErrNotFound):
		return "", false, err
	}

	if title == "" {
		title = url
	}
	pos, err := storage.NextBookmarkPosition(ctx, tx, userID, folderID)
	if err != nil {
		return "", false, err
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
		return "", false, err
	}

	tagIDs, nameToID, err := tags.EnsureTagsExistMap(ctx, tx, userID, d.Tags)
	if err != nil {
		return "", false, err
	}
	overrides := tags.NormalizeTagColorOverrides(d.TagColors, nameToID)
	if err := tags.UpdateBookmarkTags(ctx, tx, b.ID, tagIDs, overrides); err != nil {
		return "", false, err
	}
	return b.ID, true, nil
}

// orderParentsFirst sorts folders so that a folder whose parent is in the
// batch comes after it. Folders caught in a cycle keep their input order
// at the end.
func orderParentsFirst(descs []model.FolderDescriptor) []model.FolderDescriptor {
	inBatch := make(map[model.ExternalID]bool, len(descs))
	for _, d := range descs {
		if d.ID != "" {
			inBatch[d.ID] = true
		}
	}

	ordered := make([]model.FolderDescriptor, 0, len(descs))
	emitted := make(map[model.ExternalID]bool, len(descs))
	pending := descs

	for len(pending) > 0 {
		var next []model.FolderDescriptor
		for _, d := range pending {
			ready := d.ParentID == "" || d.ParentID == d.ID || !inBatch[d.ParentID] || emitted[d.ParentID]
			if ready {
				ordered = append(ordered, d)
				emitted[d.ID] = true
			} else {
				next = append(next, d)
			}
		}
		if len(next) == len(pending) {
			return append(ordered, next...)
		}
		pending = next
	}
	return ordered
}

func folderLabel(d model.FolderDescriptor) string {
	if d.Name != "" {
		return d.Name
	}
	return string(d.ID)
}
