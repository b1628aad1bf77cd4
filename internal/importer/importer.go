// Package importer merges external bookmark collections (Netscape HTML or
// JSON payloads) into a user's canonical store.
//
// An import resolves the payload's folders first, then inserts every
// bookmark whose URL the user does not already have. Running the same
// import twice creates nothing the second time.
package importer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nikbrunner/anchormarks/internal/logging"
	"github.com/nikbrunner/anchormarks/internal/model"
	"github.com/nikbrunner/anchormarks/internal/storage"
	"github.com/nikbrunner/anchormarks/internal/userlock"
)

// DefaultTagPrefix prefixes the date tag added to every imported bookmark.
const DefaultTagPrefix = "import-"

// FaviconQueue receives bookmark ids whose favicon should be fetched.
type FaviconQueue interface {
	Enqueue(userID string, bookmarkIDs []string)
}

// Params configures an Importer. Store is required.
type Params struct {
	Store     *storage.SQLiteStorage
	Locks     *userlock.Locker   // nil = private locker
	Favicons  FaviconQueue       // nil = no favicon lookups
	Logger    logrus.FieldLogger // nil = discard
	TagPrefix string             // empty = DefaultTagPrefix
	Now       func() time.Time   // nil = time.Now
}

// Importer runs imports for any number of users.
type Importer struct {
	store     *storage.SQLiteStorage
	locks     *userlock.Locker
	favicons  FaviconQueue
	log       logrus.FieldLogger
	tagPrefix string
	now       func() time.Time
}

// New creates an Importer from params.
func New(params Params) *Importer {
	im := &Importer{
		store:     params.Store,
		locks:     params.Locks,
		favicons:  params.Favicons,
		log:       logging.OrDiscard(params.Logger),
		tagPrefix: params.TagPrefix,
		now:       params.Now,
	}
	if im.locks == nil {
		im.locks = userlock.New()
	}
	if im.tagPrefix == "" {
		im.tagPrefix = DefaultTagPrefix
	}
	if im.now == nil {
		im.now = time.Now
	}
	return im
}

// ImportTag returns the tag added to bookmarks imported at t.
func (im *Importer) ImportTag(t time.Time) string {
	return im.tagPrefix + t.UTC().Format("2006-01-02")
}

// Import merges payload into userID's store. Imports for the same user are
// serialized. On context cancellation the partial result is returned along
// with the context error.
func (im *Importer) Import(ctx context.Context, userID string, payload *model.Payload) (*model.ImportResult, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: empty payload", model.ErrInvalidPayload)
	}

	unlock := im.locks.Lock(userID)
	res, inserted, err := im.run(ctx, userID, payload)
	unlock()

	if len(inserted) > 0 && im.favicons != nil {
		im.favicons.Enqueue(userID, inserted)
	}
	return res, err
}

func (im *Importer) run(ctx context.Context, userID string, payload *model.Payload) (*model.ImportResult, []string, error) {
	log := im.log.WithField("user", userID)
	res := model.NewImportResult()
	started := im.now()

	folders, err := ResolveFolders(ctx, im.store.DB(), userID, payload.Folders)
	if folders != nil {
		res.Folders = folders.Folders
		res.Unresolved = folders.Unresolved
	}
	if err != nil {
		return res, nil, err
	}
	for _, u := range folders.Unresolved {
		log.WithFields(logrus.Fields{"folder": u.ID, "name": u.Name}).Warnf("folder unresolved: %s", u.Reason)
	}

	inserted, err := ImportBookmarks(ctx, im.store, log, userID, payload.Bookmarks, folders.Remap, im.ImportTag(started), res)
	if err != nil {
		return res, inserted, err
	}

	log.WithFields(logrus.Fields{
		"folders_created": folders.Created,
		"imported":        len(res.Imported),
		"skipped":         res.Skipped,
		"unresolved":      len(res.Unresolved),
	}).Info("import finished")
	return res, inserted, nil
}

// ImportJSON decodes a {bookmarks, folders} body and imports it.
func (im *Importer) ImportJSON(ctx context.Context, userID string, data []byte) (*model.ImportResult, error) {
	payload, err := model.DecodePayload(data)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, userID, payload)
}

// ImportHTML parses a Netscape bookmark file and imports it.
func (im *Importer) ImportHTML(ctx context.Context, userID string, r io.Reader) (*model.ImportResult, error) {
	payload, err := ParseHTMLBookmarks(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidPayload, err)
	}
	return im.Import(ctx, userID, payload)
}
