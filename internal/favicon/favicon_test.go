package favicon_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/nikbrunner/anchormarks/internal/favicon"
	"github.com/nikbrunner/anchormarks/internal/model"
	"github.com/nikbrunner/anchormarks/internal/storage"
)

func iconServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve(t *testing.T) {
	ok := iconServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/favicon.ico" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	})
	headless := iconServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	missing := iconServer(t, http.NotFound)

	ctx := context.Background()
	client := &http.Client{Timeout: time.Second}

	got, err := favicon.Resolve(ctx, client, ok.URL+"/some/page?q=1")
	assert.NilError(t, err)
	assert.Equal(t, got, ok.URL+"/favicon.ico")

	got, err = favicon.Resolve(ctx, client, headless.URL)
	assert.NilError(t, err)
	assert.Equal(t, got, headless.URL+"/favicon.ico")

	_, err = favicon.Resolve(ctx, client, missing.URL)
	assert.ErrorContains(t, err, "404")

	_, err = favicon.Resolve(ctx, client, "javascript:alert(1)")
	assert.ErrorContains(t, err, "not an http(s) url")
}

func TestQueue_StoresFavicons(t *testing.T) {
	ok := iconServer(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	missing := iconServer(t, http.NotFound)

	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "favicon.db"))
	assert.NilError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	withIcon := model.NewBookmark(model.NewBookmarkParams{UserID: "u1", Title: "ok", URL: ok.URL + "/page"})
	without := model.NewBookmark(model.NewBookmarkParams{UserID: "u1", Title: "missing", URL: missing.URL})
	for _, b := range []*model.Bookmark{&withIcon, &without} {
		assert.NilError(t, storage.InsertBookmark(ctx, s.DB(), b))
	}

	q := favicon.NewQueue(s, favicon.Options{Workers: 2, Timeout: time.Second})
	q.Start(ctx)
	q.Enqueue("u1", []string{withIcon.ID, without.ID, "unknown-id"})
	// Wrong owner: never looked up.
	q.Enqueue("u2", []string{withIcon.ID})
	q.Close()

	got, err := storage.GetBookmark(ctx, s.DB(), "u1", withIcon.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.Favicon, ok.URL+"/favicon.ico")

	got, err = storage.GetBookmark(ctx, s.DB(), "u1", without.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.Favicon, "")

	var checked sql.NullString
	err = s.DB().QueryRow(`SELECT favicon_checked_at FROM bookmarks WHERE id = ?`, without.ID).Scan(&checked)
	assert.NilError(t, err)
	assert.Assert(t, checked.Valid)

	// Enqueue after Close is a no-op rather than a panic.
	q.Enqueue("u1", []string{withIcon.ID})
}

func TestQueue_DropsWhenFull(t *testing.T) {
	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "favicon.db"))
	assert.NilError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// Not started: nothing drains the queue.
	q := favicon.NewQueue(s, favicon.Options{QueueSize: 1})
	q.Enqueue("u1", []string{"a", "b", "c"})
	q.Close()
}
