package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/nikbrunner/anchormarks/internal/model"
	"github.com/nikbrunner/anchormarks/internal/storage"
)

func openTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "anchormarks.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stringPtr(s string) *string { return &s }

func TestSQLiteStorage_CreatesDirectoryAndSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "anchormarks.db")

	s, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage with nested dir: %v", err)
	}
	defer s.Close()

	version, err := s.SchemaVersion()
	assert.NilError(t, err)
	assert.Equal(t, version, 3)
}

func TestSQLiteStorage_ReopenKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	s, err := storage.NewSQLiteStorage(dbPath)
	assert.NilError(t, err)
	f := model.NewFolder(model.NewFolderParams{UserID: "u1", Name: "Work"})
	assert.NilError(t, storage.InsertFolder(context.Background(), s.DB(), &f))
	assert.NilError(t, s.Close())

	s, err = storage.NewSQLiteStorage(dbPath)
	assert.NilError(t, err)
	defer s.Close()

	got, err := storage.GetFolder(context.Background(), s.DB(), "u1", f.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.Name, "Work")
}

func TestFindFolder_MatchesNullParent(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	root := model.NewFolder(model.NewFolderParams{UserID: "u1", Name: "Work", Position: 1})
	assert.NilError(t, storage.InsertFolder(ctx, s.DB(), &root))
	child := model.NewFolder(model.NewFolderParams{UserID: "u1", Name: "Work", ParentID: &root.ID, Position: 1})
	assert.NilError(t, storage.InsertFolder(ctx, s.DB(), &child))

	got, err := storage.FindFolder(ctx, s.DB(), "u1", "Work", nil)
	assert.NilError(t, err)
	assert.Equal(t, got.ID, root.ID)
	assert.Assert(t, got.ParentID == nil)

	got, err = storage.FindFolder(ctx, s.DB(), "u1", "Work", &root.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.ID, child.ID)

	_, err = storage.FindFolder(ctx, s.DB(), "u2", "Work", nil)
	assert.Assert(t, errors.Is(err, storage.ErrNotFound))
}

func TestNextFolderPosition(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	pos, err := storage.NextFolderPosition(ctx, s.DB(), "u1", nil)
	assert.NilError(t, err)
	assert.Equal(t, pos, 1)

	f := model.NewFolder(model.NewFolderParams{UserID: "u1", Name: "A", Position: 7})
	assert.NilError(t, storage.InsertFolder(ctx, s.DB(), &f))

	pos, err = storage.NextFolderPosition(ctx, s.DB(), "u1", nil)
	assert.NilError(t, err)
	assert.Equal(t, pos, 8)

	// Positions are per parent.
	pos, err = storage.NextFolderPosition(ctx, s.DB(), "u1", &f.ID)
	assert.NilError(t, err)
	assert.Equal(t, pos, 1)
}

func TestIsFolderDescendant(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	a := model.NewFolder(model.NewFolderParams{ID: "a", UserID: "u1", Name: "A"})
	b := model.NewFolder(model.NewFolderParams{ID: "b", UserID: "u1", Name: "B", ParentID: stringPtr("a")})
	c := model.NewFolder(model.NewFolderParams{ID: "c", UserID: "u1", Name: "C", ParentID: stringPtr("b")})
	for _, f := range []model.Folder{a, b, c} {
		assert.NilError(t, storage.InsertFolder(ctx, s.DB(), &f))
	}

	tests := []struct {
		folder, candidate string
		want              bool
	}{
		{"a", "c", true},
		{"a", "a", true},
		{"c", "a", false},
		{"b", "missing", false},
	}
	for _, tt := range tests {
		got, err := storage.IsFolderDescendant(ctx, s.DB(), "u1", tt.folder, tt.candidate)
		assert.NilError(t, err)
		if got != tt.want {
			t.Errorf("IsFolderDescendant(%s, %s) = %v, want %v", tt.folder, tt.candidate, got, tt.want)
		}
	}
}

func TestBookmarks_InsertFindUpdate(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	f := model.NewFolder(model.NewFolderParams{UserID: "u1", Name: "Work"})
	assert.NilError(t, storage.InsertFolder(ctx, s.DB(), &f))

	b := model.NewBookmark(model.NewBookmarkParams{UserID: "u1", Title: "X", URL: "https://x.com"})
	b.ClickCount = 4
	assert.NilError(t, storage.InsertBookmark(ctx, s.DB(), &b))

	got, err := storage.FindBookmarkByURL(ctx, s.DB(), "u1", "https://x.com")
	assert.NilError(t, err)
	assert.Equal(t, got.ID, b.ID)
	assert.Assert(t, got.FolderID == nil)

	_, err = storage.FindBookmarkByURL(ctx, s.DB(), "u2", "https://x.com")
	assert.Assert(t, errors.Is(err, storage.ErrNotFound))

	assert.NilError(t, storage.UpdateBookmarkTitleFolder(ctx, s.DB(), "u1", b.ID, "X2", &f.ID))
	got, err = storage.GetBookmark(ctx, s.DB(), "u1", b.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.Title, "X2")
	assert.Equal(t, *got.FolderID, f.ID)
	assert.Equal(t, got.ClickCount, 4)

	err = storage.UpdateBookmarkTitleFolder(ctx, s.DB(), "u2", b.ID, "nope", nil)
	assert.Assert(t, errors.Is(err, storage.ErrNotFound))
}

func TestBookmarkTags_SetSemanticsAndCascade(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	b := model.NewBookmark(model.NewBookmarkParams{UserID: "u1", Title: "X", URL: "https://x.com"})
	assert.NilError(t, storage.InsertBookmark(ctx, s.DB(), &b))

	var ids []string
	for i, name := range []string{"a", "b", "c"} {
		tag := model.NewTag("u1", name, i)
		assert.NilError(t, storage.InsertTag(ctx, s.DB(), &tag))
		assert.NilError(t, storage.UpsertBookmarkTag(ctx, s.DB(), model.BookmarkTag{BookmarkID: b.ID, TagID: tag.ID}))
		ids = append(ids, tag.ID)
	}

	assert.NilError(t, storage.DeleteBookmarkTagsExcept(ctx, s.DB(), b.ID, ids[:2]))
	details, err := storage.BookmarkTagDetails(ctx, s.DB(), b.ID)
	assert.NilError(t, err)
	assert.Equal(t, len(details), 2)

	// Deleting a tag removes its association.
	assert.NilError(t, storage.DeleteTag(ctx, s.DB(), "u1", ids[0]))
	details, err = storage.BookmarkTagDetails(ctx, s.DB(), b.ID)
	assert.NilError(t, err)
	assert.Equal(t, len(details), 1)
	assert.Equal(t, details[0].Name, "b")
}

func TestUpsertBookmarkTag_KeepsOverrideWhenNil(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	b := model.NewBookmark(model.NewBookmarkParams{UserID: "u1", Title: "X", URL: "https://x.com"})
	assert.NilError(t, storage.InsertBookmark(ctx, s.DB(), &b))
	tag := model.NewTag("u1", "go", 1)
	assert.NilError(t, storage.InsertTag(ctx, s.DB(), &tag))

	assert.NilError(t, storage.UpsertBookmarkTag(ctx, s.DB(),
		model.BookmarkTag{BookmarkID: b.ID, TagID: tag.ID, ColorOverride: stringPtr("#ff0000")}))
	assert.NilError(t, storage.UpsertBookmarkTag(ctx, s.DB(),
		model.BookmarkTag{BookmarkID: b.ID, TagID: tag.ID}))

	details, err := storage.BookmarkTagDetails(ctx, s.DB(), b.ID)
	assert.NilError(t, err)
	assert.Equal(t, len(details), 1)
	assert.Assert(t, details[0].ColorOverride != nil)
	assert.Equal(t, *details[0].ColorOverride, "#ff0000")
}

func TestFindTagByNameFold(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	upper := model.NewTag("u1", "Go", 1)
	lower := model.NewTag("u1", "go", 2)
	assert.NilError(t, storage.InsertTag(ctx, s.DB(), &upper))
	assert.NilError(t, storage.InsertTag(ctx, s.DB(), &lower))

	got, err := storage.FindTagByNameFold(ctx, s.DB(), "u1", "go", "")
	assert.NilError(t, err)
	assert.Equal(t, got.ID, lower.ID)

	got, err = storage.FindTagByNameFold(ctx, s.DB(), "u1", "GO", lower.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.ID, upper.ID)

	_, err = storage.FindTagByName(ctx, s.DB(), "u1", "GO")
	assert.Assert(t, errors.Is(err, storage.ErrNotFound))
}

func TestLoad_DenormalizesTags(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	f := model.NewFolder(model.NewFolderParams{UserID: "u1", Name: "Work"})
	assert.NilError(t, storage.InsertFolder(ctx, s.DB(), &f))
	b := model.NewBookmark(model.NewBookmarkParams{UserID: "u1", Title: "X", URL: "https://x.com", FolderID: &f.ID})
	assert.NilError(t, storage.InsertBookmark(ctx, s.DB(), &b))
	other := model.NewBookmark(model.NewBookmarkParams{UserID: "u2", Title: "Y", URL: "https://y.com"})
	assert.NilError(t, storage.InsertBookmark(ctx, s.DB(), &other))

	tag := model.NewTag("u1", "work", 1)
	assert.NilError(t, storage.InsertTag(ctx, s.DB(), &tag))
	assert.NilError(t, storage.UpsertBookmarkTag(ctx, s.DB(), model.BookmarkTag{BookmarkID: b.ID, TagID: tag.ID}))

	store, err := s.Load(ctx, "u1")
	assert.NilError(t, err)
	assert.Equal(t, len(store.Folders), 1)
	assert.Equal(t, len(store.Bookmarks), 1)
	assert.Equal(t, len(store.Tags), 1)
	assert.DeepEqual(t, store.Bookmarks[0].Tags, []string{"work"})
	assert.Equal(t, store.Bookmarks[0].TagsDetailed[0].ID, tag.ID)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		f := model.NewFolder(model.NewFolderParams{UserID: "u1", Name: "Doomed"})
		if err := storage.InsertFolder(ctx, tx, &f); err != nil {
			return err
		}
		return boom
	})
	assert.Assert(t, errors.Is(err, boom))

	folders, err := storage.ListFolders(ctx, s.DB(), "u1")
	assert.NilError(t, err)
	assert.Equal(t, len(folders), 0)
}

func TestIncrementClickCount(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	b := model.NewBookmark(model.NewBookmarkParams{UserID: "u1", Title: "X", URL: "https://x.com"})
	assert.NilError(t, storage.InsertBookmark(ctx, s.DB(), &b))

	assert.NilError(t, storage.IncrementClickCount(ctx, s.DB(), "u1", b.ID))
	assert.NilError(t, storage.IncrementClickCount(ctx, s.DB(), "u1", b.ID))
	got, err := storage.GetBookmark(ctx, s.DB(), "u1", b.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.ClickCount, 2)

	err = storage.IncrementClickCount(ctx, s.DB(), "u2", b.ID)
	assert.Assert(t, errors.Is(err, storage.ErrNotFound))
}

func TestFolders_IDsAreScopedPerUser(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	for _, user := range []string{"alice", "bob"} {
		f := model.NewFolder(model.NewFolderParams{ID: "1", UserID: user, Name: "Bookmarks bar"})
		assert.NilError(t, storage.InsertFolder(ctx, s.DB(), &f))

		b := model.NewBookmark(model.NewBookmarkParams{UserID: user, Title: "X", URL: "https://x.com", FolderID: &f.ID})
		assert.NilError(t, storage.InsertBookmark(ctx, s.DB(), &b))
	}

	for _, user := range []string{"alice", "bob"} {
		store, err := s.Load(ctx, user)
		assert.NilError(t, err)
		assert.Equal(t, len(store.Folders), 1)
		assert.Equal(t, *store.Bookmarks[0].FolderID, "1")
	}

	// A folder reference must name a folder of the same user.
	f := model.NewFolder(model.NewFolderParams{ID: "only-alice", UserID: "alice", Name: "Private"})
	assert.NilError(t, storage.InsertFolder(ctx, s.DB(), &f))
	b := model.NewBookmark(model.NewBookmarkParams{UserID: "bob", Title: "Y", URL: "https://y.com", FolderID: &f.ID})
	assert.Assert(t, storage.InsertBookmark(ctx, s.DB(), &b) != nil)
}
