package tags_test

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/nikbrunner/anchormarks/internal/model"
	"github.com/nikbrunner/anchormarks/internal/storage"
	"github.com/nikbrunner/anchormarks/internal/tags"
	"github.com/nikbrunner/anchormarks/internal/userlock"
)

func openTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "tags.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// addBookmark inserts a bookmark for u1 carrying the given tag string.
func addBookmark(t *testing.T, s *storage.SQLiteStorage, url, tagString string) string {
	t.Helper()
	ctx := context.Background()

	b := model.NewBookmark(model.NewBookmarkParams{UserID: "u1", Title: url, URL: url})
	assert.NilError(t, storage.InsertBookmark(ctx, s.DB(), &b))

	ids, err := tags.EnsureTagsExist(ctx, s.DB(), "u1", []string{tagString})
	assert.NilError(t, err)
	assert.NilError(t, tags.UpdateBookmarkTags(ctx, s.DB(), b.ID, ids, nil))
	return b.ID
}

func tagNames(t *testing.T, s *storage.SQLiteStorage, bookmarkID string) []string {
	t.Helper()
	details, err := storage.BookmarkTagDetails(context.Background(), s.DB(), bookmarkID)
	assert.NilError(t, err)
	names := []string{}
	for _, d := range details {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "empty", in: []string{""}, want: []string{}},
		{name: "trims and drops empties", in: []string{" a , ,b,, c "}, want: []string{"a", "b", "c"}},
		{name: "keeps case distinct", in: []string{"Go,go,GO"}, want: []string{"Go", "go", "GO"}},
		{name: "dedupes exact repeats across chunks", in: []string{"a,b", "b", "c,a"}, want: []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.DeepEqual(t, tags.Parse(tt.in...), tt.want)
		})
	}
}

func TestEnsureTagsExist_CreatesOnceAndPreservesCase(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	first, err := tags.EnsureTagsExist(ctx, s.DB(), "u1", []string{"Go, rust"})
	assert.NilError(t, err)
	assert.Equal(t, len(first), 2)

	second, names, err := tags.EnsureTagsExistMap(ctx, s.DB(), "u1", []string{"rust", "Go", "go"})
	assert.NilError(t, err)
	assert.Equal(t, len(second), 3)
	assert.Equal(t, second[0], first[1])
	assert.Equal(t, second[1], first[0])
	assert.Assert(t, names["go"] != names["Go"])

	all, err := storage.ListTags(ctx, s.DB(), "u1")
	assert.NilError(t, err)
	assert.Equal(t, len(all), 3)

	// Other users get their own rows.
	other, err := tags.EnsureTagsExist(ctx, s.DB(), "u2", []string{"Go"})
	assert.NilError(t, err)
	assert.Assert(t, other[0] != first[0])
}

func TestUpdateBookmarkTags_ReplacesSet(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	id := addBookmark(t, s, "https://a.com", "a,b,c")

	ids, nameToID, err := tags.EnsureTagsExistMap(ctx, s.DB(), "u1", []string{"c,d"})
	assert.NilError(t, err)
	overrides := tags.NormalizeTagColorOverrides(map[string]string{"d": "#00ff00"}, nameToID)
	assert.NilError(t, tags.UpdateBookmarkTags(ctx, s.DB(), id, ids, overrides))

	assert.DeepEqual(t, tagNames(t, s, id), []string{"c", "d"})

	details, err := storage.BookmarkTagDetails(ctx, s.DB(), id)
	assert.NilError(t, err)
	for _, d := range details {
		if d.Name == "d" {
			assert.Assert(t, d.ColorOverride != nil)
			assert.Equal(t, *d.ColorOverride, "#00ff00")
		}
	}
}

func TestRenameOrMergeTag_RenamesWhenTargetMissing(t *testing.T) {
	s := openTestStorage(t)
	n := tags.NewNormalizer(s, nil, nil)
	a := addBookmark(t, s, "https://a.com", "foo")
	b := addBookmark(t, s, "https://b.com", "foo,other")

	affected, err := n.RenameOrMergeTag(context.Background(), "u1", "foo", "bar")
	assert.NilError(t, err)
	assert.Equal(t, affected, 2)
	assert.DeepEqual(t, tagNames(t, s, a), []string{"bar"})
	assert.DeepEqual(t, tagNames(t, s, b), []string{"bar", "other"})
}

func TestRenameOrMergeTag_MergesIntoExisting(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	n := tags.NewNormalizer(s, nil, nil)
	a := addBookmark(t, s, "https://a.com", "foo")
	b := addBookmark(t, s, "https://b.com", "foo,bar")
	c := addBookmark(t, s, "https://c.com", "bar")

	affected, err := n.RenameOrMergeTag(ctx, "u1", "foo", "BAR")
	assert.NilError(t, err)
	assert.Equal(t, affected, 2)

	assert.DeepEqual(t, tagNames(t, s, a), []string{"bar"})
	assert.DeepEqual(t, tagNames(t, s, b), []string{"bar"})
	assert.DeepEqual(t, tagNames(t, s, c), []string{"bar"})

	_, err = storage.FindTagByName(ctx, s.DB(), "u1", "foo")
	assert.Assert(t, errors.Is(err, storage.ErrNotFound))
}

func TestRenameOrMergeTag_RoundTrip(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	n := tags.NewNormalizer(s, nil, nil)
	a := addBookmark(t, s, "https://a.com", "foo")
	b := addBookmark(t, s, "https://b.com", "foo,bar")

	_, err := n.RenameOrMergeTag(ctx, "u1", "foo", "bar")
	assert.NilError(t, err)
	_, err = n.RenameOrMergeTag(ctx, "u1", "bar", "foo")
	assert.NilError(t, err)

	assert.DeepEqual(t, tagNames(t, s, a), []string{"foo"})
	assert.DeepEqual(t, tagNames(t, s, b), []string{"foo"})
}

func TestRenameOrMergeTag_CaseOnlyRename(t *testing.T) {
	s := openTestStorage(t)
	n := tags.NewNormalizer(s, nil, nil)
	a := addBookmark(t, s, "https://a.com", "golang")

	affected, err := n.RenameOrMergeTag(context.Background(), "u1", "golang", "GoLang")
	assert.NilError(t, err)
	assert.Equal(t, affected, 1)
	assert.DeepEqual(t, tagNames(t, s, a), []string{"GoLang"})
}

func TestRenameOrMergeTag_NotFound(t *testing.T) {
	s := openTestStorage(t)
	n := tags.NewNormalizer(s, nil, nil)

	_, err := n.RenameOrMergeTag(context.Background(), "u1", "ghost", "bar")
	assert.Assert(t, errors.Is(err, tags.ErrTagNotFound))

	_, err = n.RenameOrMergeTag(context.Background(), "u1", " ", "bar")
	assert.Assert(t, errors.Is(err, tags.ErrEmptyTagName))
}

func TestMergeTags(t *testing.T) {
	s := openTestStorage(t)
	n := tags.NewNormalizer(s, nil, nil)
	a := addBookmark(t, s, "https://a.com", "js")
	b := addBookmark(t, s, "https://b.com", "javascript,ecmascript")

	moved, err := n.MergeTags(context.Background(), "u1", []string{"js", "ecmascript", "missing"}, "javascript")
	assert.NilError(t, err)
	assert.Equal(t, moved, 2)

	assert.DeepEqual(t, tagNames(t, s, a), []string{"javascript"})
	assert.DeepEqual(t, tagNames(t, s, b), []string{"javascript"})
}

func TestBulkAddAndRemove(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	n := tags.NewNormalizer(s, nil, nil)
	a := addBookmark(t, s, "https://a.com", "Work")
	b := addBookmark(t, s, "https://b.com", "")

	updated, err := n.BulkAddTags(ctx, "u1", []string{a, b, "not-mine"}, "Read Later, Work")
	assert.NilError(t, err)
	assert.Equal(t, updated, 2)
	assert.DeepEqual(t, tagNames(t, s, a), []string{"Read Later", "Work"})
	assert.DeepEqual(t, tagNames(t, s, b), []string{"Read Later", "Work"})

	// Removal compares ignoring case; creation never folds case.
	updated, err = n.BulkRemoveTags(ctx, "u1", []string{a, b}, "work")
	assert.NilError(t, err)
	assert.Equal(t, updated, 2)
	assert.DeepEqual(t, tagNames(t, s, a), []string{"Read Later"})
	assert.DeepEqual(t, tagNames(t, s, b), []string{"Read Later"})
}

func TestNormalizer_WaitsForUserLock(t *testing.T) {
	s := openTestStorage(t)
	locks := userlock.New()
	n := tags.NewNormalizer(s, locks, nil)
	a := addBookmark(t, s, "https://a.com", "js")

	// Stands in for an import holding u1's lock.
	unlock := locks.Lock("u1")

	done := make(chan error, 1)
	go func() {
		_, err := n.RenameOrMergeTag(context.Background(), "u1", "js", "javascript")
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("rename finished while the user lock was held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.DeepEqual(t, tagNames(t, s, a), []string{"js"})

	// Another user is not blocked.
	_, err := n.BulkAddTags(context.Background(), "u2", []string{"none"}, "x")
	assert.NilError(t, err)

	unlock()
	select {
	case err := <-done:
		assert.NilError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("rename did not finish after unlock")
	}
	assert.DeepEqual(t, tagNames(t, s, a), []string{"javascript"})
}

func TestNormalizeTagColorOverrides(t *testing.T) {
	nameToID := map[string]string{"Go": "t1", "rust": "t2"}

	got := tags.NormalizeTagColorOverrides(map[string]string{
		"go":      "#abc",
		"rust":    "red",
		"missing": "#123456",
	}, nameToID)

	assert.DeepEqual(t, got, map[string]string{"t1": "#abc"})
	assert.Equal(t, len(tags.NormalizeTagColorOverrides(nil, nameToID)), 0)
}
