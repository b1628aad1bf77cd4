package exporter

import (
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/nikbrunner/anchormarks/internal/model"
)

var exportTime = time.Unix(1700000000, 0)

func folder(id, name string, parentID *string) model.Folder {
	return model.Folder{ID: id, UserID: "u1", Name: name, ParentID: parentID, CreatedAt: exportTime}
}

func bookmark(id, title, url string, folderID *string) model.Bookmark {
	return model.Bookmark{ID: id, UserID: "u1", Title: title, URL: url, FolderID: folderID, Tags: []string{}, CreatedAt: exportTime}
}

func ptr(s string) *string { return &s }

func TestExportHTML(t *testing.T) {
	tests := []struct {
		name    string
		build   func(s *model.Store)
		want    []string // substrings, in order of appearance
		notWant []string
	}{
		{
			name:  "empty store keeps the Netscape header",
			build: func(*model.Store) {},
			want: []string{
				"<!DOCTYPE NETSCAPE-Bookmark-file-1>",
				"<TITLE>Bookmarks</TITLE>",
				"<H1>Bookmarks</H1>",
				"<DL><p>",
				"</DL><p>",
			},
		},
		{
			name: "root bookmark",
			build: func(s *model.Store) {
				s.AddBookmark(bookmark("b1", "Anchor docs", "https://anchor.test/docs", nil))
			},
			want: []string{`<DT><A HREF="https://anchor.test/docs" ADD_DATE="1700000000">Anchor docs</A>`},
		},
		{
			name: "folder before its bookmarks, nested in order",
			build: func(s *model.Store) {
				s.AddFolder(folder("f1", "Reading", nil))
				s.AddFolder(folder("f2", "Papers", ptr("f1")))
				s.AddBookmark(bookmark("b1", "Raft", "https://raft.test", ptr("f2")))
				s.AddBookmark(bookmark("b2", "Later", "https://later.test", ptr("f1")))
			},
			want: []string{
				`<DT><H3 ADD_DATE="1700000000">Reading</H3>`,
				"Papers</H3>",
				"Raft</A>",
				"Later</A>",
			},
		},
		{
			name: "siblings at root",
			build: func(s *model.Store) {
				s.AddFolder(folder("f1", "Inbox", nil))
				s.AddFolder(folder("f2", "Archive", nil))
				s.AddBookmark(bookmark("b1", "Loose", "https://loose.test", nil))
			},
			want: []string{"Inbox</H3>", "Archive</H3>", "Loose</A>"},
		},
		{
			name: "markup in names and urls is escaped",
			build: func(s *model.Store) {
				s.AddFolder(folder("f1", "R&D", nil))
				s.AddBookmark(bookmark("b1", "Test <script>alert('x')</script>", "https://q.test?a=1&b=2", nil))
			},
			want:    []string{"R&amp;D</H3>", "a=1&amp;b=2", "&lt;script&gt;"},
			notWant: []string{"<script>", "a=1&b=2"},
		},
		{
			name: "tags attribute and description",
			build: func(s *model.Store) {
				b := bookmark("b1", "Go", "https://go.dev", nil)
				b.Tags = []string{"go", "lang"}
				b.Description = "The Go site & docs"
				s.AddBookmark(b)
			},
			want: []string{`TAGS="go,lang"`, "<DD>The Go site &amp; docs"},
		},
		{
			name: "bookmark without tags has no TAGS attribute",
			build: func(s *model.Store) {
				s.AddBookmark(bookmark("b1", "Plain", "https://plain.test", nil))
			},
			notWant: []string{"TAGS=", "<DD>"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := model.NewStore()
			tc.build(store)

			out := ExportHTML(store)

			rest := out
			for _, w := range tc.want {
				i := strings.Index(rest, w)
				assert.Assert(t, i >= 0, "missing or out of order: %q\n%s", w, out)
				rest = rest[i+len(w):]
			}
			for _, nw := range tc.notWant {
				assert.Assert(t, !strings.Contains(out, nw), "unexpected %q\n%s", nw, out)
			}
		})
	}
}

func TestExportHTML_UnreachableCycleIsSkipped(t *testing.T) {
	store := model.NewStore()
	store.AddFolder(folder("a", "A", ptr("b")))
	store.AddFolder(folder("b", "B", ptr("a")))
	store.AddBookmark(bookmark("b1", "Top", "https://top.test", nil))

	out := ExportHTML(store)
	assert.Assert(t, is.Contains(out, "Top</A>"))
	assert.Assert(t, !strings.Contains(out, "<H3"))
}

func TestDefaultExportPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	p, err := DefaultExportPath(FormatJSON)
	assert.NilError(t, err)
	assert.Assert(t, is.Contains(p, "anchormarks-export-"))
	assert.Assert(t, strings.HasSuffix(p, ".json"))
}
