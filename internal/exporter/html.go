// Package exporter projects a user's snapshot into the formats the
// importer reads back: Netscape bookmark HTML and the JSON payload.
package exporter

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikbrunner/anchormarks/internal/model"
)

// Export formats.
const (
	FormatHTML = "html"
	FormatJSON = "json"
)

// DefaultExportPath returns the default export file path for format.
// Format: ~/Downloads/anchormarks-export-YYYY-MM-DD.<format>
func DefaultExportPath(format string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("anchormarks-export-%s.%s", time.Now().Format("2006-01-02"), format)
	return filepath.Join(home, "Downloads", filename), nil
}

// ExportHTML exports the store to Netscape bookmark HTML format.
func ExportHTML(store *model.Store) string {
	var b strings.Builder

	// Header
	b.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	b.WriteString("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	b.WriteString("<TITLE>Bookmarks</TITLE>\n")
	b.WriteString("<H1>Bookmarks</H1>\n")
	b.WriteString("<DL><p>\n")

	writeItems(&b, store, nil, 1, map[string]bool{})

	// Footer
	b.WriteString("</DL><p>\n")

	return b.String()
}

// writeItems recursively writes folders and bookmarks for a given parent.
func writeItems(b *strings.Builder, store *model.Store, parentID *string, indent int, visited map[string]bool) {
	prefix := strings.Repeat("    ", indent)

	for _, folder := range store.GetFoldersInFolder(parentID) {
		if visited[folder.ID] {
			continue
		}
		visited[folder.ID] = true

		fmt.Fprintf(b, "%s<DT><H3 ADD_DATE=\"%d\">%s</H3>\n", prefix, folder.CreatedAt.Unix(), html.EscapeString(folder.Name))
		fmt.Fprintf(b, "%s<DL><p>\n", prefix)

		folderID := folder.ID
		writeItems(b, store, &folderID, indent+1, visited)

		fmt.Fprintf(b, "%s</DL><p>\n", prefix)
	}

	for _, bookmark := range store.GetBookmarksInFolder(parentID) {
		attrs := fmt.Sprintf(" HREF=\"%s\" ADD_DATE=\"%d\"", html.EscapeString(bookmark.URL), bookmark.CreatedAt.Unix())
		if len(bookmark.Tags) > 0 {
			attrs += fmt.Sprintf(" TAGS=\"%s\"", html.EscapeString(strings.Join(bookmark.Tags, ",")))
		}
		fmt.Fprintf(b, "%s<DT><A%s>%s</A>\n", prefix, attrs, html.EscapeString(bookmark.Title))
		if bookmark.Description != "" {
			fmt.Fprintf(b, "%s<DD>%s\n", prefix, html.EscapeString(bookmark.Description))
		}
	}
}
