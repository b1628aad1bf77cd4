package importer

import (
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/nikbrunner/anchormarks/internal/model"
)

// ParseHTMLBookmarks parses a Netscape bookmark file into a payload.
// Folders get payload-local ids ("1", "2", ...) in document order.
// Anchors without HREF are kept with an empty URL so the import log can
// report them; Firefox "place:" queries are dropped.
func ParseHTMLBookmarks(r io.Reader) (*model.Payload, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	payload := &model.Payload{
		Bookmarks: []model.BookmarkDescriptor{},
		Folders:   []model.FolderDescriptor{},
	}

	// Track current folder stack for hierarchy
	var folderStack []model.ExternalID
	var pendingFolder model.ExternalID // folder waiting to be pushed on next DL
	lastBookmark := -1                 // bookmark a following DD describes

	current := func() model.ExternalID {
		if len(folderStack) == 0 {
			return ""
		}
		return folderStack[len(folderStack)-1]
	}

	var parse func(*html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "h3":
				lastBookmark = -1
				name := getTextContent(n)
				if name != "" {
					id := model.ExternalID(strconv.Itoa(len(payload.Folders) + 1))
					payload.Folders = append(payload.Folders, model.FolderDescriptor{
						ID:       id,
						ParentID: current(),
						Name:     name,
					})
					pendingFolder = id
				}
				return

			case "a":
				href := strings.TrimSpace(getAttr(n, "href"))
				if strings.HasPrefix(strings.ToLower(href), "place:") {
					return
				}

				title := getTextContent(n)
				if title == "" {
					title = href
				}

				desc := model.BookmarkDescriptor{
					Title:    title,
					URL:      href,
					FolderID: current(),
				}
				if raw := getAttr(n, "tags"); strings.TrimSpace(raw) != "" {
					desc.Tags = model.TagList{raw}
				}
				if addDate := getAttr(n, "add_date"); addDate != "" {
					if ts, err := strconv.ParseInt(addDate, 10, 64); err == nil && ts > 0 {
						createdAt := time.Unix(ts, 0).UTC()
						desc.CreatedAt = &createdAt
					}
				}

				payload.Bookmarks = append(payload.Bookmarks, desc)
				lastBookmark = len(payload.Bookmarks) - 1
				return

			case "dd":
				if lastBookmark >= 0 && payload.Bookmarks[lastBookmark].Description == "" {
					payload.Bookmarks[lastBookmark].Description = getOwnText(n)
				}
				lastBookmark = -1
				// A DD may wrap the next DL when the markup is sloppy.

			case "dl":
				lastBookmark = -1
				// If we have a pending folder, push it now
				pushedFolder := false
				if pendingFolder != "" {
					folderStack = append(folderStack, pendingFolder)
					pendingFolder = ""
					pushedFolder = true
				}

				for c := n.FirstChild; c != nil; c = c.NextSibling {
					parse(c)
				}

				if pushedFolder && len(folderStack) > 0 {
					folderStack = folderStack[:len(folderStack)-1]
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}

	parse(doc)
	return payload, nil
}

// getTextContent returns the text content of a node.
func getTextContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(text.String())
}

// getOwnText returns the node's direct text children, ignoring nested elements.
func getOwnText(n *html.Node) string {
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			text.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(text.String())
}

// getAttr returns the value of an attribute, case-insensitive.
func getAttr(n *html.Node, key string) string {
	key = strings.ToLower(key)
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == key {
			return attr.Val
		}
	}
	return ""
}
