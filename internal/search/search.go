// Package search implements fuzzy lookup over a user's bookmarks.
package search

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/nikbrunner/anchormarks/internal/model"
)

// DefaultLimit caps omnibar results when the caller passes no limit.
const DefaultLimit = 15

// SearchResult represents a fuzzy search match.
type SearchResult struct {
	Bookmark       *model.Bookmark
	MatchedIndexes []int
	Score          int
	Field          string // title, url or tags
}

// fieldSource implements fuzzy.Source over one field of each bookmark.
type fieldSource struct {
	bookmarks []*model.Bookmark
	value     func(*model.Bookmark) string
}

func (fs fieldSource) String(i int) string {
	return fs.value(fs.bookmarks[i])
}

func (fs fieldSource) Len() int {
	return len(fs.bookmarks)
}

var fields = []struct {
	name  string
	value func(*model.Bookmark) string
}{
	{"title", func(b *model.Bookmark) string { return b.Title }},
	{"url", func(b *model.Bookmark) string { return b.URL }},
	{"tags", func(b *model.Bookmark) string { return strings.Join(b.Tags, " ") }},
}

// Omnibar matches query against titles, URLs and tags and returns at most
// limit results, best first. Each bookmark appears once, ranked by its best
// field; on equal scores title beats url beats tags. Archived bookmarks are
// left out.
//
// An empty query returns the most clicked bookmarks, newest first on ties.
func Omnibar(store *model.Store, query string, limit int) []SearchResult {
	if limit <= 0 {
		limit = DefaultLimit
	}

	candidates := make([]*model.Bookmark, 0, len(store.Bookmarks))
	for i := range store.Bookmarks {
		if !store.Bookmarks[i].IsArchived {
			candidates = append(candidates, &store.Bookmarks[i])
		}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return top(candidates, limit)
	}

	best := make(map[int]SearchResult)
	for _, field := range fields {
		for _, m := range fuzzy.FindFrom(query, fieldSource{bookmarks: candidates, value: field.value}) {
			if prev, ok := best[m.Index]; ok && prev.Score >= m.Score {
				continue
			}
			best[m.Index] = SearchResult{
				Bookmark:       candidates[m.Index],
				MatchedIndexes: m.MatchedIndexes,
				Score:          m.Score,
				Field:          field.name,
			}
		}
	}

	indexes := make([]int, 0, len(best))
	for i := range best {
		indexes = append(indexes, i)
	}
	sort.Slice(indexes, func(a, b int) bool {
		ra, rb := best[indexes[a]], best[indexes[b]]
		if ra.Score != rb.Score {
			return ra.Score > rb.Score
		}
		return indexes[a] < indexes[b]
	})

	results := make([]SearchResult, 0, min(limit, len(indexes)))
	for _, i := range indexes {
		if len(results) == limit {
			break
		}
		results = append(results, best[i])
	}
	return results
}

func top(candidates []*model.Bookmark, limit int) []SearchResult {
	sorted := append([]*model.Bookmark{}, candidates...)
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].ClickCount != sorted[b].ClickCount {
			return sorted[a].ClickCount > sorted[b].ClickCount
		}
		return sorted[a].CreatedAt.After(sorted[b].CreatedAt)
	})

	results := make([]SearchResult, 0, min(limit, len(sorted)))
	for _, b := range sorted {
		if len(results) == limit {
			break
		}
		results = append(results, SearchResult{Bookmark: b})
	}
	return results
}
