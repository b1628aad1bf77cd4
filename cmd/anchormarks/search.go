package main

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikbrunner/anchormarks/internal/search"
	"github.com/nikbrunner/anchormarks/internal/storage"
)

var (
	searchLimit int
	searchOpen  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Fuzzy search bookmarks by title, URL and tags",
	Long:  "Fuzzy search bookmarks. Without a query the most clicked bookmarks are listed. With --open the best match is opened in the browser and its click count is bumped.",
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", search.DefaultLimit, "Maximum number of results")
	searchCmd.Flags().BoolVarP(&searchOpen, "open", "o", false, "Open the best match in the browser")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.store.Load(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("failed to load bookmarks: %w", err)
	}

	query := strings.Join(args, " ")
	results := search.Omnibar(store, query, searchLimit)
	if len(results) == 0 {
		fmt.Println(styles.Empty.Render(fmt.Sprintf("No bookmarks found for '%s'", query)))
		return nil
	}

	if searchOpen {
		bm := results[0].Bookmark
		if err := storage.IncrementClickCount(cmd.Context(), a.store.DB(), userID, bm.ID); err != nil {
			a.log.WithError(err).Warn("failed to record click")
		}
		fmt.Println("Opening: " + styles.Value.Render(bm.Title))
		openURL(bm.URL)
		return nil
	}

	for i, r := range results {
		fmt.Print(renderBookmark(i+1, r.Bookmark, store.FolderPath(r.Bookmark.FolderID)))
	}
	return nil
}

// openURL opens a URL in the default browser.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	}
	if cmd != nil {
		_ = cmd.Start()
	}
}
