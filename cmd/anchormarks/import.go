package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikbrunner/anchormarks/internal/model"
)

var importVerbose bool

var importCmd = &cobra.Command{
	Use:   "import <file.html|file.json>",
	Short: "Import a browser bookmark export",
	Long:  "Import a Netscape bookmark HTML file or a {bookmarks, folders} JSON document. Existing URLs are skipped and folders are matched by name under the same parent.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().BoolVarP(&importVerbose, "verbose", "v", false, "List skipped bookmarks and unresolved folders")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	a.startFavicons(cmd.Context())

	path := args[0]
	var res *model.ImportResult
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		res, err = a.importer().ImportJSON(cmd.Context(), userID, data)
		if err != nil {
			return err
		}
	} else {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close()
		res, err = a.importer().ImportHTML(cmd.Context(), userID, file)
		if err != nil {
			return err
		}
	}

	fmt.Print(renderImportResult(res, importVerbose))
	return nil
}
