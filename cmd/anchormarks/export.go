package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nikbrunner/anchormarks/internal/exporter"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export bookmarks as Netscape HTML or JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", exporter.FormatHTML, "Output format: html or json")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != exporter.FormatHTML && exportFormat != exporter.FormatJSON {
		return fmt.Errorf("unknown format %q", exportFormat)
	}

	outputPath := ""
	if len(args) == 1 {
		outputPath = args[0]
	} else {
		var err error
		outputPath, err = exporter.DefaultExportPath(exportFormat)
		if err != nil {
			return fmt.Errorf("failed to get default export path: %w", err)
		}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.store.Load(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("failed to load bookmarks: %w", err)
	}

	var data []byte
	if exportFormat == exporter.FormatJSON {
		data, err = exporter.ExportJSON(store)
		if err != nil {
			return err
		}
	} else {
		data = []byte(exporter.ExportHTML(store))
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Println(styles.Title.Render("Export finished"))
	fmt.Println(renderRow("bookmarks", len(store.Bookmarks)))
	fmt.Println(renderRow("folders", len(store.Folders)))
	fmt.Println(renderRow("file", outputPath))
	return nil
}
