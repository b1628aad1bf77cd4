package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nikbrunner/anchormarks/internal/model"
)

// Styles holds the lipgloss styles used for command output.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	URL     lipgloss.Style
	Tag     lipgloss.Style
	Warning lipgloss.Style
	Empty   lipgloss.Style
}

// DefaultStyles returns the default style configuration.
// Grayscale with a single desaturated teal accent.
func DefaultStyles() Styles {
	primary := lipgloss.AdaptiveColor{Light: "#505050", Dark: "#A0A0A0"}
	subtle := lipgloss.AdaptiveColor{Light: "#888888", Dark: "#606060"}
	accent := lipgloss.AdaptiveColor{Light: "#4A7070", Dark: "#5F8787"}
	warn := lipgloss.AdaptiveColor{Light: "#8A6A3A", Dark: "#B08850"}

	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		Label:   lipgloss.NewStyle().Foreground(subtle).Width(12),
		Value:   lipgloss.NewStyle().Foreground(primary),
		URL:     lipgloss.NewStyle().Foreground(subtle),
		Tag:     lipgloss.NewStyle().Foreground(accent),
		Warning: lipgloss.NewStyle().Foreground(warn),
		Empty:   lipgloss.NewStyle().Foreground(subtle).Italic(true),
	}
}

var styles = DefaultStyles()

func renderRow(label string, value any) string {
	return styles.Label.Render(label) + styles.Value.Render(fmt.Sprint(value))
}

// renderImportResult summarizes an import. verbose adds one line per
// skipped bookmark and unresolved folder.
func renderImportResult(res *model.ImportResult, verbose bool) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Import finished") + "\n")
	b.WriteString(renderRow("imported", len(res.Imported)) + "\n")
	b.WriteString(renderRow("skipped", res.Skipped) + "\n")
	b.WriteString(renderRow("folders", len(res.Folders)) + "\n")
	if len(res.Unresolved) > 0 {
		b.WriteString(styles.Warning.Render(renderRow("unresolved", len(res.Unresolved))) + "\n")
	}

	if verbose {
		for _, entry := range res.ImportLog {
			if entry.Status != model.StatusSkipped {
				continue
			}
			fmt.Fprintf(&b, "  %s %s\n", styles.Warning.Render(entry.Reason), styles.URL.Render(entry.URL))
		}
		for _, u := range res.Unresolved {
			fmt.Fprintf(&b, "  %s %s\n", styles.Warning.Render(u.Reason), styles.Value.Render(u.Name))
		}
	}
	return b.String()
}

func renderBookmark(i int, bm *model.Bookmark, folderPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s\n", i, styles.Value.Render(bm.Title))
	fmt.Fprintf(&b, "   %s\n", styles.URL.Render(bm.URL))
	var meta []string
	if folderPath != "" {
		meta = append(meta, folderPath)
	}
	for _, t := range bm.Tags {
		meta = append(meta, styles.Tag.Render("#"+t))
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "   %s\n", strings.Join(meta, " "))
	}
	return b.String()
}
