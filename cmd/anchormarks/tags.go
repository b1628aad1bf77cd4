package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Rename, merge and bulk edit tags",
}

var tagsRenameCmd = &cobra.Command{
	Use:   "rename <from> <to>",
	Short: "Rename a tag, merging into <to> if it already exists",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.normalizer().RenameOrMergeTag(cmd.Context(), userID, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(renderRow("affected", n))
		return nil
	},
}

var tagsMergeCmd = &cobra.Command{
	Use:   "merge <target> <source>...",
	Short: "Merge source tags into target",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.normalizer().MergeTags(cmd.Context(), userID, args[1:], args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderRow("affected", n))
		return nil
	},
}

var tagsAddCmd = &cobra.Command{
	Use:   "add <tags> <bookmark-id>...",
	Short: "Add comma separated tags to bookmarks",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.normalizer().BulkAddTags(cmd.Context(), userID, args[1:], args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderRow("updated", n))
		return nil
	},
}

var tagsRemoveCmd = &cobra.Command{
	Use:   "remove <tags> <bookmark-id>...",
	Short: "Remove comma separated tags from bookmarks",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.normalizer().BulkRemoveTags(cmd.Context(), userID, args[1:], args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderRow("updated", n))
		return nil
	},
}

func init() {
	tagsCmd.AddCommand(tagsRenameCmd, tagsMergeCmd, tagsAddCmd, tagsRemoveCmd)
	rootCmd.AddCommand(tagsCmd)
}
