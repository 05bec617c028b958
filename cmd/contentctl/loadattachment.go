package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/snapwebsites/contentengine/internal/attachment"
)

var loadattachmentSite string

var loadattachmentCmd = &cobra.Command{
	Use:     "loadattachment PATH OUTPUT_FILENAME",
	Short:   "Resolve an attachment: URI against the current revision and write it to disk",
	GroupID: groupContent,
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEngine()
		if err != nil {
			fatalf("open engine: %v", err)
		}
		uri, _ := attachment.ResolveFilename(args[0])
		file, err := e.Attachments.LoadByURI(context.Background(), loadattachmentSite, uri)
		if err != nil {
			fatalf("load attachment: %v", err)
		}
		if err := os.WriteFile(args[1], file.Data, 0o644); err != nil {
			fatalf("write %s: %v", args[1], err)
		}
	},
}

func init() {
	loadattachmentCmd.Flags().StringVar(&loadattachmentSite, "site", "", "site URI the page belongs to (required)")
	_ = loadattachmentCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(loadattachmentCmd)
}
