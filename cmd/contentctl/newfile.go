package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var newfileCmd = &cobra.Command{
	Use:     "newfile MD5",
	Short:   "Re-mark an already-ingested file as new so it is reprocessed",
	GroupID: groupContent,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEngine()
		if err != nil {
			fatalf("open engine: %v", err)
		}
		if err := e.Attachments.MarkNew(context.Background(), args[0]); err != nil {
			fatalf("mark new %s: %v", args[0], err)
		}
		fmt.Printf("requeued %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(newfileCmd)
}
