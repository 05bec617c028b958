package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildindexSite string

var rebuildindexCmd = &cobra.Command{
	Use:     "rebuildindex",
	Short:   "Rebuild the *index* row for a site",
	GroupID: groupMaintenance,
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEngine()
		if err != nil {
			fatalf("open engine: %v", err)
		}
		added, removed, err := e.Worker.RebuildIndex(context.Background(), rebuildindexSite)
		if err != nil {
			fatalf("rebuild index: %v", err)
		}
		fmt.Printf("index rebuilt for %s: +%d -%d\n", rebuildindexSite, added, removed)
	},
}

func init() {
	rebuildindexCmd.Flags().StringVar(&rebuildindexSite, "site", "", "site URI to rebuild (required)")
	_ = rebuildindexCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(rebuildindexCmd)
}
