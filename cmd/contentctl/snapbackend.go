package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snapwebsites/contentengine/internal/config"
)

var snapbackendSite string

var snapbackendCmd = &cobra.Command{
	Use:     "snapbackend",
	Short:   "Run one snapbackend pass for a site: status reap, files reprocess, journal reap",
	GroupID: groupMaintenance,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fatalf("load config: %v", err)
		}
		e, err := openEngine()
		if err != nil {
			fatalf("open engine: %v", err)
		}

		result, err := e.Worker.RunCycle(context.Background(), snapbackendSite, cfg.JournalAgeMicros(), cfg.Worker.AttachmentBatch)
		if err != nil {
			fatalf("run cycle: %v", err)
		}
		fmt.Printf("snapbackend %s: processing_reaped=%d index_added=%d index_removed=%d attachments_done=%d journal_reaped=%d\n",
			result.Site, result.ProcessingReaped, result.IndexAdded, result.IndexRemoved, result.AttachmentsDone, result.JournalReaped)
	},
}

func init() {
	snapbackendCmd.Flags().StringVar(&snapbackendSite, "site", "", "site URI to run the pass for (required)")
	_ = snapbackendCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(snapbackendCmd)
}
