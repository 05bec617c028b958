package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resetstatusSite string

var resetstatusCmd = &cobra.Command{
	Use:     "resetstatus",
	Short:   "Reap stuck processing rows for a site, promoting recoverable CREATEs to NORMAL",
	GroupID: groupMaintenance,
	Run: func(cmd *cobra.Command, args []string) {
		runResetStatus(resetstatusSite, false)
	},
}

var forceresetstatusCmd = &cobra.Command{
	Use:     "forceresetstatus",
	Short:   "Same as resetstatus, but promotes every stuck CREATE unconditionally",
	GroupID: groupMaintenance,
	Run: func(cmd *cobra.Command, args []string) {
		runResetStatus(resetstatusSite, true)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{resetstatusCmd, forceresetstatusCmd} {
		cmd.Flags().StringVar(&resetstatusSite, "site", "", "site URI to reap (required)")
		_ = cmd.MarkFlagRequired("site")
		rootCmd.AddCommand(cmd)
	}
}

func runResetStatus(site string, force bool) {
	e, err := openEngine()
	if err != nil {
		fatalf("open engine: %v", err)
	}

	ctx := context.Background()
	var reaped int
	if force {
		reaped, err = e.Worker.ForceReapProcessing(ctx, site)
	} else {
		reaped, err = e.Worker.ReapProcessing(ctx, site)
	}
	if err != nil {
		fatalf("reap processing: %v", err)
	}
	fmt.Printf("reaped %d processing row(s) for %s\n", reaped, site)
}
