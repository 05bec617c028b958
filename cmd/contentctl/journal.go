package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snapwebsites/contentengine/internal/config"
	"github.com/snapwebsites/contentengine/internal/engine"
)

var journalCmd = &cobra.Command{
	Use:     "journal",
	Short:   "Journal administration",
	GroupID: groupMaintenance,
}

var journalReapAge int64

var journalReapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Reap journal entries older than the configured (or given) age, destroying any page they left stuck",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEngine()
		if err != nil {
			fatalf("open engine: %v", err)
		}

		ageMicros := journalReapAge
		if ageMicros <= 0 {
			cfg, err := config.Load(configPath)
			if err != nil {
				fatalf("load config: %v", err)
			}
			ageMicros = cfg.JournalAgeMicros()
		}

		reaped, err := e.JournalEngine.Reap(context.Background(), engine.Now(), ageMicros, e.Pages.Destroy, func(url string, err error) {
			fmt.Printf("reap %s failed: %v\n", url, err)
		})
		if err != nil {
			fatalf("journal reap: %v", err)
		}
		fmt.Printf("reaped %d stale journal entr%s\n", reaped, plural(reaped))
	},
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func init() {
	journalReapCmd.Flags().Int64Var(&journalReapAge, "age-micros", 0, "override the configured journal age threshold, in microseconds")
	journalCmd.AddCommand(journalReapCmd)
	rootCmd.AddCommand(journalCmd)
}
