package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snapwebsites/contentengine/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Short:   "Report or apply pending schema migrations",
	GroupID: groupMaintenance,
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEngine()
		if err != nil {
			fatalf("open engine: %v", err)
		}
		// openEngine already ran every registered migration; this
		// command exists to make that fact visible and to catch a
		// migration that somehow didn't record itself as applied.
		pending, err := migrate.Pending(context.Background(), e.Content)
		if err != nil {
			fatalf("check migrations: %v", err)
		}
		if len(pending) == 0 {
			fmt.Println("no pending migrations")
			return
		}
		for _, name := range pending {
			fmt.Println(name)
		}
		fatalf("%d migration(s) did not apply", len(pending))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
