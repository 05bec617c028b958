// Command contentctl is the CLI surface of the content engine's
// background worker, spec §6.3: one subcommand per administrative
// action (resetstatus, destroypage, rebuildindex, ...), plus serve for
// running the worker as a long-lived daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snapwebsites/contentengine/internal/config"
	"github.com/snapwebsites/contentengine/internal/engine"
)

// Command group IDs for help organization, mirroring the grouping
// convention of the teacher's own CLI (cmd/bd/main.go's GroupMaintenance
// / GroupIntegrations groups).
const (
	groupMaintenance = "maintenance"
	groupContent     = "content"
	groupDaemon      = "daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "contentctl",
	Short: "contentctl - content engine administration CLI",
	Long:  `Administration and maintenance commands for the content engine's page store, wrapping the actions the background worker itself runs on a schedule.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupContent, Title: "Content:"},
		&cobra.Group{ID: groupMaintenance, Title: "Maintenance:"},
		&cobra.Group{ID: groupDaemon, Title: "Daemon:"},
	)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "contentengine.yaml", "path to contentengine.yaml")
}

// openEngine loads the configured ContentEngine for a one-shot CLI
// action. Every action command calls this itself rather than sharing
// process-wide state, since each invocation of contentctl is its own
// short-lived process.
func openEngine() (*engine.ContentEngine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return engine.Open(cfg)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "contentctl: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
