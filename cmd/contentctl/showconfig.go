package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/snapwebsites/contentengine/internal/config"
)

var showconfigCmd = &cobra.Command{
	Use:     "showconfig",
	Short:   "Print the effective configuration (defaults applied) as YAML",
	GroupID: groupMaintenance,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fatalf("load config: %v", err)
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			fatalf("marshal config: %v", err)
		}
		fmt.Fprint(os.Stdout, string(out))
	},
}

func init() {
	rootCmd.AddCommand(showconfigCmd)
}
