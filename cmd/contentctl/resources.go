package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snapwebsites/contentengine/internal/resources"
)

var dirresourcesCmd = &cobra.Command{
	Use:     "dirresources",
	Short:   "List all compiled-in resources",
	GroupID: groupContent,
	Run: func(cmd *cobra.Command, args []string) {
		names, err := resources.List()
		if err != nil {
			fatalf("list resources: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	},
}

var extractresourceCmd = &cobra.Command{
	Use:     "extractresource RESOURCE_NAME OUTPUT_FILENAME",
	Short:   "Write a compiled-in resource to disk",
	GroupID: groupContent,
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := resources.Read(args[0])
		if err != nil {
			fatalf("read resource: %v", err)
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			fatalf("write %s: %v", args[1], err)
		}
	},
}

func init() {
	rootCmd.AddCommand(dirresourcesCmd, extractresourceCmd)
}
