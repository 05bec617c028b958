package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var destroypageCmd = &cobra.Command{
	Use:     "destroypage PAGE_URL",
	Short:   "Destroy a single page and its descendants",
	GroupID: groupContent,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEngine()
		if err != nil {
			fatalf("open engine: %v", err)
		}
		if err := e.Pages.Destroy(context.Background(), args[0]); err != nil {
			fatalf("destroy %s: %v", args[0], err)
		}
		fmt.Printf("destroyed %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(destroypageCmd)
}
