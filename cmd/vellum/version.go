package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/aretw0/vellum"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Vellum",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vellum %s (%s %s/%s)\n", vellum.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
